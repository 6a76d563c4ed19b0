// Package paktype holds the types and helpers shared by the archive
// backends: index entries, sentinel errors, and asset path handling.
package paktype

// Entry locates one asset inside a packed archive.
type Entry struct {
	// Path is the absolute asset path, e.g. "/items/hat.png".
	Path string

	// Offset is the byte offset of the asset data from the start of the archive.
	Offset uint64

	// Size is the length of the asset data in bytes.
	Size uint64
}

// End returns the offset one past the last byte of the asset and whether
// the addition stayed within 64 bits.
func (e Entry) End() (uint64, bool) {
	end := e.Offset + e.Size
	return end, end >= e.Offset
}
