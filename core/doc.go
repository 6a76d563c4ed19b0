// Package pak reads and writes packed asset archives.
//
// A packed archive is a single file laid out as:
//
//	"SBAsset6" | u64 index offset | asset data ... | index block
//
// The index block starts with "INDEX", followed by the archive metadata as
// an untagged object body, a varint entry count, and one record per asset:
// a length-prefixed path, a u64 offset and a u64 length. All fixed-width
// integers are big-endian.
//
// Archive gives random access to assets through an io.ReaderAt, so any
// ByteSource (a local file, an HTTP range source, a byte slice) can back it.
// Writer and Create build archives.
package pak
