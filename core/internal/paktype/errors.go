package paktype

import "errors"

// Sentinel errors shared by the archive backends.
var (
	// ErrInvalidHeader is returned when a packed file does not start with the magic bytes.
	ErrInvalidHeader = errors.New("invalid packed file header")

	// ErrInvalidIndexHeader is returned when the index block does not start with "INDEX".
	ErrInvalidIndexHeader = errors.New("invalid index header")

	// ErrNotAbsolute is returned when an asset path does not begin with "/".
	ErrNotAbsolute = errors.New("asset path must be absolute")

	// ErrKeyNotFound is returned when a metadata key is absent.
	ErrKeyNotFound = errors.New("metadata key not found")

	// ErrMetadataNotObject is returned when metadata is queried by key but is not an object.
	ErrMetadataNotObject = errors.New("metadata is not an object")

	// ErrDuplicatePath is returned when an archive index or writer sees the same path twice.
	ErrDuplicatePath = errors.New("duplicate asset path")

	// ErrInvalidName is returned when a file name cannot become an asset path.
	ErrInvalidName = errors.New("invalid asset name")

	// ErrSizeOverflow is returned when an asset range or size does not fit the host.
	ErrSizeOverflow = errors.New("size overflow")

	// ErrTooLarge is returned when an asset exceeds the configured read limit.
	ErrTooLarge = errors.New("asset exceeds size limit")

	// ErrTooManyFiles is returned when an archive would exceed the configured file limit.
	ErrTooManyFiles = errors.New("too many files")

	// ErrClosed is returned when writing to a closed writer.
	ErrClosed = errors.New("writer closed")
)
