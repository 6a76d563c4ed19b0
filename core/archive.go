package pak

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/pak/core/cache"
	"github.com/meigma/pak/core/internal/paktype"
	"github.com/meigma/pak/core/internal/sizing"
	"github.com/meigma/pak/value"
)

// File format constants.
const (
	// Magic identifies a packed archive.
	Magic = "SBAsset6"

	// IndexMagic starts the index block.
	IndexMagic = "INDEX"

	// HeaderSize is the size of the magic plus the index offset.
	HeaderSize = len(Magic) + 8

	// indexBufferSize is the read buffer used while loading the index.
	indexBufferSize = 64 << 10
)

// Re-export types from internal/paktype for public API.
type (
	// Entry locates one asset inside an archive.
	Entry = paktype.Entry

	// ProgressEvent represents a progress update during operations.
	ProgressEvent = paktype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = paktype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = paktype.ProgressFunc
)

// Re-export progress stage constants.
const (
	StageScanning   = paktype.StageScanning
	StageWriting    = paktype.StageWriting
	StageIndexing   = paktype.StageIndexing
	StageExtracting = paktype.StageExtracting
)

// Sentinel errors re-exported from internal/paktype.
var (
	ErrInvalidHeader      = paktype.ErrInvalidHeader
	ErrInvalidIndexHeader = paktype.ErrInvalidIndexHeader
	ErrNotAbsolute        = paktype.ErrNotAbsolute
	ErrKeyNotFound        = paktype.ErrKeyNotFound
	ErrMetadataNotObject  = paktype.ErrMetadataNotObject
	ErrDuplicatePath      = paktype.ErrDuplicatePath
	ErrInvalidName        = paktype.ErrInvalidName
	ErrSizeOverflow       = paktype.ErrSizeOverflow
	ErrTooLarge           = paktype.ErrTooLarge
	ErrTooManyFiles       = paktype.ErrTooManyFiles
	ErrClosed             = paktype.ErrClosed
)

// Archive provides random access to the assets of a packed archive.
//
// The index is loaded once by New; reads go straight to the ByteSource
// with ReadAt, so an Archive is safe for concurrent use.
type Archive struct {
	source      ByteSource
	closer      io.Closer
	index       map[string]Entry
	paths       []string
	metadata    value.Object
	indexOffset uint64
	maxFileSize uint64
	cache       cache.Cache        // nil = no caching
	readGroup   singleflight.Group // zero value is valid
	logger      *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// New reads the header and index of the archive in source.
//
// It fails with ErrInvalidHeader when the file does not start with the
// magic bytes, ErrInvalidIndexHeader when the index block is missing its
// marker, and a *value.FormatError when the index is corrupt.
func New(source ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{source: source}
	for _, opt := range opts {
		opt(a)
	}

	indexOffset, err := readHeader(source)
	if err != nil {
		return nil, err
	}
	a.indexOffset = indexOffset
	if err := a.loadIndex(); err != nil {
		return nil, err
	}

	a.log().Debug("opened archive",
		"source", source.SourceID(),
		"assets", len(a.paths),
		"index_offset", a.indexOffset)
	return a, nil
}

// OpenFile opens the packed archive at path.
// The returned Archive must be closed to release the file.
func OpenFile(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, err
	}
	src, err := NewFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a, err := New(src, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

func readHeader(source ByteSource) (uint64, error) {
	var hdr [HeaderSize]byte
	if source.Size() < int64(HeaderSize) {
		return 0, fmt.Errorf("%w: file is %d bytes", ErrInvalidHeader, source.Size())
	}
	if _, err := source.ReadAt(hdr[:], 0); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if string(hdr[:len(Magic)]) != Magic {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidHeader, hdr[:len(Magic)])
	}
	return binary.BigEndian.Uint64(hdr[len(Magic):]), nil
}

func (a *Archive) loadIndex() error {
	size := a.source.Size()
	if a.indexOffset < uint64(HeaderSize) || a.indexOffset > uint64(size) { //nolint:gosec // size is non-negative
		return fmt.Errorf("%w: index offset %d outside file of %d bytes", ErrInvalidIndexHeader, a.indexOffset, size)
	}
	off := int64(a.indexOffset) //nolint:gosec // bounded by size above

	section := io.NewSectionReader(a.source, off, size-off)
	dec := value.NewDecoder(bufio.NewReaderSize(section, indexBufferSize), value.WithBaseOffset(off))

	var marker [len(IndexMagic)]byte
	if err := dec.ReadFull(marker[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndexHeader, err)
	}
	if string(marker[:]) != IndexMagic {
		return fmt.Errorf("%w: got %q at offset %d", ErrInvalidIndexHeader, marker[:], off)
	}

	metadata, err := dec.DecodeObjectBody()
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	count, err := dec.ReadUvarint()
	if err != nil {
		return fmt.Errorf("read entry count: %w", err)
	}

	index := make(map[string]Entry, min(count, 1<<16))
	paths := make([]string, 0, min(count, 1<<16))
	for range count {
		start := dec.Offset()
		path, err := dec.DecodeString()
		if err != nil {
			return fmt.Errorf("read entry path: %w", err)
		}
		offset, err := dec.ReadUint64()
		if err != nil {
			return fmt.Errorf("read entry %s: %w", path, err)
		}
		length, err := dec.ReadUint64()
		if err != nil {
			return fmt.Errorf("read entry %s: %w", path, err)
		}
		if _, dup := index[path]; dup {
			return &value.FormatError{Offset: start, Err: ErrDuplicatePath, Detail: path}
		}
		index[path] = Entry{Path: path, Offset: offset, Size: length}
		paths = append(paths, path)
	}
	slices.Sort(paths)

	a.metadata = metadata
	a.index = index
	a.paths = paths
	return nil
}

// Exists reports whether path names an asset in the archive.
// Non-absolute paths never exist.
func (a *Archive) Exists(path string) bool {
	if !paktype.IsAbsolute(path) {
		return false
	}
	_, ok := a.index[path]
	return ok
}

// Read returns the full content of the asset at path.
//
// It fails with ErrNotAbsolute for paths not starting with "/" and with
// fs.ErrNotExist for unknown assets, both wrapped in *fs.PathError.
// An index entry that points past the end of the source yields
// io.ErrUnexpectedEOF.
func (a *Archive) Read(path string) ([]byte, error) {
	if err := paktype.CheckPath(path); err != nil {
		return nil, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	entry, ok := a.index[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	if a.cache == nil {
		return a.readEntry(&entry)
	}
	return a.readCached(&entry)
}

// readCached serves path from the cache, filling it on a miss.
// Concurrent misses for the same asset share one source read.
func (a *Archive) readCached(entry *Entry) ([]byte, error) {
	key := cache.Key(a.source.SourceID(), entry.Path)
	if data, ok := a.cache.Get(key); ok {
		return data, nil
	}
	v, err, _ := a.readGroup.Do(key, func() (any, error) {
		data, err := a.readEntry(entry)
		if err != nil {
			return nil, err
		}
		if putErr := a.cache.Put(key, data); putErr != nil {
			a.log().Warn("cache put failed", "path", entry.Path, "error", putErr)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil //nolint:errcheck // type is guaranteed by the closure
}

func (a *Archive) readEntry(entry *Entry) ([]byte, error) {
	if a.maxFileSize > 0 && entry.Size > a.maxFileSize {
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: ErrTooLarge}
	}
	r, err := a.section(entry)
	if err != nil {
		return nil, err
	}
	n, err := sizing.ToInt(entry.Size, ErrSizeOverflow)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: err}
	}
	buf := make([]byte, n)
	if got, err := r.ReadAt(buf, 0); err != nil && (!errors.Is(err, io.EOF) || got < n) {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: err}
	}
	return buf, nil
}

// section returns a reader over the bytes of entry after checking that
// they lie within the source.
func (a *Archive) section(entry *Entry) (*io.SectionReader, error) {
	if _, ok := entry.End(); !ok {
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: ErrSizeOverflow}
	}
	if !sizing.FitsRange(entry.Offset, entry.Size, a.source.Size()) {
		err := fmt.Errorf("%w: range [%d, +%d) exceeds archive of %d bytes",
			io.ErrUnexpectedEOF, entry.Offset, entry.Size, a.source.Size())
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: err}
	}
	off, err := sizing.ToInt64(entry.Offset, ErrSizeOverflow)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: err}
	}
	n, err := sizing.ToInt64(entry.Size, ErrSizeOverflow)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: entry.Path, Err: err}
	}
	return io.NewSectionReader(a.source, off, n), nil
}

// Reader returns a reader over the asset at path without loading it into
// memory. The cache is bypassed.
func (a *Archive) Reader(path string) (*io.SectionReader, error) {
	if err := paktype.CheckPath(path); err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	entry, ok := a.index[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return a.section(&entry)
}

// Paths returns every asset path in lexical order.
func (a *Archive) Paths() []string {
	return slices.Clone(a.paths)
}

// Glob returns the asset paths matching a doublestar pattern such as
// "/items/**/*.png", in lexical order.
func (a *Archive) Glob(pattern string) ([]string, error) {
	return paktype.Glob(a.paths, pattern)
}

// Meta returns a copy of the metadata value stored under key.
// It fails with ErrKeyNotFound when the key is absent.
func (a *Archive) Meta(key string) (value.Value, error) {
	v, ok := a.metadata[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return value.Clone(v), nil
}

// Metadata returns a copy of the whole metadata object.
func (a *Archive) Metadata() value.Value {
	return value.CloneObject(a.metadata)
}

// Entry returns the index entry for path.
func (a *Archive) Entry(path string) (Entry, bool) {
	e, ok := a.index[path]
	return e, ok
}

// AssetSize returns the size in bytes of the asset at path.
func (a *Archive) AssetSize(path string) (int64, error) {
	if err := paktype.CheckPath(path); err != nil {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	entry, ok := a.index[path]
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return sizing.ToInt64(entry.Size, ErrSizeOverflow)
}

// Entries returns an iterator over all entries in path order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, p := range a.paths {
			if !yield(a.index[p]) {
				return
			}
		}
	}
}

// Len returns the number of assets in the archive.
func (a *Archive) Len() int {
	return len(a.paths)
}

// IndexOffset returns the byte offset of the index block.
func (a *Archive) IndexOffset() uint64 {
	return a.indexOffset
}

// Size returns the size of the archive in bytes.
func (a *Archive) Size() int64 {
	return a.source.Size()
}

// SourceID returns the identifier of the underlying source.
func (a *Archive) SourceID() string {
	return a.source.SourceID()
}

// Close releases the file opened by OpenFile. It is a no-op for archives
// created with New.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
