package pak

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
)

// ByteSource provides random access to a packed archive.
//
// Implementations exist for local files, seekable streams, and HTTP range
// requests. SourceID must return a stable identifier for the underlying
// content; it keys cached assets.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// FileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is captured at construction.
type FileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// NewFileSource creates a FileSource from an open file.
//
// The SourceID is derived from the absolute path, size and modification
// time, so rewriting the file invalidates cached assets.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	absPath, err := filepath.Abs(f.Name())
	if err != nil {
		absPath = f.Name()
	}
	id := digest.FromString(fmt.Sprintf("%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano()))
	return &FileSource{file: f, size: info.Size(), sourceID: "file:" + id.Encoded()}, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (s *FileSource) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the file content.
func (s *FileSource) SourceID() string {
	return s.sourceID
}

// SeekSource adapts an io.ReadSeeker to ByteSource.
//
// Reads seek and read under a mutex, so a SeekSource is safe for
// concurrent use even though the underlying stream is not.
type SeekSource struct {
	mu       sync.Mutex
	rs       io.ReadSeeker
	size     int64
	sourceID string
}

// NewSeekSource wraps rs. The stream size is found by seeking to its end.
func NewSeekSource(rs io.ReadSeeker, sourceID string) (*SeekSource, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek to end: %w", err)
	}
	return &SeekSource{rs: rs, size: size, sourceID: sourceID}, nil
}

// ReadAt implements io.ReaderAt.
func (s *SeekSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// Size returns the stream size.
func (s *SeekSource) Size() int64 {
	return s.size
}

// SourceID returns the identifier given at construction.
func (s *SeekSource) SourceID() string {
	return s.sourceID
}

var (
	_ ByteSource = (*FileSource)(nil)
	_ ByteSource = (*SeekSource)(nil)
)
