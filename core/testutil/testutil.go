// Package testutil provides sources, caches and archive builders for tests.
package testutil

import (
	"encoding/binary"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/pak/internal/vlq"
	"github.com/meigma/pak/value"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string
	reads    atomic.Int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + digest.FromBytes(data).Encoded(),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}

// MockCache implements a basic concurrency-safe cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get returns a copy of cached content.
func (c *MockCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Put stores a copy of data.
func (c *MockCache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes cached content for key.
func (c *MockCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// MaxBytes returns 0 (unlimited).
func (c *MockCache) MaxBytes() int64 {
	return 0
}

// SizeBytes returns the current cache size in bytes.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	return total
}

// Len returns the number of cached entries.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// RawEntry is one index record written verbatim by EncodeArchive.
type RawEntry struct {
	Path   string
	Offset uint64
	Size   uint64
}

// EncodeArchive lays out a packed archive by hand: header, payload, then
// an index holding metadata and entries exactly as given. Entry offsets
// are not checked, so tests can describe corrupt archives.
func EncodeArchive(payload []byte, metadata value.Object, entries []RawEntry) []byte {
	out := []byte("SBAsset6")
	indexOffset := uint64(16 + len(payload))
	out = binary.BigEndian.AppendUint64(out, indexOffset)
	out = append(out, payload...)
	out = append(out, "INDEX"...)
	body, err := value.AppendObjectBody(nil, metadata)
	if err != nil {
		panic(err)
	}
	out = append(out, body...)
	out = vlq.AppendUint(out, uint64(len(entries)))
	for _, e := range entries {
		out = vlq.AppendUint(out, uint64(len(e.Path)))
		out = append(out, e.Path...)
		out = binary.BigEndian.AppendUint64(out, e.Offset)
		out = binary.BigEndian.AppendUint64(out, e.Size)
	}
	return out
}

// BuildArchive packs files (path to content) in sorted path order and
// returns the archive bytes.
func BuildArchive(files map[string]string, metadata value.Object) []byte {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var payload []byte
	entries := make([]RawEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, RawEntry{
			Path:   p,
			Offset: uint64(16 + len(payload)),
			Size:   uint64(len(files[p])),
		})
		payload = append(payload, files[p]...)
	}
	return EncodeArchive(payload, metadata, entries)
}

// ZeroArchive is a ByteSource holding a packed archive with a single asset
// of zero bytes. The payload is synthesized on read, so the asset can be
// far larger than the memory the source occupies.
type ZeroArchive struct {
	head    []byte
	index   []byte
	payload int64
}

// NewZeroArchive returns an archive whose only asset, path, holds size zero bytes.
func NewZeroArchive(path string, size uint64) *ZeroArchive {
	index := EncodeArchive(nil, nil, []RawEntry{{Path: path, Offset: 16, Size: size}})[16:]
	head := binary.BigEndian.AppendUint64([]byte("SBAsset6"), 16+size)
	return &ZeroArchive{head: head, index: index, payload: int64(size)} //nolint:gosec // test sizes are small
}

// ReadAt implements io.ReaderAt.
func (z *ZeroArchive) ReadAt(p []byte, off int64) (int, error) {
	size := z.Size()
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	n := 0
	for n < len(p) && off < size {
		var c int
		switch {
		case off < 16:
			c = copy(p[n:], z.head[off:])
		case off < 16+z.payload:
			c = int(min(int64(len(p)-n), 16+z.payload-off))
			clear(p[n : n+c])
		default:
			c = copy(p[n:], z.index[off-16-z.payload:])
		}
		n += c
		off += int64(c)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the archive size in bytes.
func (z *ZeroArchive) Size() int64 {
	return 16 + z.payload + int64(len(z.index))
}

// SourceID returns a fixed identifier.
func (z *ZeroArchive) SourceID() string {
	return "zero"
}

// WriteSeeker is an in-memory io.WriteSeeker.
type WriteSeeker struct {
	buf []byte
	pos int64
}

// Write implements io.Writer, growing the buffer as needed.
func (w *WriteSeeker) Write(p []byte) (int, error) {
	end := w.pos + int64(len(p))
	if end > int64(len(w.buf)) {
		w.buf = append(w.buf, make([]byte, end-int64(len(w.buf)))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (w *WriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = w.pos + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	}
	if abs < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	w.pos = abs
	return abs, nil
}

// Bytes returns the written data.
func (w *WriteSeeker) Bytes() []byte {
	return w.buf
}
