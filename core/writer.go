package pak

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/meigma/pak/core/internal/counting"
	"github.com/meigma/pak/core/internal/paktype"
	"github.com/meigma/pak/internal/vlq"
	"github.com/meigma/pak/value"
)

const writeBufferSize = 256 << 10

// Writer streams assets into a packed archive.
//
// Asset data is written as it arrives; the index is buffered in memory and
// written by Close, which then seeks back to patch the header. Writer is
// not safe for concurrent use.
type Writer struct {
	ws       io.WriteSeeker
	start    int64
	bw       *bufio.Writer
	cw       *counting.Writer
	enc      *value.Encoder
	metadata value.Object
	entries  []Entry
	seen     map[string]struct{}
	err      error // sticky; set once the output is in an unknown state
	closed   bool
}

// NewWriter writes an archive header to ws at its current position and
// returns a Writer for the archive body. Offsets in the index are relative
// to that position.
func NewWriter(ws io.WriteSeeker) (*Writer, error) {
	start, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locate archive start: %w", err)
	}
	bw := bufio.NewWriterSize(ws, writeBufferSize)
	w := &Writer{
		ws:       ws,
		start:    start,
		bw:       bw,
		cw:       &counting.Writer{W: bw},
		metadata: value.Object{},
		seen:     make(map[string]struct{}),
	}
	w.enc = value.NewEncoder(w.cw)

	var hdr [HeaderSize]byte
	copy(hdr[:], Magic)
	if _, err := w.cw.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// SetMetadata replaces the metadata stored in the index.
// The object is copied.
func (w *Writer) SetMetadata(o value.Object) error {
	if w.closed {
		return ErrClosed
	}
	w.metadata = value.CloneObject(o)
	if w.metadata == nil {
		w.metadata = value.Object{}
	}
	return nil
}

// WriteFile copies r into the archive as the asset at path and returns
// the number of bytes written.
//
// path must be absolute and must not have been written before. If copying
// fails the Writer is unusable and every later call returns the same error.
func (w *Writer) WriteFile(path string, r io.Reader) (int64, error) {
	if err := w.check(path); err != nil {
		return 0, err
	}
	off := w.cw.N
	n, err := io.Copy(w.cw, r)
	if err != nil {
		w.err = fmt.Errorf("write %s: %w", path, err)
		return n, w.err
	}
	w.add(path, off, uint64(n)) //nolint:gosec // io.Copy never returns a negative count
	return n, nil
}

// Add writes data as the asset at path.
func (w *Writer) Add(path string, data []byte) error {
	if err := w.check(path); err != nil {
		return err
	}
	off := w.cw.N
	if _, err := w.cw.Write(data); err != nil {
		w.err = fmt.Errorf("write %s: %w", path, err)
		return w.err
	}
	w.add(path, off, uint64(len(data)))
	return nil
}

func (w *Writer) check(path string) error {
	switch {
	case w.closed:
		return ErrClosed
	case w.err != nil:
		return w.err
	}
	if err := paktype.CheckPath(path); err != nil {
		return fmt.Errorf("%w: %q", err, path)
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidName, path)
	}
	if _, ok := w.seen[path]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, path)
	}
	return nil
}

func (w *Writer) add(path string, off, size uint64) {
	w.seen[path] = struct{}{}
	w.entries = append(w.entries, Entry{Path: path, Offset: off, Size: size})
}

// Len returns the number of assets written so far.
func (w *Writer) Len() int {
	return len(w.entries)
}

// Close writes the index block and patches the header with its offset.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	indexOffset := w.cw.N
	if err := w.writeIndex(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	end := w.cw.N

	var off [8]byte
	binary.BigEndian.PutUint64(off[:], indexOffset)
	if _, err := w.ws.Seek(w.start+int64(len(Magic)), io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}
	if _, err := w.ws.Write(off[:]); err != nil {
		return fmt.Errorf("patch header: %w", err)
	}
	if _, err := w.ws.Seek(w.start+int64(end), io.SeekStart); err != nil { //nolint:gosec // archive size fits in int64
		return fmt.Errorf("seek to end: %w", err)
	}
	return nil
}

func (w *Writer) writeIndex() error {
	if _, err := io.WriteString(w.cw, IndexMagic); err != nil {
		return err
	}
	if err := w.enc.EncodeObjectBody(w.metadata); err != nil {
		return err
	}
	if _, err := w.cw.Write(vlq.AppendUint(nil, uint64(len(w.entries)))); err != nil {
		return err
	}
	var rec [16]byte
	for _, e := range w.entries {
		if err := w.enc.EncodeString(e.Path); err != nil {
			return err
		}
		binary.BigEndian.PutUint64(rec[:8], e.Offset)
		binary.BigEndian.PutUint64(rec[8:], e.Size)
		if _, err := w.cw.Write(rec[:]); err != nil {
			return err
		}
	}
	return nil
}
