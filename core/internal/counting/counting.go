// Package counting wraps readers and writers to track stream positions.
package counting

import (
	"errors"
	"io"
)

// ErrOverflow indicates a counter exceeded its maximum value.
var ErrOverflow = errors.New("counter overflow")

// Writer wraps a writer and counts bytes written.
type Writer struct {
	W io.Writer
	N uint64
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.W.Write(p)
	if n > 0 {
		if w.N > ^uint64(0)-uint64(n) { //nolint:gosec // n is non-negative
			return n, ErrOverflow
		}
		w.N += uint64(n) //nolint:gosec // overflow checked above
	}
	return n, err
}

// Reader wraps a reader and counts bytes read.
type Reader struct {
	R io.Reader
	N uint64
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	if n > 0 {
		if r.N > ^uint64(0)-uint64(n) { //nolint:gosec // n is non-negative
			return n, ErrOverflow
		}
		r.N += uint64(n) //nolint:gosec // overflow checked above
	}
	return n, err
}
