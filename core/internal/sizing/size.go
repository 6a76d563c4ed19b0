// Package sizing converts between index sizes and host integer types.
package sizing

import (
	"io"
	"math"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// FitsRange reports whether [off, off+n) lies within a source of the given size.
func FitsRange(off, n uint64, size int64) bool {
	if size < 0 {
		return false
	}
	end := off + n
	return end >= off && end <= uint64(size)
}

// ReadAllLimit reads r to EOF and fails with tooLarge when more than
// limit bytes are available. A zero limit disables the check.
func ReadAllLimit(r io.Reader, limit uint64, tooLarge error) ([]byte, error) {
	if limit == 0 {
		return io.ReadAll(r)
	}
	if limit > uint64(math.MaxInt64-1) {
		return io.ReadAll(r)
	}
	lr := &io.LimitedReader{R: r, N: int64(limit) + 1} //nolint:gosec // checked above
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > limit {
		return nil, tooLarge
	}
	return data, nil
}
