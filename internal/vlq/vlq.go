// Package vlq implements the variable-length integer encoding used by
// packed asset archives.
//
// Values are written most-significant group first in 7-bit groups. Every
// byte except the last has its high bit set. Signed values are zig-zag
// mapped onto unsigned values before encoding.
package vlq

import (
	"errors"
	"io"
)

// MaxLen is the maximum number of bytes needed to encode a uint64.
const MaxLen = 10

// ErrOversized is returned when a varint does not terminate within MaxLen bytes.
var ErrOversized = errors.New("oversized varint")

// UintLen returns the number of bytes AppendUint uses for v.
func UintLen(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// AppendUint appends the canonical encoding of v to dst.
func AppendUint(dst []byte, v uint64) []byte {
	n := UintLen(v)
	var buf [MaxLen]byte
	buf[n-1] = byte(v & 0x7f)
	for i := n - 2; i >= 0; i-- {
		v >>= 7
		buf[i] = byte(v&0x7f) | 0x80
	}
	return append(dst, buf[:n]...)
}

// AppendInt appends the zig-zag encoding of v to dst.
func AppendInt(dst []byte, v int64) []byte {
	return AppendUint(dst, ZigZag(v))
}

// ZigZag maps a signed value onto an unsigned one so that small magnitudes
// stay small: 0, -1, 1, -2 map to 0, 1, 2, 3.
func ZigZag(v int64) uint64 {
	if v < 0 {
		return uint64(-(v+1))<<1 | 1
	}
	return uint64(v) << 1
}

// UnZigZag reverses ZigZag.
func UnZigZag(u uint64) int64 {
	if u&1 == 0 {
		return int64(u >> 1) //nolint:gosec // top bit is clear after the shift
	}
	return -int64(u>>1) - 1 //nolint:gosec // top bit is clear after the shift
}

// ReadUint decodes one unsigned varint from r.
//
// A value whose groups would overflow 64 bits is reported as ErrOversized.
// io.EOF is returned only when r is exhausted before the first byte;
// running out mid-value returns io.ErrUnexpectedEOF.
func ReadUint(r io.ByteReader) (uint64, error) {
	var v uint64
	for i := range MaxLen {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if v>>(64-7) != 0 {
			return 0, ErrOversized
		}
		v = v<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrOversized
}

// ReadInt decodes one zig-zag signed varint from r.
func ReadInt(r io.ByteReader) (int64, error) {
	u, err := ReadUint(r)
	if err != nil {
		return 0, err
	}
	return UnZigZag(u), nil
}

// Uint decodes an unsigned varint from the front of buf and reports how
// many bytes it consumed.
func Uint(buf []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < MaxLen; i++ {
		if i >= len(buf) {
			if i == 0 {
				return 0, 0, io.EOF
			}
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[i]
		if v>>(64-7) != 0 {
			return 0, 0, ErrOversized
		}
		v = v<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrOversized
}
