package value

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/meigma/pak/internal/vlq"
)

const (
	// DefaultMaxLen bounds string lengths accepted by a Decoder (256MB).
	DefaultMaxLen = 256 << 20

	// MaxDepth bounds array and object nesting accepted by a Decoder.
	MaxDepth = 512

	// maxPrealloc caps slice and map capacity taken from untrusted counts.
	maxPrealloc = 1024
)

// Sentinel errors.
var (
	// ErrUnsupportedType is returned when a tag byte is not in the range 1-7.
	ErrUnsupportedType = errors.New("value: unsupported type")

	// ErrInvalidUTF8 is returned when a string or key is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("value: invalid UTF-8")

	// ErrOversizedVarint is returned when a varint does not terminate within 10 bytes.
	ErrOversizedVarint = errors.New("value: oversized varint")

	// ErrTooLarge is returned when a length prefix exceeds the decoder limit.
	ErrTooLarge = errors.New("value: length exceeds limit")

	// ErrTooDeep is returned when values nest deeper than MaxDepth.
	ErrTooDeep = errors.New("value: nesting too deep")

	// ErrTrailingData is returned by Unmarshal when bytes remain after the value.
	ErrTrailingData = errors.New("value: trailing data")
)

// FormatError describes malformed encoded data and where it was found.
type FormatError struct {
	// Offset is the byte offset at which the problem was detected.
	Offset int64

	// Err is one of the package sentinel errors or an I/O error.
	Err error

	// Detail optionally carries the offending value.
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Detail)
	}
	return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Marshal returns the binary encoding of v.
func Marshal(v Value) ([]byte, error) {
	return Append(nil, v)
}

// Unmarshal decodes a single value that must occupy all of data.
func Unmarshal(data []byte) (Value, error) {
	d := NewDecoder(bytes.NewReader(data))
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if d.Offset() != int64(len(data)) {
		return nil, &FormatError{Offset: d.Offset(), Err: ErrTrailingData}
	}
	return v, nil
}

// Append appends the binary encoding of v to dst.
func Append(dst []byte, v Value) ([]byte, error) {
	switch x := v.(type) {
	case nil, Nil:
		return append(dst, byte(KindNil)), nil
	case Float:
		dst = append(dst, byte(KindFloat))
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(float64(x))), nil
	case Bool:
		if x {
			return append(dst, byte(KindBool), 1), nil
		}
		return append(dst, byte(KindBool), 0), nil
	case Int:
		dst = append(dst, byte(KindInt))
		return vlq.AppendInt(dst, int64(x)), nil
	case String:
		dst = append(dst, byte(KindString))
		return AppendString(dst, string(x))
	case Array:
		dst = append(dst, byte(KindArray))
		dst = vlq.AppendUint(dst, uint64(len(x)))
		var err error
		for _, e := range x {
			if dst, err = Append(dst, e); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case Object:
		dst = append(dst, byte(KindObject))
		return AppendObjectBody(dst, x)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// AppendString appends a varint length prefix and the bytes of s.
func AppendString(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUTF8, s)
	}
	dst = vlq.AppendUint(dst, uint64(len(s)))
	return append(dst, s...), nil
}

// AppendObjectBody appends the untagged encoding of o: a varint count
// followed by key/value pairs in map iteration order.
func AppendObjectBody(dst []byte, o Object) ([]byte, error) {
	dst = vlq.AppendUint(dst, uint64(len(o)))
	var err error
	for k, e := range o {
		if dst, err = AppendString(dst, k); err != nil {
			return nil, err
		}
		if dst, err = Append(dst, e); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// Encoder writes encoded values to an output stream.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder returns an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the tagged encoding of v.
func (e *Encoder) Encode(v Value) error {
	return e.flush(Append(e.buf[:0], v))
}

// EncodeObjectBody writes o without a leading tag byte.
func (e *Encoder) EncodeObjectBody(o Object) error {
	return e.flush(AppendObjectBody(e.buf[:0], o))
}

// EncodeString writes a length-prefixed string without a tag byte.
func (e *Encoder) EncodeString(s string) error {
	return e.flush(AppendString(e.buf[:0], s))
}

func (e *Encoder) flush(buf []byte, err error) error {
	if err != nil {
		return err
	}
	e.buf = buf
	_, err = e.w.Write(buf)
	return err
}

// byteReader is the minimal input a Decoder reads from.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Decoder reads encoded values from an input stream, tracking the byte
// offset of everything it consumes so errors can point at corrupt data.
//
// If the input does not implement io.ByteReader it is wrapped in a
// bufio.Reader, which may read ahead of the last decoded value.
type Decoder struct {
	r      byteReader
	off    int64
	maxLen uint64
	depth  int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithBaseOffset sets the offset reported for the first byte of input.
// Use it when the stream starts in the middle of a larger file.
func WithBaseOffset(off int64) DecoderOption {
	return func(d *Decoder) {
		d.off = off
	}
}

// WithMaxLen limits string lengths accepted by the decoder.
// Set to 0 to disable the limit.
func WithMaxLen(n uint64) DecoderOption {
	return func(d *Decoder) {
		d.maxLen = n
	}
}

// NewDecoder returns a decoder that reads from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d := &Decoder{r: br, maxLen: DefaultMaxLen}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Offset returns the offset of the next byte the decoder will read.
func (d *Decoder) Offset() int64 {
	return d.off
}

// ReadByte implements io.ByteReader.
func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err == nil {
		d.off++
	}
	return b, err
}

// ReadFull reads exactly len(p) bytes.
func (d *Decoder) ReadFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.off += int64(n)
	if err == io.EOF && len(p) > 0 {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// ReadUint64 reads a fixed 8-byte big-endian integer.
func (d *Decoder) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := d.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadUvarint reads an unsigned varint.
func (d *Decoder) ReadUvarint() (uint64, error) {
	start := d.off
	v, err := vlq.ReadUint(d)
	if err != nil {
		return 0, d.varintError(start, err)
	}
	return v, nil
}

// ReadVarint reads a zig-zag signed varint.
func (d *Decoder) ReadVarint() (int64, error) {
	start := d.off
	v, err := vlq.ReadInt(d)
	if err != nil {
		return 0, d.varintError(start, err)
	}
	return v, nil
}

func (d *Decoder) varintError(start int64, err error) error {
	if errors.Is(err, vlq.ErrOversized) {
		return &FormatError{Offset: start, Err: ErrOversizedVarint}
	}
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// DecodeString reads a length-prefixed UTF-8 string.
func (d *Decoder) DecodeString() (string, error) {
	start := d.off
	n, err := d.ReadUvarint()
	if err != nil {
		return "", err
	}
	if d.maxLen > 0 && n > d.maxLen {
		return "", &FormatError{Offset: start, Err: ErrTooLarge, Detail: fmt.Sprintf("string length %d", n)}
	}
	if n > math.MaxInt {
		return "", &FormatError{Offset: start, Err: ErrTooLarge, Detail: fmt.Sprintf("string length %d", n)}
	}
	buf := make([]byte, int(n))
	body := d.off
	if err := d.ReadFull(buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", &FormatError{Offset: body, Err: ErrInvalidUTF8}
	}
	return string(buf), nil
}

// Decode reads one tagged value.
func (d *Decoder) Decode() (Value, error) {
	start := d.off
	tag, err := d.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch Kind(tag) {
	case KindNil:
		return Nil{}, nil
	case KindFloat:
		bits, err := d.ReadUint64()
		if err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(bits)), nil
	case KindBool:
		b, err := d.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		return Bool(b != 0), nil
	case KindInt:
		i, err := d.ReadVarint()
		if err != nil {
			return nil, err
		}
		return Int(i), nil
	case KindString:
		s, err := d.DecodeString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case KindArray:
		return d.decodeArray(start)
	case KindObject:
		if err := d.enter(start); err != nil {
			return nil, err
		}
		defer d.leave()
		return d.DecodeObjectBody()
	default:
		return nil, &FormatError{Offset: start, Err: ErrUnsupportedType, Detail: fmt.Sprintf("tag %d", tag)}
	}
}

func (d *Decoder) decodeArray(start int64) (Value, error) {
	if err := d.enter(start); err != nil {
		return nil, err
	}
	defer d.leave()

	n, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	out := make(Array, 0, min(n, maxPrealloc))
	for i := uint64(0); i < n; i++ {
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeObjectBody reads an untagged object: a varint count followed by
// key/value pairs. A repeated key keeps the last value.
func (d *Decoder) DecodeObjectBody() (Object, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	out := make(Object, min(n, maxPrealloc))
	for i := uint64(0); i < n; i++ {
		k, err := d.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (d *Decoder) enter(off int64) error {
	if d.depth >= MaxDepth {
		return &FormatError{Offset: off, Err: ErrTooDeep}
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
