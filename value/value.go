// Package value implements the self-describing tagged value model used by
// packed asset archives for metadata and structured records.
//
// A Value is one of seven variants. In the binary encoding each value starts
// with a single tag byte (1 through 7) that names the variant, followed by a
// variant-specific payload:
//
//	1 Nil     no payload
//	2 Float   8-byte big-endian IEEE-754 double
//	3 Bool    1 byte, nonzero is true
//	4 Int     zig-zag varint
//	5 String  varint length, UTF-8 bytes
//	6 Array   varint count, values
//	7 Object  varint count, (string key, value) pairs
//
// Objects are Go maps, so their encoded key order follows map iteration and
// is not stable across encodes. Only semantic equality survives a round trip.
package value

import (
	"math"
	"slices"
	"strconv"
)

// Kind identifies the variant of a Value. Its numeric value is the tag byte
// used in the binary encoding.
type Kind uint8

const (
	KindNil Kind = iota + 1
	KindFloat
	KindBool
	KindInt
	KindString
	KindArray
	KindObject
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Valid reports whether k is one of the seven defined kinds.
func (k Kind) Valid() bool {
	return k >= KindNil && k <= KindObject
}

// Value is a tagged value. The set of implementations is closed: Nil, Float,
// Bool, Int, String, Array and Object.
//
// A nil Value is treated as Nil everywhere in this package.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	// Nil is the empty value.
	Nil struct{}

	// Float is a 64-bit IEEE-754 floating point value.
	Float float64

	// Bool is a boolean value.
	Bool bool

	// Int is a signed 64-bit integer value.
	Int int64

	// String is a UTF-8 string value.
	String string

	// Array is an ordered sequence of values.
	Array []Value

	// Object maps string keys to values. Key order carries no meaning.
	Object map[string]Value
)

func (Nil) Kind() Kind    { return KindNil }
func (Float) Kind() Kind  { return KindFloat }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Nil) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Int) isValue()    {}
func (String) isValue() {}
func (Array) isValue()  {}
func (Object) isValue() {}

// KindOf returns the kind of v, reporting KindNil for a nil interface.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNil
	}
	return v.Kind()
}

// Get returns the value stored under key.
func (o Object) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// Keys returns the object's keys in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a deep copy of v. Arrays and objects are copied recursively
// so the result shares no backing storage with v.
func Clone(v Value) Value {
	switch x := v.(type) {
	case nil:
		return Nil{}
	case Array:
		if x == nil {
			return Array(nil)
		}
		out := make(Array, len(x))
		for i, e := range x {
			out[i] = Clone(e)
		}
		return out
	case Object:
		return CloneObject(x)
	default:
		return v
	}
}

// CloneObject returns a deep copy of o.
func CloneObject(o Object) Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, e := range o {
		out[k] = Clone(e)
	}
	return out
}

// Equal reports whether a and b are structurally equal. Object key order is
// ignored. Floats compare by bit pattern, so NaN equals itself.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch x := a.(type) {
	case nil, Nil:
		return true
	case Float:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Float)))
	case Bool:
		return x == b.(Bool)
	case Int:
		return x == b.(Int)
	case String:
		return x == b.(String)
	case Array:
		y := b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y := b.(Object)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

// ToAny converts v into plain Go values suitable for encoding/json or YAML
// marshalling: nil, float64, bool, int64, string, []any and map[string]any.
func ToAny(v Value) any {
	switch x := v.(type) {
	case nil, Nil:
		return nil
	case Float:
		return float64(x)
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case String:
		return string(x)
	case Array:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToAny(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = ToAny(e)
		}
		return out
	}
	return nil
}
