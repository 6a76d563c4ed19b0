package value

import (
	"errors"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// ErrInvalidJSON is returned when JSON input cannot be parsed.
var ErrInvalidJSON = errors.New("value: invalid JSON")

// ParseJSON converts a JSON document into a Value.
//
// Comments and trailing commas are accepted. Numbers with no fractional
// part become Int when they fit in 64 bits; every other number becomes
// Float. null becomes Nil.
func ParseJSON(data []byte) (Value, error) {
	stripped := jsonc.ToJSON(data)
	if !gjson.ValidBytes(stripped) {
		return nil, ErrInvalidJSON
	}
	return fromJSON(gjson.ParseBytes(stripped), 0)
}

func fromJSON(r gjson.Result, depth int) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return Nil{}, nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.Number:
		return jsonNumber(r), nil
	case gjson.String:
		return String(r.Str), nil
	}

	if depth >= MaxDepth {
		return nil, ErrTooDeep
	}

	var err error
	switch {
	case r.IsArray():
		out := Array{}
		r.ForEach(func(_, e gjson.Result) bool {
			var v Value
			if v, err = fromJSON(e, depth+1); err != nil {
				return false
			}
			out = append(out, v)
			return true
		})
		return out, err
	case r.IsObject():
		out := Object{}
		r.ForEach(func(k, e gjson.Result) bool {
			var v Value
			if v, err = fromJSON(e, depth+1); err != nil {
				return false
			}
			out[k.Str] = v
			return true
		})
		return out, err
	}
	return nil, ErrInvalidJSON
}

// jsonNumber prefers an exact integer parse of the literal so large
// integers keep their precision.
func jsonNumber(r gjson.Result) Value {
	if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
		return Int(i)
	}
	f := r.Num
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Int(int64(f))
	}
	return Float(f)
}
