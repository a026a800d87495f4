package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupportedValue is returned when a value has no attribute representation
var ErrUnsupportedValue = errors.New("unsupported attribute value")

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindMap
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a typed attribute value: string, number, bool or nested map.
// The zero Value is invalid and encodes as null.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	m    Attributes
}

// String creates a string value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int creates an integer value
func Int(i int) Value {
	return Value{kind: KindInt, num: int64(i)}
}

// Int64 creates an integer value
func Int64(i int64) Value {
	return Value{kind: KindInt, num: i}
}

// Float creates a float value. NaN and infinities have no JSON
// number form and are stored as their string spelling.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Value{kind: KindFloat, flt: f}
}

// Bool creates a boolean value
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Map creates a nested map value from ordered attributes.
// Unset values are dropped as in Attributes.Set.
func Map(attrs ...Attribute) Value {
	var m Attributes
	for _, a := range attrs {
		m.Set(a.Key, a.Value.clone())
	}
	return Value{kind: KindMap, m: m}
}

// ValueOf converts a native Go value into a Value.
// Maps are converted with their keys sorted.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int64(int64(x)), nil
	case int16:
		return Int64(int64(x)), nil
	case int32:
		return Int64(int64(x)), nil
	case int64:
		return Int64(x), nil
	case uint8:
		return Int64(int64(x)), nil
	case uint16:
		return Int64(int64(x)), nil
	case uint32:
		return Int64(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Float(float64(x)), nil
		}
		return Int64(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Float(float64(x)), nil
		}
		return Int64(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		return numberValue(x), nil
	case Attributes:
		return Value{kind: KindMap, m: x.Clone()}, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		attrs := make(Attributes, 0, len(keys))
		for _, k := range keys {
			inner, err := ValueOf(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			attrs = append(attrs, Attribute{Key: k, Value: inner})
		}
		return Value{kind: KindMap, m: attrs}, nil
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return ValueOf(m)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Kind returns the variant held by the value
func (v Value) Kind() Kind {
	return v.kind
}

// AsString returns the string variant or ""
func (v Value) AsString() string {
	return v.str
}

// AsInt returns the integer variant or 0
func (v Value) AsInt() int64 {
	return v.num
}

// AsFloat returns the numeric value as float64
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.num)
	}
	return v.flt
}

// AsBool returns the boolean variant or false
func (v Value) AsBool() bool {
	return v.kind == KindBool && v.num != 0
}

// AsMap returns the nested map variant or nil
func (v Value) AsMap() Attributes {
	return v.m
}

// Interface returns the value as a plain Go value
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.num != 0
	case KindMap:
		return v.m.ToMap()
	default:
		return nil
	}
}

// Equal reports whether two values hold the same variant and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt, KindBool:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt
	case KindMap:
		return v.m.Equal(o.m)
	default:
		return true
	}
}

func (v Value) clone() Value {
	if v.kind == KindMap {
		v.m = v.m.Clone()
	}
	return v
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil), nil
}

func (v Value) appendJSON(b []byte) []byte {
	switch v.kind {
	case KindString:
		return appendString(b, v.str)
	case KindInt:
		return strconv.AppendInt(b, v.num, 10)
	case KindFloat:
		return appendFloat(b, v.flt)
	case KindBool:
		return strconv.AppendBool(b, v.num != 0)
	case KindMap:
		return v.m.appendJSON(b)
	default:
		return append(b, "null"...)
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberValue(t), nil
	case json.Delim:
		if t != '{' {
			return Value{}, fmt.Errorf("%w: array", ErrUnsupportedValue)
		}
		attrs, err := decodeObject(dec)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindMap, m: attrs}, nil
	default:
		return Value{}, fmt.Errorf("%w: null", ErrUnsupportedValue)
	}
}

// numberValue keeps integers without fraction or exponent as ints
func numberValue(n json.Number) Value {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int64(i)
		}
	}
	f, _ := strconv.ParseFloat(s, 64)
	return Float(f)
}

// appendFloat always emits a fraction or exponent so the value decodes as a float
func appendFloat(b []byte, f float64) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, f, 'g', -1, 64)
	if !bytes.ContainsAny(b[start:], ".eE") {
		b = append(b, ".0"...)
	}
	return b
}

func appendString(b []byte, s string) []byte {
	quoted, _ := json.Marshal(s)
	return append(b, quoted...)
}
