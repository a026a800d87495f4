package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attribute is a single key/value pair
type Attribute struct {
	Key   string
	Value Value
}

// Attributes is an ordered set of key/value pairs.
// It encodes as a JSON object with keys in insertion order.
type Attributes []Attribute

// Set stores a value, replacing an existing key in place.
// An unset Value has no wire form and is ignored.
func (a *Attributes) Set(key string, v Value) {
	if v.kind == KindInvalid {
		return
	}
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = v
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: v})
}

// Get returns the value stored under key
func (a Attributes) Get(key string) (Value, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of attributes
func (a Attributes) Len() int {
	return len(a)
}

// Keys returns the keys in insertion order
func (a Attributes) Keys() []string {
	keys := make([]string, len(a))
	for i, attr := range a {
		keys[i] = attr.Key
	}
	return keys
}

// Clone returns a deep copy. An empty set clones to nil.
func (a Attributes) Clone() Attributes {
	if len(a) == 0 {
		return nil
	}
	out := make(Attributes, len(a))
	for i, attr := range a {
		out[i] = Attribute{Key: attr.Key, Value: attr.Value.clone()}
	}
	return out
}

// Merge returns a copy of a with every entry of b set over it
func (a Attributes) Merge(b Attributes) Attributes {
	out := a.Clone()
	for _, attr := range b {
		out.Set(attr.Key, attr.Value.clone())
	}
	return out
}

// Equal reports whether both sets hold the same entries in the same order
func (a Attributes) Equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

// ToMap converts the set into a plain map
func (a Attributes) ToMap() map[string]any {
	m := make(map[string]any, len(a))
	for _, attr := range a {
		m[attr.Key] = attr.Value.Interface()
	}
	return m
}

// MarshalJSON implements json.Marshaler
func (a Attributes) MarshalJSON() ([]byte, error) {
	return a.appendJSON(make([]byte, 0, 16*len(a)+2)), nil
}

func (a Attributes) appendJSON(b []byte) []byte {
	b = append(b, '{')
	written := 0
	for _, attr := range a {
		// unset values can still arrive through literals or Map
		if attr.Value.kind == KindInvalid {
			continue
		}
		if written > 0 {
			b = append(b, ',')
		}
		written++
		b = appendString(b, attr.Key)
		b = append(b, ':')
		b = attr.Value.appendJSON(b)
	}
	return append(b, '}')
}

// UnmarshalJSON implements json.Unmarshaler, preserving wire order
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes must be an object, got %v", tok)
	}

	attrs, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*a = attrs
	return nil
}

// decodeObject reads members up to and including the closing brace
func decodeObject(dec *json.Decoder) (Attributes, error) {
	var attrs Attributes
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}

		val, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		attrs.Set(key, val)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return attrs, nil
}
