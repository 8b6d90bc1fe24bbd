package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Object is a raw filter object that keeps member order and duplicate keys.
//
// encoding/json collapses duplicate keys into a map (last one wins, silently).
// Object keeps every member so the normalizer can apply the configured
// DuplicateKeyPolicy instead.
type Object struct {
	Members []Member
}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Len returns the number of members, duplicates included.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Members)
}

// Get returns the value of the last member named key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	for i := len(o.Members) - 1; i >= 0; i-- {
		if o.Members[i].Key == key {
			return o.Members[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether a member named key exists.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns member keys in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.Members))
	for i, m := range o.Members {
		keys[i] = m.Key
	}
	return keys
}

// MarshalJSON writes members in order. Duplicate keys are written as-is.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o.Members {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", m.Key, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping order and duplicates.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("filters must be a JSON object")
	}
	*o = *obj
	return nil
}

// Decode parses a JSON document into raw filter values.
//
// Objects decode to *Object, arrays to []any, numbers to json.Number,
// and strings, booleans and null to their Go equivalents.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool, nil
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &Object{}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("expected object key, got %v", kt)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			obj.Members = append(obj.Members, Member{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil

	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", len(arr), err)
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// FromMap converts a programmatically built filter into an Object.
// Go maps have no order, so keys are sorted to keep compilation
// deterministic. Nested maps, including those inside slices, are converted
// recursively.
func FromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := &Object{Members: make([]Member, 0, len(keys))}
	for _, k := range keys {
		obj.Members = append(obj.Members, Member{Key: k, Value: fromGo(m[k])})
	}
	return obj
}

func fromGo(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return FromMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = fromGo(elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = FromMap(elem)
		}
		return out
	default:
		return v
	}
}
