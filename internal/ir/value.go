package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface representing a filter literal.
// Only Null, String, Int, Float, Bool, and Array implement this.
// Objects are never literals: an object in value position is an
// operator object and is interpreted by the filter parser.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents a JSON null literal.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string literal.
type String string

func (String) irValue() {}

// Int represents an integer literal.
// JSON numbers without a fraction or exponent decode to Int.
type Int int64

func (Int) irValue() {}

// Float represents a non-integer numeric literal.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean literal.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered list of literals ($in, $notIn, $between).
type Array []Value

func (Array) irValue() {}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		return []byte(formatFloat(float64(val))), nil
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// FromJSONNumber converts a json.Number to Int when it has no fraction or
// exponent and fits in int64, and to Float otherwise.
func FromJSONNumber(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("number out of range: %s", s)
	}
	return Float(f), nil
}

// FromAny converts a decoded Go value into a Value.
//
// Accepts the shapes produced by encoding/json (with or without UseNumber),
// gopkg.in/yaml.v3 and hand-built Go literals. Maps are rejected: a literal
// can never be an object.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return FromJSONNumber(val)
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(val), nil
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = String(s)
		}
		return arr, nil
	case []int:
		arr := make(Array, len(val))
		for i, n := range val {
			arr[i] = Int(n)
		}
		return arr, nil
	case map[string]any:
		return nil, fmt.Errorf("object cannot be used as a literal value")
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// fromFloat keeps whole floats as Int so that 18 and 18.0 bind identically.
// Values decoded by encoding/json without UseNumber arrive as float64.
func fromFloat(f float64) (Value, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("number out of range: %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f)), nil
	}
	return Float(f), nil
}

// ToParam converts a Value to the Go native type handed to database/sql.
// Arrays convert element-wise into []any.
func ToParam(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToParam(elem)
		}
		return out
	default:
		return nil
	}
}

// IsScalar reports whether v is a single literal rather than an Array.
func IsScalar(v Value) bool {
	_, isArray := v.(Array)
	return !isArray
}

// Kind returns a short, stable name for v's type, used in error messages.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
