package filter

import (
	"fmt"
	"strings"
)

// DuplicateKeyPolicy decides what happens when one object level carries the
// same key twice, either literally or after key trimming.
type DuplicateKeyPolicy int

const (
	// DuplicateKeysReject fails the compilation with KindMalformedFilter.
	DuplicateKeysReject DuplicateKeyPolicy = iota

	// DuplicateKeysLastWins follows object-literal semantics: the key keeps
	// the position of its first occurrence and the value of its last.
	DuplicateKeysLastWins
)

// String returns the policy name used in configuration files.
func (p DuplicateKeyPolicy) String() string {
	switch p {
	case DuplicateKeysReject:
		return "reject"
	case DuplicateKeysLastWins:
		return "last-wins"
	default:
		return fmt.Sprintf("DuplicateKeyPolicy(%d)", int(p))
	}
}

// ParseDuplicateKeyPolicy parses "reject" or "last-wins".
func ParseDuplicateKeyPolicy(s string) (DuplicateKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return DuplicateKeysReject, nil
	case "last-wins", "lastwins", "last_wins":
		return DuplicateKeysLastWins, nil
	default:
		return 0, fmt.Errorf("unknown duplicate key policy %q: must be reject or last-wins", s)
	}
}

// Normalize canonicalizes a raw filter object by trimming surrounding
// whitespace from every key at every nesting level.
//
// Object values that are themselves objects are recursed into; arrays and
// primitives pass through unchanged (elements of $and/$or arrays are
// normalized when the parser reaches their scope). The input is never
// modified. A nil input normalizes to an empty object.
func Normalize(raw any, policy DuplicateKeyPolicy) (*Object, error) {
	return normalizeAt(raw, policy, "")
}

func normalizeAt(raw any, policy DuplicateKeyPolicy, path string) (*Object, error) {
	if raw == nil {
		return &Object{}, nil
	}
	obj, ok := raw.(*Object)
	if !ok {
		return nil, malformed(path, "expected an object, got %s", describe(raw))
	}
	return normalizeObject(obj, policy, path)
}

func normalizeObject(obj *Object, policy DuplicateKeyPolicy, path string) (*Object, error) {
	out := &Object{Members: make([]Member, 0, len(obj.Members))}
	index := make(map[string]int, len(obj.Members))

	for _, m := range obj.Members {
		key := strings.TrimSpace(m.Key)
		memberPath := joinPath(path, key)
		if key == "" {
			return nil, malformed(path, "empty key %q", m.Key)
		}

		value := m.Value
		if nested, ok := value.(*Object); ok {
			n, err := normalizeObject(nested, policy, memberPath)
			if err != nil {
				return nil, err
			}
			value = n
		}

		if at, dup := index[key]; dup {
			if policy != DuplicateKeysLastWins {
				return nil, malformed(memberPath, "duplicate key %q", key)
			}
			out.Members[at].Value = value
			continue
		}

		index[key] = len(out.Members)
		out.Members = append(out.Members, Member{Key: key, Value: value})
	}

	return out, nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// describe names a raw value's JSON type for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Object:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
