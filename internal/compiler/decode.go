package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strapiql/internal/filter"
)

// Request keys recognised by the decoders.
const (
	KeyFilters         = "filters"
	KeySort            = "sort"
	KeyFields          = "fields"
	KeyPopulate        = "populate"
	KeyShowSoftDeleted = "showSoftDeleted"
	KeyLimit           = "limit"
	KeyOffset          = "offset"
)

// DecodeQuerySpec decodes a JSON request body such as:
//
//	{
//	  "filters": {"name": {"$containsi": "john"}},
//	  "sort": "name:desc,createdAt",
//	  "fields": ["id", "name"],
//	  "populate": ["roles"],
//	  "showSoftDeleted": "inclusive",
//	  "limit": 20,
//	  "offset": 40
//	}
//
// "sort", "fields" and "populate" accept a comma-separated string or an
// array of strings. Filters are kept raw, with key order and duplicates
// intact, and are parsed by Compile.
func DecodeQuerySpec(data []byte) (QuerySpec, error) {
	raw, err := filter.Decode(data)
	if err != nil {
		return QuerySpec{}, fmt.Errorf("decode query: %w", err)
	}
	return specFromRaw(raw)
}

// DecodeQuerySpecYAML decodes the YAML form of a request. The structure
// matches DecodeQuerySpec.
func DecodeQuerySpecYAML(data []byte) (QuerySpec, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return QuerySpec{}, fmt.Errorf("decode query: %w", err)
	}
	raw, err := filter.FromYAML(&node)
	if err != nil {
		return QuerySpec{}, fmt.Errorf("decode query: %w", err)
	}
	return specFromRaw(raw)
}

func specFromRaw(raw any) (QuerySpec, error) {
	var spec QuerySpec
	if raw == nil {
		return spec, nil
	}
	obj, ok := raw.(*filter.Object)
	if !ok {
		return spec, fmt.Errorf("decode query: expected an object, got %T", raw)
	}

	for _, m := range obj.Members {
		var err error
		switch strings.TrimSpace(m.Key) {
		case KeyFilters:
			switch m.Value.(type) {
			case nil:
			case *filter.Object:
				spec.RawFilters = m.Value
			default:
				return spec, &CompileError{
					Code:    ErrCodeMalformedFilter,
					Message: fmt.Sprintf("filters must be an object, got %T", m.Value),
					Path:    KeyFilters,
				}
			}
		case KeySort:
			var entries []string
			entries, err = stringList(m.Value, KeySort)
			for _, e := range entries {
				spec.Sort = append(spec.Sort, ParseSort(e)...)
			}
		case KeyFields:
			spec.Fields, err = splitList(m.Value, KeyFields)
		case KeyPopulate:
			spec.Populate, err = splitList(m.Value, KeyPopulate)
		case KeyShowSoftDeleted:
			spec.SoftDelete, err = visibilityValue(m.Value)
		case KeyLimit:
			spec.Limit, err = intValue(m.Value, KeyLimit)
		case KeyOffset:
			spec.Offset, err = intValue(m.Value, KeyOffset)
		default:
			err = fmt.Errorf("unknown query key %q", m.Key)
		}
		if err != nil {
			return QuerySpec{}, err
		}
	}
	return spec, nil
}

// stringList accepts a string or an array of strings.
func stringList(v any, key string) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %T", key, i, elem)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a string or an array of strings, got %T", key, v)
	}
}

// splitList is stringList with each entry split on commas and trimmed.
func splitList(v any, key string) ([]string, error) {
	entries, err := stringList(v, key)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, nil
}

func visibilityValue(v any) (Visibility, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case bool:
		if val {
			return Inclusive, nil
		}
		return Exclusive, nil
	case string:
		return ParseVisibility(val)
	default:
		return "", visibilityError("%s must be inclusive or exclusive, got %T", KeyShowSoftDeleted, v)
	}
}

// intValue accepts whole numbers and their decimal string form. Anything
// else is an INVALID_PAGINATION error.
func intValue(v any, key string) (*int, error) {
	var s string
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	case int:
		return IntPtr(val), nil
	case float64:
		if val != math.Trunc(val) {
			return nil, paginationError("%s must be a whole number, got %v", key, val)
		}
		return IntPtr(int(val)), nil
	default:
		return nil, paginationError("%s must be a number, got %T", key, v)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, paginationError("%s must be a whole number, got %q", key, s)
	}
	return IntPtr(n), nil
}
