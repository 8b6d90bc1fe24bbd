package compiler

import (
	"cmp"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/strapiql/internal/filter"
)

// QuerySpecFromValues decodes a query string. Filters may be given as one
// JSON document (filters={"name":{"$eq":"john"}}) or in bracket notation:
//
//	filters[$or][0][name][$eq]=john&filters[age][$between][0]=18&filters[age][$between][1]=30
//
// Bracket notation yields string literals only; the database compares them
// using the column's type affinity. List keys ("sort", "fields",
// "populate") may repeat, use brackets ("sort[0]=name") or carry
// comma-separated entries.
func QuerySpecFromValues(values url.Values) (QuerySpec, error) {
	obj := &filter.Object{}

	if doc := values.Get(KeyFilters); doc != "" {
		raw, err := filter.Decode([]byte(doc))
		if err != nil {
			return QuerySpec{}, &CompileError{
				Code:    ErrCodeMalformedFilter,
				Message: fmt.Sprintf("filters is not valid JSON: %v", err),
				Path:    KeyFilters,
			}
		}
		obj.Members = append(obj.Members, filter.Member{Key: KeyFilters, Value: raw})
	}

	tree, err := bracketFilters(values)
	if err != nil {
		return QuerySpec{}, err
	}
	if tree != nil {
		if obj.Has(KeyFilters) {
			return QuerySpec{}, &CompileError{
				Code:    ErrCodeMalformedFilter,
				Message: "filters given both as JSON and in bracket notation",
				Path:    KeyFilters,
			}
		}
		obj.Members = append(obj.Members, filter.Member{Key: KeyFilters, Value: tree})
	}

	for _, key := range []string{KeySort, KeyFields, KeyPopulate} {
		if list := listValues(values, key); len(list) > 0 {
			items := make([]any, len(list))
			for i, s := range list {
				items[i] = s
			}
			obj.Members = append(obj.Members, filter.Member{Key: key, Value: items})
		}
	}

	for _, key := range []string{KeyShowSoftDeleted, KeyLimit, KeyOffset} {
		if v := values.Get(key); v != "" {
			obj.Members = append(obj.Members, filter.Member{Key: key, Value: v})
		}
	}

	for key := range values {
		if !knownValueKey(key) {
			return QuerySpec{}, fmt.Errorf("unknown query key %q", key)
		}
	}

	return specFromRaw(obj)
}

func knownValueKey(key string) bool {
	base, _, _ := strings.Cut(key, "[")
	switch base {
	case KeyFilters, KeySort, KeyFields, KeyPopulate:
		return true
	case KeyShowSoftDeleted, KeyLimit, KeyOffset:
		return base == key
	}
	return false
}

// listValues collects key, key[] and key[N] entries; indexed entries are
// ordered by index and follow the plain ones.
func listValues(values url.Values, key string) []string {
	out := append([]string(nil), values[key]...)
	out = append(out, values[key+"[]"]...)

	type indexed struct {
		i int
		v []string
	}
	var idx []indexed
	for k, v := range values {
		rest, ok := strings.CutPrefix(k, key+"[")
		if !ok || !strings.HasSuffix(rest, "]") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
		if err != nil {
			continue
		}
		idx = append(idx, indexed{n, v})
	}
	slices.SortFunc(idx, func(a, b indexed) int { return cmp.Compare(a.i, b.i) })
	for _, e := range idx {
		out = append(out, e.v...)
	}
	return out
}

// qsNode is one segment of a bracket-notation filter tree.
type qsNode struct {
	children map[string]*qsNode
	values   []string
	list     bool // set by a trailing [] segment
}

// bracketFilters assembles every "filters[...]" key into a raw filter
// object. Keys are processed in sorted order so the result is deterministic.
func bracketFilters(values url.Values) (any, error) {
	root := &qsNode{children: map[string]*qsNode{}}
	found := false

	for _, key := range slices.Sorted(maps.Keys(values)) {
		rest, ok := strings.CutPrefix(key, KeyFilters+"[")
		if !ok {
			continue
		}
		segs, err := splitBrackets("[" + rest)
		if err != nil {
			return nil, &CompileError{Code: ErrCodeMalformedFilter, Message: err.Error(), Path: key}
		}
		found = true

		n := root
		for i, seg := range segs {
			if seg == "" {
				if i != len(segs)-1 {
					return nil, &CompileError{Code: ErrCodeMalformedFilter, Message: "[] must be the last segment", Path: key}
				}
				n.list = true
				break
			}
			child, ok := n.children[seg]
			if !ok {
				child = &qsNode{children: map[string]*qsNode{}}
				n.children[seg] = child
			}
			n = child
		}
		n.values = append(n.values, values[key]...)
	}

	if !found {
		return nil, nil
	}
	return root.build(KeyFilters)
}

func (n *qsNode) build(path string) (any, error) {
	if len(n.children) > 0 {
		if len(n.values) > 0 {
			return nil, &CompileError{
				Code:    ErrCodeMalformedFilter,
				Message: "key has both a value and nested keys",
				Path:    path,
			}
		}
		return n.buildChildren(path)
	}
	if len(n.values) == 1 && !n.list {
		return n.values[0], nil
	}
	items := make([]any, len(n.values))
	for i, v := range n.values {
		items[i] = v
	}
	return items, nil
}

// buildChildren yields an array when every child key is an index, and an
// object otherwise.
func (n *qsNode) buildChildren(path string) (any, error) {
	keys := slices.Collect(maps.Keys(n.children))

	indices := make(map[string]int, len(keys))
	for _, k := range keys {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			indices = nil
			break
		}
		indices[k] = i
	}

	if indices != nil {
		slices.SortFunc(keys, func(a, b string) int { return cmp.Compare(indices[a], indices[b]) })
		items := make([]any, 0, len(keys))
		for _, k := range keys {
			v, err := n.children[k].build(fmt.Sprintf("%s[%s]", path, k))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}

	slices.Sort(keys)
	obj := &filter.Object{}
	for _, k := range keys {
		v, err := n.children[k].build(path + "." + k)
		if err != nil {
			return nil, err
		}
		obj.Members = append(obj.Members, filter.Member{Key: k, Value: v})
	}
	return obj, nil
}

// splitBrackets splits "[a][b][]" into ["a", "b", ""].
func splitBrackets(s string) ([]string, error) {
	var segs []string
	for s != "" {
		if s[0] != '[' {
			return nil, fmt.Errorf("expected [ in filter key")
		}
		end := strings.IndexByte(s, ']')
		if end < 0 || strings.IndexByte(s[1:end], '[') >= 0 {
			return nil, fmt.Errorf("unterminated [ in filter key")
		}
		segs = append(segs, s[1:end])
		s = s[end+1:]
	}
	return segs, nil
}
