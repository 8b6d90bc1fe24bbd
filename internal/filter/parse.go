package filter

import (
	"fmt"
	"strings"

	"github.com/roach88/strapiql/internal/ir"
)

// Logical combinator keys.
const (
	KeyAnd = "$and"
	KeyOr  = "$or"
)

// MixedKeyPolicy decides what happens when a combinator key shares its
// level with other keys.
type MixedKeyPolicy int

const (
	// MixedKeysReject fails the compilation with KindMalformedFilter.
	MixedKeysReject MixedKeyPolicy = iota

	// MixedKeysFirstMatch applies the first matching rule ($and, then $or)
	// and ignores the level's other keys.
	MixedKeysFirstMatch
)

// String returns the policy name used in configuration files.
func (p MixedKeyPolicy) String() string {
	switch p {
	case MixedKeysReject:
		return "reject"
	case MixedKeysFirstMatch:
		return "first-match"
	default:
		return fmt.Sprintf("MixedKeyPolicy(%d)", int(p))
	}
}

// ParseMixedKeyPolicy parses "reject" or "first-match".
func ParseMixedKeyPolicy(s string) (MixedKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return MixedKeysReject, nil
	case "first-match", "firstmatch", "first_match":
		return MixedKeysFirstMatch, nil
	default:
		return 0, fmt.Errorf("unknown mixed key policy %q: must be reject or first-match", s)
	}
}

// ParseOptions configures Parse.
type ParseOptions struct {
	// DuplicateKeys decides how duplicate keys at one level are handled.
	DuplicateKeys DuplicateKeyPolicy

	// MixedKeys decides how a combinator sharing its level with other keys
	// is handled.
	MixedKeys MixedKeyPolicy

	// IsOperator reports whether a token is a known operator. When set,
	// unknown tokens fail with KindUnsupportedOperator before their value
	// is inspected. When nil, every token is accepted.
	IsOperator func(token string) bool

	// Root is the path prefix used in error messages (default "filters").
	Root string
}

// Parse interprets a raw filter object as a typed Node tree.
//
// At each object level exactly one rule applies, checked in order:
//  1. "$and" present: each array element is an independent conjunct. A
//     multi-key element is split so each key is its own sub-filter, and
//     those sub-filters are AND-ed together.
//  2. "$or" present: each array element is compiled as a whole disjunct.
//  3. Otherwise every key is a field whose value is a single-key operator
//     object; the field predicates are AND-ed.
//
// A combinator key sharing its level with other keys is rejected unless
// opts.MixedKeys is MixedKeysFirstMatch, in which case the other keys are
// ignored. An empty object parses to nil (no restriction).
func Parse(raw any, opts ParseOptions) (Node, error) {
	if raw == nil {
		return nil, nil
	}
	root := opts.Root
	if root == "" {
		root = "filters"
	}
	p := &parser{opts: opts}
	return p.parseLevel(raw, root)
}

type parser struct {
	opts ParseOptions
}

func (p *parser) parseLevel(raw any, path string) (Node, error) {
	obj, err := normalizeAt(raw, p.opts.DuplicateKeys, path)
	if err != nil {
		return nil, err
	}
	if obj.Len() == 0 {
		return nil, nil
	}

	if andVal, ok := obj.Get(KeyAnd); ok {
		if obj.Len() > 1 && p.opts.MixedKeys == MixedKeysReject {
			return nil, malformed(path, "%s cannot share a level with other keys (%s)", KeyAnd, strings.Join(obj.Keys(), ", "))
		}
		return p.parseAnd(andVal, joinPath(path, KeyAnd))
	}

	if orVal, ok := obj.Get(KeyOr); ok {
		if obj.Len() > 1 && p.opts.MixedKeys == MixedKeysReject {
			return nil, malformed(path, "%s cannot share a level with other keys (%s)", KeyOr, strings.Join(obj.Keys(), ", "))
		}
		return p.parseOr(orVal, joinPath(path, KeyOr))
	}

	return p.parseFields(obj, path)
}

func (p *parser) parseAnd(raw any, path string) (Node, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, malformed(path, "%s expects an array, got %s", KeyAnd, describe(raw))
	}

	conj := &Conjunction{Children: make([]Node, 0, len(items))}
	for i, item := range items {
		itemPath := indexPath(path, i)
		obj, err := normalizeAt(item, p.opts.DuplicateKeys, itemPath)
		if err != nil {
			return nil, err
		}

		// Each key of the element is its own sub-filter.
		parts := make([]Node, 0, obj.Len())
		for _, m := range obj.Members {
			single := &Object{Members: []Member{m}}
			n, err := p.parseLevel(single, itemPath)
			if err != nil {
				return nil, err
			}
			if n != nil {
				parts = append(parts, n)
			}
		}

		switch len(parts) {
		case 0:
			// {} contributes nothing to a conjunction
		case 1:
			conj.Children = append(conj.Children, parts[0])
		default:
			conj.Children = append(conj.Children, &Conjunction{Children: parts})
		}
	}
	return conj, nil
}

func (p *parser) parseOr(raw any, path string) (Node, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, malformed(path, "%s expects an array, got %s", KeyOr, describe(raw))
	}

	disj := &Disjunction{Children: make([]Node, 0, len(items))}
	for i, item := range items {
		itemPath := indexPath(path, i)
		n, err := p.parseLevel(item, itemPath)
		if err != nil {
			return nil, err
		}
		if n == nil {
			// An unrestricted disjunct would make the whole branch match
			// every row.
			return nil, malformed(itemPath, "%s element must not be empty", KeyOr)
		}
		disj.Children = append(disj.Children, n)
	}
	return disj, nil
}

func (p *parser) parseFields(obj *Object, path string) (Node, error) {
	preds := make([]Node, 0, obj.Len())
	for _, m := range obj.Members {
		fieldPath := joinPath(path, m.Key)
		if strings.HasPrefix(m.Key, "$") {
			return nil, &Error{
				Kind:     KindUnsupportedOperator,
				Path:     fieldPath,
				Operator: m.Key,
				Message:  "unsupported logical operator " + m.Key,
			}
		}

		pred, err := p.parseFieldPredicate(m.Key, m.Value, fieldPath)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return &Conjunction{Children: preds}, nil
}

func (p *parser) parseFieldPredicate(field string, raw any, path string) (*FieldPredicate, error) {
	opObj, ok := raw.(*Object)
	if !ok {
		e := malformed(path, "field %q expects an operator object such as {\"$eq\": value}, got %s", field, describe(raw))
		e.Field = field
		return nil, e
	}

	// Already normalized as part of the enclosing level; normalizing again
	// applies the duplicate policy to operator keys on its own scope.
	opObj, err := normalizeObject(opObj, p.opts.DuplicateKeys, path)
	if err != nil {
		return nil, err
	}

	if opObj.Len() != 1 {
		e := malformed(path, "field %q expects exactly one operator, got %d", field, opObj.Len())
		if opObj.Len() > 1 {
			e.Message += " (" + strings.Join(opObj.Keys(), ", ") + ")"
		}
		e.Field = field
		return nil, e
	}

	m := opObj.Members[0]
	opPath := joinPath(path, m.Key)
	if p.opts.IsOperator != nil && !p.opts.IsOperator(m.Key) {
		return nil, &Error{
			Kind:     KindUnsupportedOperator,
			Path:     opPath,
			Field:    field,
			Operator: m.Key,
			Message:  "operator " + m.Key + " is not supported",
		}
	}

	value, err := toValue(m.Value)
	if err != nil {
		e := malformed(opPath, "operator %s on field %q: %v", m.Key, field, err)
		e.Field = field
		e.Operator = m.Key
		return nil, e
	}

	return &FieldPredicate{
		Field:    field,
		Operator: m.Key,
		Value:    value,
		Path:     opPath,
	}, nil
}

// toValue converts a raw operator argument into a literal.
func toValue(raw any) (ir.Value, error) {
	switch v := raw.(type) {
	case *Object:
		return nil, errObjectValue
	case []any:
		arr := make(ir.Array, len(v))
		for i, elem := range v {
			if _, isObj := elem.(*Object); isObj {
				return nil, errObjectValue
			}
			e, err := ir.FromAny(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = e
		}
		return arr, nil
	default:
		return ir.FromAny(raw)
	}
}

type valueError string

func (e valueError) Error() string { return string(e) }

const errObjectValue = valueError("value cannot be an object")
