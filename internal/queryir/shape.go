package queryir

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/strapiql/internal/ir"
)

// Shape returns the canonical encoding of q with parameter names replaced
// by first-appearance ordinals (p1, p2, ...).
//
// Two compilations of the same request produce byte-identical shapes even
// though their internal parameter names may differ.
func Shape(q *CompiledQuery) ([]byte, error) {
	if q == nil {
		return nil, fmt.Errorf("nil query")
	}
	ordinals := map[string]string{}
	rename := func(name string) string {
		if o, ok := ordinals[name]; ok {
			return o
		}
		o := fmt.Sprintf("p%d", len(ordinals)+1)
		ordinals[name] = o
		return o
	}
	return ir.MarshalCanonical(encodeQuery(q, rename))
}

// ShapeHash returns the domain-separated fingerprint of Shape(q).
func ShapeHash(q *CompiledQuery) (string, error) {
	data, err := Shape(q)
	if err != nil {
		return "", err
	}
	return ir.Fingerprint(ir.DomainQueryShape, data), nil
}

// MarshalJSON encodes the query with its actual parameter names.
func (q *CompiledQuery) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeQuery(q, func(name string) string { return name }))
}

func encodeQuery(q *CompiledQuery, rename func(string) string) map[string]any {
	// Predicate first so ordinals follow predicate order
	var pred any
	if q.Predicate != nil {
		pred = encodePredicate(q.Predicate, rename)
	}

	params := map[string]any{}
	for _, name := range slices.Sorted(maps.Keys(q.Parameters)) {
		params[rename(name)] = q.Parameters[name]
	}

	joins := make([]any, len(q.Joins))
	for i, j := range q.Joins {
		joins[i] = map[string]any{
			"relation": j.Relation,
			"alias":    j.Alias,
			"kind":     string(j.Kind),
		}
	}

	orders := make([]any, len(q.OrderBy))
	for i, o := range q.OrderBy {
		orders[i] = map[string]any{
			"column":    o.Column.String(),
			"direction": string(o.Direction),
		}
	}

	projection := map[string]any{"all": q.Projection.All}
	if !q.Projection.All {
		cols := make([]any, len(q.Projection.Columns))
		for i, c := range q.Projection.Columns {
			cols[i] = c.String()
		}
		projection["columns"] = cols
	}

	return map[string]any{
		"alias":      q.Alias,
		"predicate":  pred,
		"parameters": params,
		"joins":      joins,
		"order_by":   orders,
		"projection": projection,
		"limit":      q.Limit,
		"offset":     q.Offset,
	}
}

func encodePredicate(p Predicate, rename func(string) string) any {
	switch pred := p.(type) {
	case Comparison:
		return map[string]any{
			"type":   "comparison",
			"column": pred.Column.String(),
			"op":     string(pred.Op),
			"param":  rename(pred.Param),
			"fold":   pred.Fold,
		}
	case Like:
		return map[string]any{
			"type":    "like",
			"column":  pred.Column.String(),
			"param":   rename(pred.Param),
			"negated": pred.Negated,
			"fold":    pred.Fold,
		}
	case In:
		return map[string]any{
			"type":    "in",
			"column":  pred.Column.String(),
			"param":   rename(pred.Param),
			"negated": pred.Negated,
		}
	case Between:
		return map[string]any{
			"type":   "between",
			"column": pred.Column.String(),
			"low":    rename(pred.Low),
			"high":   rename(pred.High),
		}
	case IsNull:
		return map[string]any{
			"type":    "is_null",
			"column":  pred.Column.String(),
			"negated": pred.Negated,
		}
	case BoolEquals:
		return map[string]any{
			"type":   "bool_equals",
			"column": pred.Column.String(),
			"value":  pred.Value,
		}
	case And:
		return map[string]any{
			"type":       "and",
			"predicates": encodeChildren(pred.Predicates, rename),
		}
	case Or:
		return map[string]any{
			"type":       "or",
			"predicates": encodeChildren(pred.Predicates, rename),
		}
	default:
		return map[string]any{"type": fmt.Sprintf("unknown:%T", p)}
	}
}

func encodeChildren(preds []Predicate, rename func(string) string) []any {
	out := make([]any, len(preds))
	for i, p := range preds {
		out[i] = encodePredicate(p, rename)
	}
	return out
}
