package queryir

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/strapiql/internal/ir"
)

// ValidationResult contains the structural analysis of a compiled query.
type ValidationResult struct {
	// Valid indicates the query can be rendered and executed as-is.
	Valid bool

	// Problems lists every violation found. Empty when Valid is true.
	Problems []string
}

// Validate checks the structural invariants of a compiled query:
//  1. Every parameter referenced by the predicate is bound
//  2. Every bound parameter is referenced (no orphans)
//  3. IN parameters are non-empty arrays; other parameters are scalars
//  4. Limit is positive and Offset is non-negative
//  5. Columns are named and join aliases are distinct
//
// The compiler only emits queries that pass. Renderers call Validate before
// producing SQL so a hand-built query cannot reach the database malformed.
//
// Validate is a pure function with no side effects.
func Validate(q *CompiledQuery) ValidationResult {
	v := &validator{
		problems: []string{},
		used:     map[string]bool{},
	}
	v.validateQuery(q)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	params   map[string]ir.Value
	used     map[string]bool
}

// addProblem appends a problem message.
func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q *CompiledQuery) {
	if q == nil {
		v.addProblem("nil query")
		return
	}
	if q.Alias == "" {
		v.addProblem("empty root alias")
	}
	v.params = q.Parameters

	v.validatePredicate(q.Predicate)

	for _, name := range slices.Sorted(maps.Keys(q.Parameters)) {
		if !v.used[name] {
			v.addProblem("parameter %q is bound but never referenced", name)
		}
	}

	if q.Limit <= 0 {
		v.addProblem("limit must be positive, got %d", q.Limit)
	}
	if q.Offset < 0 {
		v.addProblem("offset must be non-negative, got %d", q.Offset)
	}

	aliases := map[string]bool{q.Alias: true}
	for _, j := range q.Joins {
		if j.Relation == "" || j.Alias == "" {
			v.addProblem("join has empty relation or alias")
			continue
		}
		if aliases[j.Alias] {
			v.addProblem("join alias %q is used twice", j.Alias)
		}
		aliases[j.Alias] = true
	}

	for _, o := range q.OrderBy {
		v.validateColumn(o.Column)
		if o.Direction != Asc && o.Direction != Desc {
			v.addProblem("order on %s has invalid direction %q", o.Column, o.Direction)
		}
	}

	if !q.Projection.All && len(q.Projection.Columns) == 0 {
		v.addProblem("projection selects no columns")
	}
	for _, c := range q.Projection.Columns {
		v.validateColumn(c)
	}
}

// validatePredicate recursively validates a predicate.
func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Comparison:
		v.validateColumn(pred.Column)
		switch pred.Op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		default:
			v.addProblem("comparison on %s has invalid operator %q", pred.Column, pred.Op)
		}
		v.validateScalarParam(pred.Param)
	case Like:
		v.validateColumn(pred.Column)
		if val, ok := v.lookup(pred.Param); ok {
			if _, isStr := val.(ir.String); !isStr {
				v.addProblem("LIKE parameter %q must be a string, got %s", pred.Param, ir.Kind(val))
			}
		}
	case In:
		v.validateColumn(pred.Column)
		if val, ok := v.lookup(pred.Param); ok {
			arr, isArr := val.(ir.Array)
			switch {
			case !isArr:
				v.addProblem("IN parameter %q must be an array, got %s", pred.Param, ir.Kind(val))
			case len(arr) == 0:
				v.addProblem("IN parameter %q must not be empty", pred.Param)
			}
		}
	case Between:
		v.validateColumn(pred.Column)
		v.validateScalarParam(pred.Low)
		v.validateScalarParam(pred.High)
	case IsNull:
		v.validateColumn(pred.Column)
	case BoolEquals:
		v.validateColumn(pred.Column)
	case And:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	case Or:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateColumn(c Column) {
	if c.Name == "" {
		v.addProblem("column reference has empty name")
	}
}

func (v *validator) validateScalarParam(name string) {
	val, ok := v.lookup(name)
	if !ok {
		return
	}
	if !ir.IsScalar(val) {
		v.addProblem("parameter %q must be a scalar, got %s", name, ir.Kind(val))
	}
}

// lookup marks name as used and reports whether it is bound.
func (v *validator) lookup(name string) (ir.Value, bool) {
	v.used[name] = true
	val, ok := v.params[name]
	if !ok {
		v.addProblem("parameter %q is referenced but not bound", name)
	}
	return val, ok
}
