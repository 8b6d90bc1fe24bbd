package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/strapiql/internal/ir"
	"github.com/roach88/strapiql/internal/queryir"
)

// Operator tokens understood by the default registry.
const (
	OpEq           = "$eq"
	OpEqi          = "$eqi"
	OpNe           = "$ne"
	OpNei          = "$nei"
	OpGt           = "$gt"
	OpGte          = "$gte"
	OpLt           = "$lt"
	OpLte          = "$lte"
	OpIn           = "$in"
	OpNotIn        = "$notIn"
	OpContains     = "$contains"
	OpNotContains  = "$notContains"
	OpContainsi    = "$containsi"
	OpNotContainsi = "$notContainsi"
	OpNull         = "$null"
	OpNotNull      = "$notNull"
	OpBetween      = "$between"
	OpStartsWith   = "$startsWith"
	OpStartsWithi  = "$startsWithi"
	OpEndsWith     = "$endsWith"
	OpEndsWithi    = "$endsWithi"
)

// EmitFunc turns one operator application into a predicate, binding any
// literal through b. It returns a *CompileError for shape violations.
type EmitFunc func(col queryir.Column, v ir.Value, b *Binder) (queryir.Predicate, error)

// Rule is one registry entry.
type Rule struct {
	Token       string
	Description string
	Emit        EmitFunc
}

// Registry maps operator tokens to emission rules. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry builds a registry from rules, in the given order.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		if !strings.HasPrefix(rule.Token, "$") {
			return nil, fmt.Errorf("operator token %q must start with $", rule.Token)
		}
		if rule.Emit == nil {
			return nil, fmt.Errorf("operator %s has no emit function", rule.Token)
		}
		if _, dup := r.rules[rule.Token]; dup {
			return nil, fmt.Errorf("operator %s registered twice", rule.Token)
		}
		r.rules[rule.Token] = rule
		r.order = append(r.order, rule.Token)
	}
	return r, nil
}

// Lookup returns the rule for token.
func (r *Registry) Lookup(token string) (Rule, bool) {
	rule, ok := r.rules[token]
	return rule, ok
}

// Has reports whether token is registered.
func (r *Registry) Has(token string) bool {
	_, ok := r.rules[token]
	return ok
}

// Tokens returns every registered token in registration order.
func (r *Registry) Tokens() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Rules returns every rule in registration order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.order))
	for i, tok := range r.order {
		out[i] = r.rules[tok]
	}
	return out
}

var defaultRegistry = mustRegistry(
	Rule{OpEq, "equal (null matches IS NULL)", compare(queryir.OpEq, false)},
	Rule{OpEqi, "equal, case-insensitive", compare(queryir.OpEq, true)},
	Rule{OpNe, "not equal (null matches IS NOT NULL)", compare(queryir.OpNe, false)},
	Rule{OpNei, "not equal, case-insensitive", compare(queryir.OpNe, true)},
	Rule{OpGt, "greater than", compare(queryir.OpGt, false)},
	Rule{OpGte, "greater than or equal", compare(queryir.OpGte, false)},
	Rule{OpLt, "less than", compare(queryir.OpLt, false)},
	Rule{OpLte, "less than or equal", compare(queryir.OpLte, false)},
	Rule{OpIn, "in a non-empty list", in(false)},
	Rule{OpNotIn, "not in a non-empty list", in(true)},
	Rule{OpContains, "contains substring", like("%", "%", false, false)},
	Rule{OpNotContains, "does not contain substring", like("%", "%", true, false)},
	Rule{OpContainsi, "contains substring, case-insensitive", like("%", "%", false, true)},
	Rule{OpNotContainsi, "does not contain substring, case-insensitive", like("%", "%", true, true)},
	Rule{OpNull, "is null (false means is not null)", isNull(false)},
	Rule{OpNotNull, "is not null (false means is null)", isNull(true)},
	Rule{OpBetween, "inclusive range [low, high]", between},
	Rule{OpStartsWith, "starts with prefix", like("", "%", false, false)},
	Rule{OpStartsWithi, "starts with prefix, case-insensitive", like("", "%", false, true)},
	Rule{OpEndsWith, "ends with suffix", like("%", "", false, false)},
	Rule{OpEndsWithi, "ends with suffix, case-insensitive", like("%", "", false, true)},
)

// DefaultRegistry returns the registry of every supported operator.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func mustRegistry(rules ...Rule) *Registry {
	r, err := NewRegistry(rules...)
	if err != nil {
		panic(err)
	}
	return r
}

func compare(op queryir.CompareOp, fold bool) EmitFunc {
	return func(col queryir.Column, v ir.Value, b *Binder) (queryir.Predicate, error) {
		if !ir.IsScalar(v) {
			return nil, shapeError("expects a single value, got an array")
		}
		if isNullValue(v) {
			switch op {
			case queryir.OpEq:
				return queryir.IsNull{Column: col}, nil
			case queryir.OpNe:
				return queryir.IsNull{Column: col, Negated: true}, nil
			default:
				return nil, shapeError("cannot compare against null")
			}
		}
		if fold {
			s, ok := v.(ir.String)
			if !ok {
				return nil, shapeError("case-insensitive comparison expects a string, got %s", ir.Kind(v))
			}
			v = ir.String(ir.Fold(string(s)))
		}
		return queryir.Comparison{Column: col, Op: op, Param: b.Bind(col.Name, v), Fold: fold}, nil
	}
}

func in(negated bool) EmitFunc {
	return func(col queryir.Column, v ir.Value, b *Binder) (queryir.Predicate, error) {
		arr, ok := v.(ir.Array)
		if !ok {
			return nil, shapeError("expects an array, got %s", ir.Kind(v))
		}
		if len(arr) == 0 {
			return nil, shapeError("expects a non-empty array")
		}
		for i, elem := range arr {
			if !ir.IsScalar(elem) {
				return nil, shapeError("element %d must be a single value", i)
			}
		}
		return queryir.In{Column: col, Param: b.Bind(col.Name, arr), Negated: negated}, nil
	}
}

// like builds a LIKE rule. The literal is escaped, then wrapped in prefix
// and suffix wildcards.
func like(prefix, suffix string, negated, fold bool) EmitFunc {
	return func(col queryir.Column, v ir.Value, b *Binder) (queryir.Predicate, error) {
		text, err := likeLiteral(v)
		if err != nil {
			return nil, err
		}
		if fold {
			text = ir.Fold(text)
		}
		pattern := prefix + EscapeLike(text) + suffix
		return queryir.Like{
			Column:  col,
			Param:   b.Bind(col.Name, ir.String(pattern)),
			Negated: negated,
			Fold:    fold,
		}, nil
	}
}

func likeLiteral(v ir.Value) (string, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int, ir.Float:
		// Numbers match their decimal text, as the column would cast
		b, err := ir.MarshalValue(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", shapeError("expects a string, got %s", ir.Kind(v))
	}
}

// EscapeLike escapes the LIKE wildcards in s using '\' as the escape
// character, so user input always matches literally.
func EscapeLike(s string) string {
	if !strings.ContainsAny(s, `\%_`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isNull(negated bool) EmitFunc {
	return func(col queryir.Column, v ir.Value, _ *Binder) (queryir.Predicate, error) {
		return queryir.IsNull{Column: col, Negated: negated != isFalse(v)}, nil
	}
}

func between(col queryir.Column, v ir.Value, b *Binder) (queryir.Predicate, error) {
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, shapeError("expects a [low, high] pair, got %s", ir.Kind(v))
	}
	if len(arr) != 2 {
		return nil, shapeError("expects exactly 2 values, got %d", len(arr))
	}
	for i, elem := range arr {
		if !ir.IsScalar(elem) || isNullValue(elem) {
			return nil, shapeError("bound %d must be a non-null single value", i)
		}
	}
	return queryir.Between{
		Column: col,
		Low:    b.Bind(col.Name, arr[0]),
		High:   b.Bind(col.Name, arr[1]),
	}, nil
}

func isNullValue(v ir.Value) bool {
	switch v.(type) {
	case nil, ir.Null:
		return true
	}
	return false
}

// isFalse accepts the boolean false and its query-string spelling.
func isFalse(v ir.Value) bool {
	switch val := v.(type) {
	case ir.Bool:
		return !bool(val)
	case ir.String:
		return strings.EqualFold(string(val), "false")
	}
	return false
}
