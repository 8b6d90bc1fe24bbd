package queryir

import (
	"fmt"

	"github.com/roach88/strapiql/internal/ir"
)

// Predicate is a boolean expression over one row.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend renderers and the evaluator.
//
// Predicate types:
//   - Comparison: column <op> :param
//   - Like: column [NOT] LIKE :param
//   - In: column [NOT] IN (:param...)
//   - Between: column BETWEEN :low AND :high
//   - IsNull: column IS [NOT] NULL
//   - BoolEquals: column = TRUE|FALSE (no parameter)
//   - And, Or: combinators
//
// A nil Predicate means "always true".
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Column is a qualified column reference, e.g. entity.name.
type Column struct {
	Qualifier string // Table or join alias
	Name      string // Column name
}

// Col builds a Column.
func Col(qualifier, name string) Column {
	return Column{Qualifier: qualifier, Name: name}
}

// String returns "qualifier.name", or just "name" when unqualified.
func (c Column) String() string {
	if c.Qualifier == "" {
		return c.Name
	}
	return c.Qualifier + "." + c.Name
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNe  CompareOp = "!="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
)

// Comparison compares a column to one bound parameter.
//
// Semantics:
//
//	[LOWER(]<column>[)] <op> :<param>
//
// Fold wraps the column in LOWER; the bound literal is already lower-cased
// by the compiler.
type Comparison struct {
	Column Column
	Op     CompareOp
	Param  string
	Fold   bool
}

func (Comparison) predicateNode() {}

// Like matches a column against a LIKE pattern bound as a parameter.
// Patterns use '\' as the escape character.
type Like struct {
	Column  Column
	Param   string
	Negated bool
	Fold    bool
}

func (Like) predicateNode() {}

// In tests membership of a column in a bound list.
// The parameter value must be an ir.Array with at least one element.
type In struct {
	Column  Column
	Param   string
	Negated bool
}

func (In) predicateNode() {}

// Between tests low <= column <= high (inclusive on both ends).
type Between struct {
	Column Column
	Low    string // parameter name
	High   string // parameter name
}

func (Between) predicateNode() {}

// IsNull tests for NULL (or NOT NULL when Negated).
type IsNull struct {
	Column  Column
	Negated bool
}

func (IsNull) predicateNode() {}

// BoolEquals compares a boolean column to a constant without a parameter.
// Used for the implicit soft-delete restriction.
type BoolEquals struct {
	Column Column
	Value  bool
}

func (BoolEquals) predicateNode() {}

// And is a conjunction. Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty Predicates means "always true" (the branch
// imposes no restriction).
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// JoinKind is the kind of a relation join.
type JoinKind string

// JoinLeftOuter never filters out rows lacking the relation.
const JoinLeftOuter JoinKind = "LEFT OUTER"

// Join is a relation to populate.
type Join struct {
	Relation string   // Relation name on the root entity
	Alias    string   // Alias qualifying the relation's columns
	Kind     JoinKind // Always JoinLeftOuter today
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ORDER BY entry.
type Order struct {
	Column    Column
	Direction Direction
}

// Projection is the column list to return.
// All means "every column" (no explicit list).
type Projection struct {
	All     bool
	Columns []Column
}

// AllColumns is the projection used when no fields are requested.
func AllColumns() Projection {
	return Projection{All: true}
}

// CompiledQuery is the output of one compilation.
//
// It is constructed fresh per request and must be treated as immutable once
// returned: renderers and executors read it, nothing writes to it.
type CompiledQuery struct {
	Alias      string              // Root table alias
	Predicate  Predicate           // WHERE predicate (nil = always true)
	Parameters map[string]ir.Value // Bound parameter name → literal
	Joins      []Join              // Distinct relations in first-occurrence order
	OrderBy    []Order             // Primary, secondary, ...
	Projection Projection          // Selected columns
	Limit      int                 // > 0
	Offset     int                 // >= 0
}

// Param returns the literal bound to name.
func (q *CompiledQuery) Param(name string) (ir.Value, error) {
	v, ok := q.Parameters[name]
	if !ok {
		return nil, fmt.Errorf("parameter %q is not bound", name)
	}
	return v, nil
}

// Conjoin ANDs predicates, dropping nils and flattening a single survivor.
// Returns nil when nothing remains.
func Conjoin(preds ...Predicate) Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}
