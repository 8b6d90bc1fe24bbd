package filter

import "github.com/roach88/strapiql/internal/ir"

// Node is a parsed filter tree node.
//
// This is a sealed interface - only Conjunction, Disjunction and
// FieldPredicate implement it, so consumers can switch exhaustively over
// the three shapes. A nil Node means "no restriction".
type Node interface {
	filterNode() // Marker method - seals interface to this package
}

// Conjunction holds when all children hold.
// An empty Conjunction is the identity (always true).
type Conjunction struct {
	Children []Node
}

func (*Conjunction) filterNode() {}

// Disjunction holds when at least one child holds.
// An empty Disjunction is treated as the identity for its branch.
type Disjunction struct {
	Children []Node
}

func (*Disjunction) filterNode() {}

// FieldPredicate is a single `{ field: { operator: value } }` leaf.
type FieldPredicate struct {
	// Field is the trimmed field name, unqualified.
	Field string

	// Operator is the trimmed operator token, e.g. "$containsi".
	Operator string

	// Value is the operator argument.
	Value ir.Value

	// Path locates the leaf in the source filter for error messages.
	Path string
}

func (*FieldPredicate) filterNode() {}

// And builds a Conjunction.
func And(children ...Node) *Conjunction {
	return &Conjunction{Children: children}
}

// Or builds a Disjunction.
func Or(children ...Node) *Disjunction {
	return &Disjunction{Children: children}
}

// Where builds a FieldPredicate.
func Where(field, operator string, value ir.Value) *FieldPredicate {
	return &FieldPredicate{Field: field, Operator: operator, Value: value, Path: field}
}

// Fields returns the distinct field names referenced by n, in first-seen
// order. Used by the schema validation layer.
func Fields(n Node) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *Conjunction:
			for _, c := range node.Children {
				walk(c)
			}
		case *Disjunction:
			for _, c := range node.Children {
				walk(c)
			}
		case *FieldPredicate:
			if !seen[node.Field] {
				seen[node.Field] = true
				out = append(out, node.Field)
			}
		}
	}
	walk(n)
	return out
}
