// Package queryir provides the typed query representation produced by the
// filter-query compiler.
//
// The IR is the boundary between the compiler and execution backends:
//
//	[QuerySpec] → compiler → [CompiledQuery] → querysql → SQL + named args
//	                                         → Eval (in-memory rows)
//
// Predicates form a typed AST instead of SQL fragments. Literal values never
// appear in the tree; every leaf refers to a parameter name bound in
// CompiledQuery.Parameters, so a renderer cannot interpolate user input by
// accident.
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern. Only types in this
// package implement it, which enables exhaustive type switches:
//
//	switch p := pred.(type) {
//	case Comparison:
//	case Like:
//	case In:
//	case Between:
//	case IsNull:
//	case BoolEquals:
//	case And:
//	case Or:
//	}
//
// DETERMINISM:
//
// Parameter names are an internal detail and may differ across compilations
// of the same request. Shape produces a canonical encoding with names
// replaced by first-appearance ordinals, so two compilations of the same
// request produce byte-identical shapes.
package queryir
