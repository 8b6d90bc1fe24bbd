// Package filter turns a raw Strapi-style filter document into a typed tree.
//
// The grammar:
//
//	{ "$and": [ <filter>, ... ] }           all children must hold
//	{ "$or":  [ <filter>, ... ] }           at least one child must hold
//	{ "<field>": { "<operator>": <value> } } one operator per field leaf
//
// Processing happens in three steps:
//
//	[JSON / YAML / Go map] → Decode / FromYAML / FromMap → *Object
//	*Object → Normalize (trim keys, apply DuplicateKeyPolicy)
//	*Object → Parse → Node (Conjunction | Disjunction | FieldPredicate)
//
// Object keeps member order and duplicate keys. encoding/json would silently
// keep only the last duplicate, which hides a class of request bugs such as
// two "$and" keys at the same level; the policy decides instead.
//
// Parse is pure: it never modifies its input and keeps no state between
// calls. Operator tokens are checked through ParseOptions.IsOperator so this
// package does not depend on the operator registry.
package filter
