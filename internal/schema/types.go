package schema

import (
	"fmt"
	"slices"
)

// RelationKind is the cardinality of a relation.
type RelationKind string

const (
	RelationOne  RelationKind = "one"
	RelationMany RelationKind = "many"
)

// Relation describes how a root row links to rows of another entity.
//
// Direct relations match owner.OwnerKey = target.TargetKey. Relations with
// a Through table match owner.OwnerKey = through.ThroughOwnerKey and
// through.ThroughTargetKey = target.TargetKey.
type Relation struct {
	Name   string
	Kind   RelationKind
	Entity string // Target entity name

	// Resolved from the target entity at load time.
	Table      string
	PrimaryKey string

	OwnerKey  string
	TargetKey string

	Through          string
	ThroughOwnerKey  string
	ThroughTargetKey string
}

// Entity is one queryable table.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey string
	SoftDelete bool
	Columns    []string
	Relations  map[string]Relation
}

// HasColumn reports whether name is a column of the entity.
func (e *Entity) HasColumn(name string) bool {
	return slices.Contains(e.Columns, name)
}

// Relation returns the relation called name.
func (e *Entity) Relation(name string) (Relation, bool) {
	r, ok := e.Relations[name]
	return r, ok
}

// RelationNames returns relation names in sorted order.
func (e *Entity) RelationNames() []string {
	names := make([]string, 0, len(e.Relations))
	for n := range e.Relations {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Registry holds every loaded entity. Read-only after loading.
type Registry struct {
	entities map[string]*Entity
}

// Entity returns the entity called name.
func (r *Registry) Entity(name string) (*Entity, error) {
	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q (known: %v)", name, r.Names())
	}
	return e, nil
}

// Names returns entity names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
