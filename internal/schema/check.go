package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/strapiql/internal/queryir"
)

// ValidationError lists every reference a compiled query makes to columns or
// relations the entity does not have.
type ValidationError struct {
	Entity string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query does not fit entity %s: %s", e.Entity, strings.Join(e.Issues, "; "))
}

// Check verifies that q only references columns and relations of e.
// Columns qualified by a join alias are checked against that relation's
// target entity.
func (e *Entity) Check(reg *Registry, q *queryir.CompiledQuery) error {
	c := &checker{entity: e, reg: reg, alias: q.Alias, seen: map[string]bool{}}

	for _, j := range q.Joins {
		if _, ok := e.Relations[j.Relation]; !ok {
			c.add("unknown relation %q", j.Relation)
		}
	}

	c.predicate(q.Predicate)
	for _, o := range q.OrderBy {
		c.column(o.Column, "sort")
	}
	for _, col := range q.Projection.Columns {
		c.column(col, "fields")
	}

	if len(c.issues) > 0 {
		return &ValidationError{Entity: e.Name, Issues: c.issues}
	}
	return nil
}

type checker struct {
	entity *Entity
	reg    *Registry
	alias  string
	issues []string
	seen   map[string]bool
}

func (c *checker) add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.seen[msg] {
		return
	}
	c.seen[msg] = true
	c.issues = append(c.issues, msg)
}

func (c *checker) predicate(p queryir.Predicate) {
	switch p := p.(type) {
	case nil:
	case queryir.Comparison:
		c.column(p.Column, "filters")
	case queryir.Like:
		c.column(p.Column, "filters")
	case queryir.In:
		c.column(p.Column, "filters")
	case queryir.Between:
		c.column(p.Column, "filters")
	case queryir.IsNull:
		c.column(p.Column, "filters")
	case queryir.BoolEquals:
		c.column(p.Column, "filters")
	case queryir.And:
		for _, child := range p.Predicates {
			c.predicate(child)
		}
	case queryir.Or:
		for _, child := range p.Predicates {
			c.predicate(child)
		}
	}
}

func (c *checker) column(col queryir.Column, where string) {
	if col.Qualifier == "" || col.Qualifier == c.alias {
		if !c.entity.HasColumn(col.Name) {
			c.add("%s: unknown column %q", where, col.Name)
		}
		return
	}

	rel, ok := c.entity.Relations[col.Qualifier]
	if !ok {
		c.add("%s: unknown qualifier %q", where, col.Qualifier)
		return
	}
	if c.reg == nil {
		return
	}
	target, err := c.reg.Entity(rel.Entity)
	if err != nil {
		c.add("%s: %v", where, err)
		return
	}
	if !target.HasColumn(col.Name) {
		c.add("%s: unknown column %q", where, col.String())
	}
}
