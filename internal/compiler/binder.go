package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/strapiql/internal/ir"
)

// Binder allocates parameter names for one compilation.
//
// Names are "<alias>_<field>_<n>" where n is a per-compilation counter, so
// they are unique without randomness and identical across repeated
// compilations of the same request. A Binder must not be shared between
// compilations.
type Binder struct {
	alias  string
	next   int
	names  []string // bind order
	params map[string]ir.Value
}

// NewBinder creates an empty namespace for alias.
func NewBinder(alias string) *Binder {
	return &Binder{alias: alias, params: map[string]ir.Value{}}
}

// Bind records v under a fresh name and returns the name.
func (b *Binder) Bind(field string, v ir.Value) string {
	b.next++
	name := fmt.Sprintf("%s_%s_%d", paramSegment(b.alias), paramSegment(field), b.next)
	b.params[name] = v
	b.names = append(b.names, name)
	return name
}

// mark records the current binding state for a later rollback.
func (b *Binder) mark() int {
	return len(b.names)
}

// rollback forgets every binding made since m.
func (b *Binder) rollback(m int) {
	for _, name := range b.names[m:] {
		delete(b.params, name)
	}
	b.names = b.names[:m]
	b.next = m
}

// Parameters returns the bindings recorded so far.
func (b *Binder) Parameters() map[string]ir.Value {
	return b.params
}

// paramSegment maps s onto [A-Za-z0-9_] so the name is a valid named
// placeholder in every driver. Uniqueness comes from the counter.
func paramSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}
