package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/strapiql/internal/filter"
	"github.com/roach88/strapiql/internal/ir"
	"github.com/roach88/strapiql/internal/queryir"
)

// ParseFilters parses a raw filter object with the compiler's registry and
// duplicate-key policy. Errors are *CompileError.
func (c *Compiler) ParseFilters(raw any) (filter.Node, error) {
	if m, ok := raw.(map[string]any); ok {
		raw = filter.FromMap(m)
	}
	node, err := filter.Parse(raw, filter.ParseOptions{
		DuplicateKeys: c.cfg.DuplicateKeys,
		MixedKeys:     c.cfg.MixedKeys,
		IsOperator:    c.registry.Has,
	})
	if err != nil {
		return nil, fromFilterError(err)
	}
	return node, nil
}

// CompileFilter compiles a filter tree into a predicate over alias with a
// fresh parameter namespace. A nil result means "no restriction".
func (c *Compiler) CompileFilter(node filter.Node, alias string) (queryir.Predicate, map[string]ir.Value, error) {
	b := NewBinder(alias)
	pred, err := c.compileNode(node, alias, b)
	if err != nil {
		return nil, nil, err
	}
	return pred, b.Parameters(), nil
}

// compileNode walks the tree depth-first. Empty combinators compile to nil,
// the identity of their branch.
func (c *Compiler) compileNode(n filter.Node, alias string, b *Binder) (queryir.Predicate, error) {
	switch node := n.(type) {
	case nil:
		return nil, nil

	case *filter.Conjunction:
		preds := make([]queryir.Predicate, 0, len(node.Children))
		for _, child := range node.Children {
			p, err := c.compileNode(child, alias, b)
			if err != nil {
				return nil, err
			}
			if p != nil {
				preds = append(preds, p)
			}
		}
		return queryir.Conjoin(preds...), nil

	case *filter.Disjunction:
		preds := make([]queryir.Predicate, 0, len(node.Children))
		unrestricted := false
		start := b.mark()
		for _, child := range node.Children {
			p, err := c.compileNode(child, alias, b)
			if err != nil {
				return nil, err
			}
			if p == nil {
				// An always-true disjunct makes the whole branch true, but
				// the remaining children are still checked for errors.
				unrestricted = true
				continue
			}
			preds = append(preds, p)
		}
		switch {
		case unrestricted:
			// Nothing the other children bound is referenced any more
			b.rollback(start)
			return nil, nil
		case len(preds) == 0:
			return nil, nil
		case len(preds) == 1:
			return preds[0], nil
		default:
			return queryir.Or{Predicates: preds}, nil
		}

	case *filter.FieldPredicate:
		return c.compileField(node, alias, b)

	default:
		return nil, fmt.Errorf("unknown filter node %T", n)
	}
}

func (c *Compiler) compileField(fp *filter.FieldPredicate, alias string, b *Binder) (queryir.Predicate, error) {
	rule, ok := c.registry.Lookup(fp.Operator)
	if !ok {
		return nil, &CompileError{
			Code:     ErrCodeUnsupportedOperator,
			Message:  fmt.Sprintf("unsupported operator %s on field %q", fp.Operator, fp.Field),
			Path:     fp.Path,
			Field:    fp.Field,
			Operator: fp.Operator,
		}
	}

	pred, err := rule.Emit(queryir.Col(alias, fp.Field), fp.Value, b)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			located := *ce
			located.Message = fmt.Sprintf("%s %s", fp.Operator, ce.Message)
			located.Path = fp.Path
			located.Field = fp.Field
			located.Operator = fp.Operator
			return nil, &located
		}
		return nil, fmt.Errorf("%s on %s: %w", fp.Operator, fp.Field, err)
	}
	return pred, nil
}
