package store

import (
	"context"
	"fmt"

	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/querysql"
	"github.com/roach88/strapiql/internal/schema"
)

// Record is one result row keyed by column name. Populated relations appear
// under their join alias: a []Record for "many" relations, a Record or nil
// for "one" relations.
type Record map[string]any

// Find runs q against the entity's table and loads every joined relation.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Find(ctx context.Context, entity *schema.Entity, q *queryir.CompiledQuery) ([]Record, error) {
	rels, err := joinedRelations(entity, q)
	if err != nil {
		return nil, err
	}

	require := make([]string, 0, len(rels))
	for _, r := range rels {
		require = append(require, r.rel.OwnerKey)
	}

	st, err := s.sql.Render(querysql.Target{
		Table:      entity.Table,
		PrimaryKey: entity.PrimaryKey,
		Require:    require,
	}, q)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", entity.Name, err)
	}

	records, err := s.queryRecords(ctx, "find", st)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", entity.Name, err)
	}

	for _, r := range rels {
		if err := s.populate(ctx, records, r); err != nil {
			return nil, fmt.Errorf("populate %s.%s: %w", entity.Name, r.rel.Name, err)
		}
	}

	for _, rec := range records {
		for _, col := range st.Hidden {
			delete(rec, col)
		}
	}
	return records, nil
}

// Count returns the number of rows matching q, ignoring pagination.
func (s *Store) Count(ctx context.Context, entity *schema.Entity, q *queryir.CompiledQuery) (int64, error) {
	st, err := s.sql.RenderCount(entity.Table, q)
	if err != nil {
		return 0, fmt.Errorf("render count %s: %w", entity.Name, err)
	}

	ctx, span := s.startSpan(ctx, "count", st)
	defer span.End()

	var n int64
	if err := s.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("count %s: %w", entity.Name, err)
	}
	return n, nil
}

type joinedRelation struct {
	alias string
	rel   schema.Relation
}

func joinedRelations(entity *schema.Entity, q *queryir.CompiledQuery) ([]joinedRelation, error) {
	out := make([]joinedRelation, 0, len(q.Joins))
	for _, j := range q.Joins {
		rel, ok := entity.Relation(j.Relation)
		if !ok {
			return nil, fmt.Errorf("entity %s has no relation %q", entity.Name, j.Relation)
		}
		out = append(out, joinedRelation{alias: j.Alias, rel: rel})
	}
	return out, nil
}

// populate loads r for every record and attaches the result under r.alias.
// Records without related rows get an empty slice or nil, as a left outer
// join would.
func (s *Store) populate(ctx context.Context, records []Record, r joinedRelation) error {
	var keys []any
	seen := map[any]bool{}
	for _, rec := range records {
		k := rec[r.rel.OwnerKey]
		if k == nil || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}

	byOwner := map[any][]Record{}
	if len(keys) > 0 {
		st, err := s.sql.RenderRelation(r.rel, keys)
		if err != nil {
			return err
		}
		related, err := s.queryRecords(ctx, "populate", st)
		if err != nil {
			return err
		}
		for _, rel := range related {
			owner := rel[querysql.OwnerKeyColumn]
			delete(rel, querysql.OwnerKeyColumn)
			byOwner[owner] = append(byOwner[owner], rel)
		}
	}

	for _, rec := range records {
		matched := byOwner[rec[r.rel.OwnerKey]]
		if r.rel.Kind == schema.RelationOne {
			if len(matched) == 0 {
				rec[r.alias] = nil
			} else {
				rec[r.alias] = matched[0]
			}
			continue
		}
		if matched == nil {
			matched = []Record{}
		}
		rec[r.alias] = matched
	}
	return nil
}

// queryRecords runs st and scans every row into a Record.
// TEXT columns arrive as strings, never []byte.
func (s *Store) queryRecords(ctx context.Context, op string, st querysql.Statement) ([]Record, error) {
	ctx, span := s.startSpan(ctx, op, st)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("columns: %w", err)
	}

	records := []Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			recordError(span, err)
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = values[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
