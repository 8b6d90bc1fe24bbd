package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/strapiql/internal/schema"
)

// ErrNotFound is returned when a write targets a row that does not exist.
var ErrNotFound = errors.New("record not found")

// Insert writes rec into table and returns the new row id.
// Columns are written in sorted order so statements are deterministic.
func (s *Store) Insert(ctx context.Context, table string, rec Record) (int64, error) {
	cols := slices.Sorted(maps.Keys(rec))
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = rec[c]
	}

	st, err := s.sql.RenderInsert(table, cols, values)
	if err != nil {
		return 0, fmt.Errorf("render insert: %w", err)
	}

	ctx, span := s.startSpan(ctx, "insert", st)
	defer span.End()

	res, err := s.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

// SoftDelete flags the row as deleted. Exclusive queries no longer return it.
func (s *Store) SoftDelete(ctx context.Context, entity *schema.Entity, id any) error {
	return s.setDeleted(ctx, entity, id, true)
}

// Restore clears the deleted flag set by SoftDelete.
func (s *Store) Restore(ctx context.Context, entity *schema.Entity, id any) error {
	return s.setDeleted(ctx, entity, id, false)
}

func (s *Store) setDeleted(ctx context.Context, entity *schema.Entity, id any, deleted bool) error {
	if !entity.SoftDelete {
		return fmt.Errorf("entity %s does not support soft delete", entity.Name)
	}

	st, err := s.sql.RenderSetFlag(entity.Table, entity.PrimaryKey, s.softDeleteColumn, deleted, id)
	if err != nil {
		return fmt.Errorf("render update: %w", err)
	}

	op := "soft_delete"
	if !deleted {
		op = "restore"
	}
	ctx, span := s.startSpan(ctx, op, st)
	defer span.End()

	res, err := s.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("%s %s: %w", op, entity.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("%s %s: %w", op, entity.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s %v: %w", op, entity.Name, id, ErrNotFound)
	}
	return nil
}
