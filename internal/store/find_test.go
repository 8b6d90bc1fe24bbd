package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/queryir"
)

func byID() []compiler.SortField {
	return []compiler.SortField{{Field: "id", Direction: queryir.Asc}}
}

func TestFind_Filters(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")
	ctx := context.Background()

	tests := []struct {
		name    string
		filters map[string]any
		want    []int64
	}{
		{"no filter hides deleted", nil, []int64{1, 2, 4, 5}},
		{"eq is exact", map[string]any{"name": map[string]any{"$eq": "john"}}, []int64{}},
		{"eqi folds case", map[string]any{"name": map[string]any{"$eqi": "JOHN"}}, []int64{1}},
		{"eqi folds unicode", map[string]any{"name": map[string]any{"$eqi": "émile"}}, []int64{5}},
		{"contains is case-sensitive", map[string]any{"name": map[string]any{"$contains": "john"}}, []int64{2}},
		{"containsi", map[string]any{"name": map[string]any{"$containsi": "JOHN"}}, []int64{1, 2}},
		{"contains escapes percent", map[string]any{"bio": map[string]any{"$contains": "%"}}, []int64{1}},
		{"contains escapes underscore", map[string]any{"name": map[string]any{"$contains": "_"}}, []int64{4}},
		{"startsWith", map[string]any{"email": map[string]any{"$startsWith": "john@"}}, []int64{1}},
		{"endsWithi", map[string]any{"name": map[string]any{"$endsWithi": "SMITH"}}, []int64{2}},
		{"null", map[string]any{"age": map[string]any{"$null": true}}, []int64{4}},
		{"notNull", map[string]any{"bio": map[string]any{"$notNull": true}}, []int64{1, 4}},
		{"in", map[string]any{"status": map[string]any{"$in": []any{"draft", "archived"}}}, []int64{2, 4}},
		{"notIn", map[string]any{"status": map[string]any{"$notIn": []any{"active"}}}, []int64{2, 4}},
		{"between inclusive", map[string]any{"age": map[string]any{"$between": []any{18, 30}}}, []int64{1, 5}},
		{"gt", map[string]any{"age": map[string]any{"$gt": 25}}, []int64{2}},
		{"ne excludes null", map[string]any{"age": map[string]any{"$ne": 25}}, []int64{2, 5}},
		{
			"or",
			map[string]any{"$or": []any{
				map[string]any{"name": map[string]any{"$eq": "John"}},
				map[string]any{"age": map[string]any{"$gte": 40}},
			}},
			[]int64{1, 2},
		},
		{
			"and",
			map[string]any{"$and": []any{
				map[string]any{"status": map[string]any{"$eq": "active"}},
				map[string]any{"age": map[string]any{"$lt": 20}},
			}},
			[]int64{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := compiler.QuerySpec{Sort: byID()}
			if tt.filters != nil {
				spec.RawFilters = tt.filters
			}
			q := compile(t, spec)

			records, err := s.Find(ctx, entity, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(records))
		})
	}
}

// The database and the reference evaluator must agree on every filter.
func TestFind_AgreesWithEval(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")
	ctx := context.Background()

	all, err := s.Find(ctx, entity, compile(t, compiler.QuerySpec{
		SoftDelete: compiler.Inclusive,
		Sort:       byID(),
		Limit:      compiler.IntPtr(100),
	}))
	require.NoError(t, err)
	require.Len(t, all, 5)

	rows := make([]queryir.Row, len(all))
	for i, r := range all {
		rows[i] = queryir.Row(r)
	}

	filters := []map[string]any{
		{"name": map[string]any{"$nei": "JOHN"}},
		{"name": map[string]any{"$notContainsi": "o"}},
		{"name": map[string]any{"$startsWithi": "é"}},
		{"bio": map[string]any{"$notContains": "cotton"}},
		{"age": map[string]any{"$lte": 30}},
		{"status": map[string]any{"$notIn": []any{"draft"}}},
		{"userId": map[string]any{"$eq": nil}},
		{"$or": []any{
			map[string]any{"age": map[string]any{"$null": true}},
			map[string]any{"email": map[string]any{"$endsWith": "example.com"}},
		}},
	}

	for _, f := range filters {
		for _, vis := range []compiler.Visibility{compiler.Exclusive, compiler.Inclusive} {
			q := compile(t, compiler.QuerySpec{RawFilters: f, SoftDelete: vis, Sort: byID(), Limit: compiler.IntPtr(100)})

			got, err := s.Find(ctx, entity, q)
			require.NoError(t, err)

			want, err := queryir.Eval(q, rows)
			require.NoError(t, err)

			wantIDs := make([]int64, len(want))
			for i, r := range want {
				wantIDs[i] = r["id"].(int64)
			}
			assert.Equal(t, wantIDs, ids(got), "filters %v visibility %s", f, vis)
		}
	}
}

func TestFind_Pagination(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")

	q := compile(t, compiler.QuerySpec{
		Sort:   byID(),
		Limit:  compiler.IntPtr(2),
		Offset: compiler.IntPtr(1),
	})
	records, err := s.Find(context.Background(), entity, q)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, ids(records))

	q = compile(t, compiler.QuerySpec{Sort: byID(), Offset: compiler.IntPtr(10)})
	records, err = s.Find(context.Background(), entity, q)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFind_SortAndTiebreaker(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")

	q := compile(t, compiler.QuerySpec{Sort: compiler.ParseSort("status:desc")})
	records, err := s.Find(context.Background(), entity, q)
	require.NoError(t, err)

	// draft, archived, then the two active rows by primary key
	assert.Equal(t, []int64{2, 4, 1, 5}, ids(records))
}

func TestFind_Fields(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")

	q := compile(t, compiler.QuerySpec{Sort: byID(), Fields: []string{"id", "name"}, Limit: compiler.IntPtr(1)})
	records, err := s.Find(context.Background(), entity, q)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Record{"id": int64(1), "name": "John"}, records[0])
}

func TestFind_PopulateOne(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")

	q := compile(t, compiler.QuerySpec{
		Sort:       byID(),
		Fields:     []string{"id", "name"},
		Populate:   []string{"user"},
		SoftDelete: compiler.Inclusive,
	})
	records, err := s.Find(context.Background(), entity, q)
	require.NoError(t, err)
	require.Len(t, records, 5)

	for _, r := range records {
		// Owner key was selected for loading only
		assert.NotContains(t, r, "userId")
	}

	user := func(i int) any {
		u, ok := records[i]["user"].(Record)
		if !ok {
			return records[i]["user"]
		}
		return u["username"]
	}
	assert.Equal(t, "alice", user(0))
	assert.Equal(t, "bob", user(1))
	assert.Nil(t, user(2)) // Mary has no user
	assert.Equal(t, "alice", user(3))
	assert.Equal(t, "emile", user(4))
}

func TestFind_PopulateManyThrough(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "users")

	q := compile(t, compiler.QuerySpec{
		Sort:       byID(),
		Populate:   []string{"roles", "roles"},
		SoftDelete: compiler.Inclusive,
	})
	records, err := s.Find(context.Background(), entity, q)
	require.NoError(t, err)
	require.Len(t, records, 3)

	names := func(i int) []string {
		roles := records[i]["roles"].([]Record)
		out := make([]string, len(roles))
		for j, r := range roles {
			out[j] = r["name"].(string)
		}
		return out
	}
	assert.Equal(t, []string{"admin", "editor"}, names(0))
	assert.Equal(t, []string{"editor"}, names(1))
	assert.Equal(t, []string{}, names(2))
}

func TestFind_PopulateRespectsPage(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "users")

	q := compile(t, compiler.QuerySpec{
		Sort:       byID(),
		Populate:   []string{"roles"},
		SoftDelete: compiler.Inclusive,
		Limit:      compiler.IntPtr(1),
	})
	records, err := s.Find(context.Background(), entity, q)
	require.NoError(t, err)

	// Two roles do not turn one user into two rows
	require.Len(t, records, 1)
	assert.Len(t, records[0]["roles"], 2)
}

func TestFind_UnknownRelation(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "users")

	q := compile(t, compiler.QuerySpec{Populate: []string{"posts"}, SoftDelete: compiler.Inclusive})
	_, err := s.Find(context.Background(), entity, q)
	assert.ErrorContains(t, err, `no relation "posts"`)
}

func TestCount(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")
	ctx := context.Background()

	q := compile(t, compiler.QuerySpec{
		RawFilters: map[string]any{"status": map[string]any{"$eq": "active"}},
		Limit:      compiler.IntPtr(1),
	})
	n, err := s.Count(ctx, entity, q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n) // Mary is deleted; pagination is ignored

	q = compile(t, compiler.QuerySpec{SoftDelete: compiler.Inclusive})
	n, err = s.Count(ctx, entity, q)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	s := seedStore(t)
	entity := testEntity(t, "internal_test")
	ctx := context.Background()
	q := compile(t, compiler.QuerySpec{Sort: byID()})

	require.NoError(t, s.SoftDelete(ctx, entity, 1))
	records, err := s.Find(ctx, entity, q)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 5}, ids(records))

	require.NoError(t, s.Restore(ctx, entity, 3))
	records, err = s.Find(ctx, entity, q)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5}, ids(records))

	err = s.SoftDelete(ctx, entity, 99)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.SoftDelete(ctx, testEntity(t, "users"), 1)
	assert.ErrorContains(t, err, "does not support soft delete")
}

func TestInsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "roles", Record{"name": "viewer", "description": "read only"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.Insert(ctx, "roles", Record{"name; DROP TABLE roles": "x"})
	assert.Error(t, err)

	_, err = s.Insert(ctx, "roles", Record{})
	assert.Error(t, err)
}
