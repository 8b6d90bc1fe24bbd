package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/schema"
)

// createTestStore creates a migrated store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return s
}

// seedStore creates a migrated store holding the demo rows:
//
//	users:         1 alice, 2 bob, 3 emile
//	roles:         1 admin, 2 editor; alice has both, bob has editor
//	internal_test: 1 John, 2 john smith, 3 Mary (deleted), 4 Zed_x, 5 ÉMILE
func seedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	ctx := context.Background()

	insert := func(table string, rec Record) {
		t.Helper()
		_, err := s.Insert(ctx, table, rec)
		require.NoError(t, err, "insert into %s", table)
	}

	insert("users", Record{"id": 1, "username": "alice", "email": "alice@example.com", "password": "x", "name": "Alice", "loginCount": 5})
	insert("users", Record{"id": 2, "username": "bob", "email": "bob@example.com", "password": "x", "name": "Bob", "status": "inactive"})
	insert("users", Record{"id": 3, "username": "emile", "email": "emile@example.com", "password": "x", "name": "Émile"})

	insert("roles", Record{"id": 1, "name": "admin"})
	insert("roles", Record{"id": 2, "name": "editor"})

	insert("user_roles", Record{"user_id": 1, "role_id": 1})
	insert("user_roles", Record{"user_id": 1, "role_id": 2})
	insert("user_roles", Record{"user_id": 2, "role_id": 2})

	insert("internal_test", Record{"id": 1, "name": "John", "email": "john@example.com", "age": 25, "status": "active", "bio": "100% cotton", "userId": 1})
	insert("internal_test", Record{"id": 2, "name": "john smith", "email": "smith@example.com", "age": 40, "status": "draft", "userId": 2})
	insert("internal_test", Record{"id": 3, "name": "Mary", "email": "mary@example.com", "age": 30, "status": "active", "isDeleted": true})
	insert("internal_test", Record{"id": 4, "name": "Zed_x", "status": "archived", "bio": "plain", "userId": 1})
	insert("internal_test", Record{"id": 5, "name": "ÉMILE", "email": "emile@example.com", "age": 18, "status": "active", "userId": 3})

	return s
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	return reg
}

func testEntity(t *testing.T, name string) *schema.Entity {
	t.Helper()
	e, err := testRegistry(t).Entity(name)
	require.NoError(t, err)
	return e
}

func compile(t *testing.T, spec compiler.QuerySpec) *queryir.CompiledQuery {
	t.Helper()
	c, err := compiler.New(compiler.Config{})
	require.NoError(t, err)
	q, err := c.Compile(spec)
	require.NoError(t, err)
	return q
}

func ids(records []Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r["id"].(int64)
	}
	return out
}
