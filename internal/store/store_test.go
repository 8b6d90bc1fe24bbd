package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_WithOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, WithTracerProvider(noop.NewTracerProvider()), WithSoftDeleteColumn("archived"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if s.softDeleteColumn != "archived" {
		t.Errorf("softDeleteColumn = %q, want %q", s.softDeleteColumn, "archived")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}

	// Verify it's usable
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL = 1
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"}, // ON = 1
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestConnection_UnicodeLower(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		in   any
		want any
	}{
		{"JOHN", "john"},
		{"ÉMILE", "émile"},
		{"STRAßE", "straße"},
		{nil, nil},
		{int64(42), int64(42)},
	}

	for _, tt := range tests {
		var got any
		if err := s.db.QueryRow("SELECT lower(?)", tt.in).Scan(&got); err != nil {
			t.Fatalf("lower(%v) failed: %v", tt.in, err)
		}
		if b, ok := got.([]byte); ok {
			got = string(b)
		}
		if got != tt.want {
			t.Errorf("lower(%v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestConnection_CaseSensitiveLike(t *testing.T) {
	s := createTestStore(t)

	var matched bool
	if err := s.db.QueryRow("SELECT 'John' LIKE 'john'").Scan(&matched); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if matched {
		t.Error("LIKE should be case-sensitive")
	}
}

// Schema tests

func TestMigrate_CreatesTables(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"users":         {"id", "username", "email", "password", "name", "mobile", "status", "isEmailVerified", "loginCount", "createdAt", "updatedAt"},
		"roles":         {"id", "name", "description", "createdAt", "updatedAt"},
		"user_roles":    {"user_id", "role_id"},
		"internal_test": {"id", "name", "email", "age", "isActive", "status", "bio", "userId", "isDeleted", "createdAt", "updatedAt"},
	}

	for table, cols := range expected {
		columns := getTableColumns(t, s.db, table)
		for _, col := range cols {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("Migrate() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestMigrate_Indexes(t *testing.T) {
	s := createTestStore(t)

	if !contains(getTableIndexes(t, s.db, "user_roles"), "idx_user_roles_role") {
		t.Error("user_roles table missing index idx_user_roles_role")
	}
	if !contains(getTableIndexes(t, s.db, "internal_test"), "idx_internal_test_user") {
		t.Error("internal_test table missing index idx_internal_test_user")
	}
}

func TestConstraint_UserRolesForeignKey(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec("INSERT INTO user_roles (user_id, role_id) VALUES (99, 99)")
	if err == nil {
		t.Error("expected foreign key violation, got nil")
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
