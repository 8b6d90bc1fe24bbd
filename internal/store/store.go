package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/ir"
	"github.com/roach88/strapiql/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - users, roles, user_roles, internal_test
const currentSchemaVersion = 1

// driverName is the go-sqlite3 driver with the connection hook below.
const driverName = "sqlite3_strapiql"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{ConnectHook: connectHook})
}

// connectHook configures every new connection:
//   - LOWER folds with the same Unicode rules as the compiler and evaluator
//   - LIKE is case-sensitive; $containsi and friends fold explicitly
//   - Foreign key enforcement and a 5-second busy timeout
func connectHook(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("lower", sqlLower, true); err != nil {
		return fmt.Errorf("register lower: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA case_sensitive_like = ON",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// sqlLower replaces SQLite's ASCII-only LOWER. Non-text values pass through.
func sqlLower(v any) any {
	switch s := v.(type) {
	case string:
		return ir.Fold(s)
	case []byte:
		if s == nil {
			return nil
		}
		return ir.Fold(string(s))
	default:
		return v
	}
}

// Store executes compiled queries against SQLite.
// Uses WAL mode for concurrent read access.
type Store struct {
	db               *sql.DB
	sql              *querysql.SQLCompiler
	tracer           trace.Tracer
	softDeleteColumn string
}

// Option configures a Store.
type Option func(*Store)

// WithTracerProvider sets the provider spans are recorded with.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithSoftDeleteColumn sets the flag column SoftDelete and Restore write.
// It must match the compiler's soft-delete column.
func WithSoftDeleteColumn(column string) Option {
	return func(s *Store) {
		s.softDeleteColumn = column
	}
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - Unicode-aware LOWER and case-sensitive LIKE on every connection
//
// Open does not create tables; call Migrate for the bundled schema.
func Open(path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:               db,
		sql:              querysql.NewSQLCompiler(),
		tracer:           otel.Tracer(tracerName),
		softDeleteColumn: compiler.DefaultSoftDeleteColumn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the bundled tables if they don't exist.
// This function is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// applyPragmas sets database-wide SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
