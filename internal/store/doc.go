// Package store executes compiled queries against SQLite.
//
// A root query is rendered by querysql and returns one page of root rows.
// Each populated relation is then loaded with a single IN query over the
// page's owner keys and attached under the relation alias, so LIMIT and
// OFFSET always count root rows.
//
// # Matching Semantics
//
// Every connection replaces SQLite's LOWER with the Unicode folding used by
// the compiler, and turns on case_sensitive_like. SQL results therefore agree
// with queryir.Eval on the same rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Each statement runs inside an OpenTelemetry span carrying the SQL text.
// Bound values are never recorded.
package store
