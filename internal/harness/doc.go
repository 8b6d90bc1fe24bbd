// Package harness runs query conformance scenarios.
//
// A scenario seeds a fresh in-memory database, compiles one request against
// an entity of the bundled schema, runs it, and checks assertions against
// the result. Every scenario runs the request twice: once through SQLite and
// once through the in-memory evaluator, so the two can be compared.
//
// # Scenario Format
//
//	name: containsi_sorted
//	description: "containsi folds case; rows sort by age"
//	entity: internal_test
//	setup:
//	  - table: internal_test
//	    rows:
//	      - {id: 1, name: John, age: 25}
//	      - {id: 2, name: john smith, age: 40}
//	request:
//	  filters:
//	    name: {$containsi: JOHN}
//	  sort: age:desc
//	assertions:
//	  - type: ids
//	    ids: [2, 1]
//	  - type: agrees_with_eval
//
// The request has the same shape as a JSON request body; key order inside
// filters is preserved. A scenario may instead give query_string, the
// request as a URL query string in bracket notation.
//
// # Assertion Types
//
//   - ids: primary keys of the returned rows, in order
//   - total: row count ignoring pagination
//   - error: compilation fails with the given error code
//   - issues: the request does not fit the entity, with exactly these issues
//   - sql_contains: the rendered SQL contains text
//   - record: the record at index matches expect (subset match)
//   - agrees_with_eval: SQLite and the evaluator return the same rows
//
// # Golden Files
//
// RunWithGolden snapshots the rendered SQL, its arguments and the result ids
// in testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
