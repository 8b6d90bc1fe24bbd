package harness

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/strapiql/internal/ir"
	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the rendered SQL to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Rendered statement, when there is one
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "  SQL: %s\n", e.SQL)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if a.Type == AssertIssues {
		return assertIssues(result, a)
	}

	// Every other assertion needs a query that ran
	if !result.Compiled() {
		return &AssertionError{
			Type:     a.Type,
			Expected: "request compiles and fits the entity",
			Actual:   describeFailure(result),
		}
	}

	switch a.Type {
	case AssertIDs:
		return assertIDs(result, a)
	case AssertTotal:
		return assertTotal(result, a)
	case AssertSQLContains:
		return assertSQLContains(result, a)
	case AssertRecord:
		return assertRecord(result, a)
	case AssertAgreesWithEval:
		return assertAgreesWithEval(result)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func describeFailure(result *Result) string {
	switch {
	case result.ErrorCode != "":
		return "compile error " + result.ErrorCode
	case len(result.Issues) > 0:
		return "schema issues: " + strings.Join(result.Issues, "; ")
	default:
		return "request did not run"
	}
}

func assertError(result *Result, a Assertion) error {
	if result.ErrorCode != a.Code {
		actual := "compiled successfully"
		if result.ErrorCode != "" {
			actual = result.ErrorCode
		}
		return &AssertionError{Type: AssertError, Expected: a.Code, Actual: actual}
	}
	return nil
}

func assertIssues(result *Result, a Assertion) error {
	if !slices.Equal(result.Issues, a.Issues) {
		return &AssertionError{
			Type:     AssertIssues,
			Expected: fmt.Sprintf("%q", a.Issues),
			Actual:   fmt.Sprintf("%q", result.Issues),
			SQL:      result.SQL,
		}
	}
	return nil
}

func assertIDs(result *Result, a Assertion) error {
	if result.IDs == nil {
		return &AssertionError{
			Type:     AssertIDs,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   "records do not carry an integer primary key",
			SQL:      result.SQL,
		}
	}
	if !slices.Equal(result.IDs, a.IDs) {
		return &AssertionError{
			Type:     AssertIDs,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   fmt.Sprintf("%v", result.IDs),
			SQL:      result.SQL,
		}
	}
	return nil
}

func assertTotal(result *Result, a Assertion) error {
	if result.Total != *a.Count {
		return &AssertionError{
			Type:     AssertTotal,
			Expected: fmt.Sprintf("%d", *a.Count),
			Actual:   fmt.Sprintf("%d", result.Total),
			SQL:      result.SQL,
		}
	}
	return nil
}

func assertSQLContains(result *Result, a Assertion) error {
	if !strings.Contains(result.SQL, a.Text) {
		return &AssertionError{
			Type:     AssertSQLContains,
			Expected: fmt.Sprintf("SQL containing %q", a.Text),
			Actual:   result.SQL,
		}
	}
	return nil
}

func assertRecord(result *Result, a Assertion) error {
	if a.Index >= len(result.Records) {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %d", a.Index),
			Actual:   fmt.Sprintf("%d record(s)", len(result.Records)),
			SQL:      result.SQL,
		}
	}
	rec := result.Records[a.Index]
	if !matchValue(a.Expect, rec) {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %d matching %v", a.Index, a.Expect),
			Actual:   fmt.Sprintf("%v", rec),
			SQL:      result.SQL,
		}
	}
	return nil
}

// assertAgreesWithEval compares SQLite's rows with the evaluator's, with
// populated relations removed.
func assertAgreesWithEval(result *Result) error {
	aliases := make([]string, len(result.Query.Joins))
	for i, j := range result.Query.Joins {
		aliases[i] = j.Alias
	}

	got := make([]map[string]any, len(result.Records))
	for i, rec := range result.Records {
		m := make(map[string]any, len(rec))
		for k, v := range rec {
			if !slices.Contains(aliases, k) {
				m[k] = v
			}
		}
		got[i] = m
	}
	want := make([]map[string]any, len(result.Eval))
	for i, row := range result.Eval {
		want[i] = map[string]any(row)
	}

	if !reflect.DeepEqual(got, want) {
		return &AssertionError{
			Type:     AssertAgreesWithEval,
			Expected: fmt.Sprintf("evaluator rows %v", want),
			Actual:   fmt.Sprintf("SQLite rows %v", got),
			SQL:      result.SQL,
		}
	}
	return nil
}

// matchValue reports whether got matches want. Maps match as subsets, a
// nil expectation matches a missing key, and scalars compare by value so
// YAML ints match SQLite int64s.
func matchValue(want, got any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := asMap(got)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, present := g[k]
			if !present && wv != nil {
				return false
			}
			if !matchValue(wv, gv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := asSlice(got)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !matchValue(w[i], g[i]) {
				return false
			}
		}
		return true
	}

	wv, err := ir.FromAny(want)
	if err != nil {
		return false
	}
	gv, err := ir.FromAny(got)
	if err != nil {
		return false
	}
	wb, err := ir.MarshalValue(wv)
	if err != nil {
		return false
	}
	gb, err := ir.MarshalValue(gv)
	if err != nil {
		return false
	}
	return bytes.Equal(wb, gb)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case store.Record:
		return m, true
	case queryir.Row:
		return m, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []store.Record:
		out := make([]any, len(s))
		for i, r := range s {
			out[i] = r
		}
		return out, true
	}
	return nil, false
}
