package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/store"
)

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name string
		want any
		got  any
		ok   bool
	}{
		{"int matches int64", 1, int64(1), true},
		{"int differs", 1, int64(2), false},
		{"string", "a", "a", true},
		{"string vs int", "1", int64(1), false},
		{"nil matches nil", nil, nil, true},
		{"subset map", map[string]any{"id": 1}, store.Record{"id": int64(1), "name": "x"}, true},
		{"missing key", map[string]any{"age": 3}, store.Record{"id": int64(1)}, false},
		{"nil expectation matches missing key", map[string]any{"age": nil}, store.Record{"id": int64(1)}, true},
		{"row as map", map[string]any{"id": 2}, queryir.Row{"id": int64(2)}, true},
		{"map vs scalar", map[string]any{"id": 1}, int64(1), false},
		{
			"relation list",
			[]any{map[string]any{"name": "admin"}},
			[]store.Record{{"id": int64(1), "name": "admin"}},
			true,
		},
		{
			"relation list length",
			[]any{map[string]any{"name": "admin"}},
			[]store.Record{{"name": "admin"}, {"name": "editor"}},
			false,
		},
		{"nested relation", map[string]any{"user": map[string]any{"id": 1}}, store.Record{"user": store.Record{"id": int64(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, matchValue(tt.want, tt.got))
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTotal,
		Expected: "3",
		Actual:   "2",
		SQL:      "SELECT COUNT(*) FROM t",
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: total")
	assert.Contains(t, msg, "Expected: 3")
	assert.Contains(t, msg, "Actual: 2")
	assert.Contains(t, msg, "SQL: SELECT COUNT(*) FROM t")

	err.SQL = ""
	assert.NotContains(t, err.Error(), "SQL:")
}

func TestEvaluateAssertions_ErrorAndIssues(t *testing.T) {
	result := NewResult()
	result.ErrorCode = "MALFORMED_FILTER"

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertError, Code: "MALFORMED_FILTER"},
		{Type: AssertError, Code: "UNSUPPORTED_OPERATOR"},
		{Type: AssertIssues, Issues: []string{"x"}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion 1")
	assert.Contains(t, errs[0], "Actual: MALFORMED_FILTER")
	assert.Contains(t, errs[1], "assertion 2")
}

func TestEvaluateAssertions_ErrorExpectedButCompiled(t *testing.T) {
	result := NewResult()
	result.Query = &queryir.CompiledQuery{Alias: "entity"}

	errs := EvaluateAssertions(result, []Assertion{{Type: AssertError, Code: "MALFORMED_FILTER"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "compiled successfully")
}

func TestEvaluateAssertions_Record(t *testing.T) {
	result := NewResult()
	result.Query = &queryir.CompiledQuery{Alias: "entity"}
	result.Records = []store.Record{{"id": int64(1), "name": "Ann"}}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertRecord, Index: 0, Expect: map[string]any{"name": "Ann"}},
		{Type: AssertRecord, Index: 0, Expect: map[string]any{"name": "Bob"}},
		{Type: AssertRecord, Index: 3, Expect: map[string]any{"name": "Ann"}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion 1")
	assert.Contains(t, errs[1], "1 record(s)")
}

func TestEvaluateAssertions_AgreesWithEvalIgnoresRelations(t *testing.T) {
	result := NewResult()
	result.Query = &queryir.CompiledQuery{
		Alias: "entity",
		Joins: []queryir.Join{{Relation: "user", Alias: "user"}},
	}
	result.Records = []store.Record{{"id": int64(1), "user": store.Record{"id": int64(9)}}}
	result.Eval = []queryir.Row{{"id": int64(1)}}

	assert.Empty(t, EvaluateAssertions(result, []Assertion{{Type: AssertAgreesWithEval}}))

	result.Eval = []queryir.Row{{"id": int64(2)}}
	errs := EvaluateAssertions(result, []Assertion{{Type: AssertAgreesWithEval}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: agrees_with_eval")
}
