package harness

import (
	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/store"
)

// Arg is one bound SQL argument.
type Arg struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: true if every assertion holds.
	Pass bool `json:"pass"`

	// ErrorCode is the compile error code when compilation failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Issues lists schema problems when the request does not fit the entity.
	Issues []string `json:"issues,omitempty"`

	// Query is the compiled request; nil when compilation failed.
	Query *queryir.CompiledQuery `json:"-"`

	// SQL and Args are the rendered root statement.
	SQL  string `json:"sql,omitempty"`
	Args []Arg  `json:"args,omitempty"`

	// Records are the rows SQLite returned, relations attached.
	Records []store.Record `json:"records,omitempty"`

	// IDs are the records' primary keys, when every record carries one.
	IDs []int64 `json:"ids,omitempty"`

	// Total counts matches ignoring pagination.
	Total int64 `json:"total"`

	// Eval holds the evaluator's rows for the same request.
	Eval []queryir.Row `json:"-"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Compiled reports whether the request compiled and fit the entity, so
// SQL, Records and Eval are populated.
func (r *Result) Compiled() bool {
	return r.ErrorCode == "" && len(r.Issues) == 0 && r.Query != nil
}
