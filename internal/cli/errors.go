package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/schema"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric    = "E001" // Generic error
	ErrCodeReadFailed = "E002" // Could not read an input file
	ErrCodeDecode     = "E003" // Query or rows file is not valid JSON/YAML
	ErrCodeConfig     = "E004" // Config file invalid
	ErrCodeNotFound   = "E005" // Input path not found
	ErrCodeSchemaLoad = "E006" // CUE schema failed to load

	ErrCodeUnsupportedOperator = "E101" // Operator token not registered
	ErrCodeMalformedFilter     = "E102" // Filter tree shape violation
	ErrCodeInvalidPagination   = "E103" // Limit/offset out of range
	ErrCodeInvalidVisibility   = "E104" // showSoftDeleted not inclusive/exclusive

	ErrCodeSchemaValidation = "E110" // Query references unknown columns or relations
	ErrCodeDatabase         = "E120" // SQLite failure
)

// compileErrorCode maps a compiler error to its CLI code.
func compileErrorCode(err error) string {
	switch {
	case compiler.IsUnsupportedOperator(err):
		return ErrCodeUnsupportedOperator
	case compiler.IsMalformedFilter(err):
		return ErrCodeMalformedFilter
	case compiler.IsInvalidPagination(err):
		return ErrCodeInvalidPagination
	case compiler.IsInvalidVisibility(err):
		return ErrCodeInvalidVisibility
	default:
		return ErrCodeGeneric
	}
}

// compileErrorDetails exposes the location of a compile error, if any.
func compileErrorDetails(err error) map[string]string {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return nil
	}
	details := map[string]string{}
	if ce.Path != "" {
		details["path"] = ce.Path
	}
	if ce.Field != "" {
		details["field"] = ce.Field
	}
	if ce.Operator != "" {
		details["operator"] = ce.Operator
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// reportError prints err through the formatter and returns the matching
// ExitError.
func reportError(formatter *OutputFormatter, exitCode int, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return &ExitError{Code: exitCode, Message: fmt.Sprintf("%s: %s", code, message)}
}

// reportCompileError reports a failed compilation. Compile errors reject the
// query, not the command, so they exit with ExitFailure.
func reportCompileError(formatter *OutputFormatter, err error) error {
	return reportError(formatter, ExitFailure, compileErrorCode(err), err.Error(), compileErrorDetails(err))
}

// reportSessionError reports a failure to set up the command.
func reportSessionError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var se *sessionError
	if errors.As(err, &se) {
		code = se.code
	}
	var le *schema.LoadError
	if errors.As(err, &le) {
		code = ErrCodeSchemaLoad
	}
	return reportError(formatter, ExitCommandError, code, err.Error(), nil)
}

// sessionError tags a setup failure with its CLI code.
type sessionError struct {
	code string
	err  error
}

func (e *sessionError) Error() string { return e.err.Error() }

func (e *sessionError) Unwrap() error { return e.err }

func tagError(code string, err error) error {
	if err == nil {
		return nil
	}
	return &sessionError{code: code, err: err}
}
