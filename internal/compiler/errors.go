package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/strapiql/internal/filter"
)

// ErrorCode categorizes compilation errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedOperator indicates an operator token not in the registry.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeMalformedFilter indicates a shape violation anywhere in the
	// filter tree or in an operator's argument.
	ErrCodeMalformedFilter ErrorCode = "MALFORMED_FILTER"

	// ErrCodeInvalidPagination indicates limit <= 0, offset < 0, or a limit
	// above the configured maximum.
	ErrCodeInvalidPagination ErrorCode = "INVALID_PAGINATION"

	// ErrCodeInvalidVisibility indicates a soft delete visibility other
	// than inclusive or exclusive.
	ErrCodeInvalidVisibility ErrorCode = "INVALID_VISIBILITY"
)

// CompileError is a fatal compilation error. A compilation that fails
// produces no query at all.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the offending node, e.g. "filters.$and[0].age.$between".
	Path string

	// Field is the offending field name, when known.
	Field string

	// Operator is the offending operator token, when known.
	Operator string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnsupportedOperator returns true if err is an unsupported operator error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedOperator(err error) bool {
	return hasCode(err, ErrCodeUnsupportedOperator)
}

// IsMalformedFilter returns true if err is a malformed filter error.
func IsMalformedFilter(err error) bool {
	return hasCode(err, ErrCodeMalformedFilter)
}

// IsInvalidPagination returns true if err is an invalid pagination error.
func IsInvalidPagination(err error) bool {
	return hasCode(err, ErrCodeInvalidPagination)
}

// IsInvalidVisibility returns true if err is an invalid visibility error.
func IsInvalidVisibility(err error) bool {
	return hasCode(err, ErrCodeInvalidVisibility)
}

func visibilityError(format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ErrCodeInvalidVisibility,
		Message: fmt.Sprintf(format, args...),
		Path:    KeyShowSoftDeleted,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// shapeError reports an operator argument that violates the operator's
// arity or value shape. Location fields are filled in by the caller.
func shapeError(format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ErrCodeMalformedFilter,
		Message: fmt.Sprintf(format, args...),
	}
}

func paginationError(format string, args ...any) *CompileError {
	return &CompileError{
		Code:    ErrCodeInvalidPagination,
		Message: fmt.Sprintf(format, args...),
	}
}

// fromFilterError converts a filter parse error into a CompileError so
// callers see one taxonomy. Other errors pass through unchanged.
func fromFilterError(err error) error {
	var fe *filter.Error
	if !errors.As(err, &fe) {
		return err
	}
	code := ErrCodeMalformedFilter
	if fe.Kind == filter.KindUnsupportedOperator {
		code = ErrCodeUnsupportedOperator
	}
	return &CompileError{
		Code:     code,
		Message:  fe.Message,
		Path:     fe.Path,
		Field:    fe.Field,
		Operator: fe.Operator,
	}
}
