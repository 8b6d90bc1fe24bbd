package filter

import (
	"errors"
	"fmt"
)

// Kind categorizes filter errors.
type Kind string

const (
	// KindMalformedFilter indicates a shape violation: a non-array $and/$or,
	// a field value that is not a single-key operator object, a wrong
	// operator arity, or a duplicate key rejected by policy.
	KindMalformedFilter Kind = "MALFORMED_FILTER"

	// KindUnsupportedOperator indicates an operator token outside the registry.
	KindUnsupportedOperator Kind = "UNSUPPORTED_OPERATOR"
)

// Error is a filter parse or shape error.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Path locates the offending node, e.g. "filters.$and[0].age".
	Path string

	// Field is the field name of the offending predicate, when known.
	Field string

	// Operator is the offending operator token, when known.
	Operator string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsMalformed reports whether err is a KindMalformedFilter error.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindMalformedFilter
	}
	return false
}

// IsUnsupportedOperator reports whether err is a KindUnsupportedOperator error.
func IsUnsupportedOperator(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindUnsupportedOperator
	}
	return false
}

func malformed(path, format string, args ...any) *Error {
	return &Error{
		Kind:    KindMalformedFilter,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}
