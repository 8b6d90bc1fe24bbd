package ir

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold lower-cases s for case-insensitive matching.
//
// The same function lower-cases bound literals in the compiler, column
// values in the in-memory evaluator, and LOWER() inside SQLite, so all
// three agree on non-ASCII input.
func Fold(s string) string {
	// Casers are stateful; one per call.
	return cases.Lower(language.Und).String(s)
}
