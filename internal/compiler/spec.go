package compiler

import (
	"strings"

	"github.com/roach88/strapiql/internal/filter"
	"github.com/roach88/strapiql/internal/queryir"
)

// Visibility controls whether soft-deleted rows are returned.
type Visibility string

const (
	// Exclusive hides soft-deleted rows. It is the default.
	Exclusive Visibility = "exclusive"

	// Inclusive returns soft-deleted rows alongside live ones.
	Inclusive Visibility = "inclusive"
)

// ParseVisibility parses "inclusive" or "exclusive" (case-insensitive).
// The empty string is Exclusive.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Exclusive):
		return Exclusive, nil
	case string(Inclusive):
		return Inclusive, nil
	default:
		return "", visibilityError("unknown soft delete visibility %q: must be inclusive or exclusive", s)
	}
}

// SortField is one sort key.
type SortField struct {
	Field     string
	Direction queryir.Direction
}

// QuerySpec is a caller-supplied request. The compiler only reads it.
type QuerySpec struct {
	// Filter is an already-parsed filter tree. Mutually exclusive with
	// RawFilters.
	Filter filter.Node

	// RawFilters is an unparsed filter object: a *filter.Object (from
	// filter.Decode) or a map[string]any.
	RawFilters any

	// Sort keys, primary first.
	Sort []SortField

	// Fields to project. Empty means every column.
	Fields []string

	// Populate lists relations to join, in request order.
	Populate []string

	// SoftDelete is the soft-delete visibility ("" means Exclusive).
	SoftDelete Visibility

	// Limit and Offset are nil when the request leaves them unset.
	Limit  *int
	Offset *int

	// Joined names relations the caller has already joined.
	Joined []string
}

// ParseSort parses a sort string such as "name:desc,createdAt".
//
// Entries are comma-separated "field[:direction]". Only a case-insensitive
// "desc" yields descending order; anything else, including no direction,
// is ascending. Blank entries are skipped.
func ParseSort(s string) []SortField {
	var out []SortField
	for _, entry := range strings.Split(s, ",") {
		field, dir, _ := strings.Cut(entry, ":")
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		direction := queryir.Asc
		if strings.EqualFold(strings.TrimSpace(dir), "desc") {
			direction = queryir.Desc
		}
		out = append(out, SortField{Field: field, Direction: direction})
	}
	return out
}

// IntPtr is a convenience for filling QuerySpec.Limit and Offset.
func IntPtr(n int) *int {
	return &n
}
