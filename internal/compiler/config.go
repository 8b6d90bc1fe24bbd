package compiler

import (
	"fmt"

	"github.com/roach88/strapiql/internal/filter"
)

// Defaults applied when a Config field is left at its zero value.
const (
	DefaultAlias            = "entity"
	DefaultLimit            = 10
	DefaultSoftDeleteColumn = "isDeleted"
)

// Config is threaded explicitly into the compiler. Nothing is read from
// the environment.
type Config struct {
	// Alias qualifies every root column (default DefaultAlias).
	Alias string

	// DefaultLimit applies when a request sets no limit (default DefaultLimit).
	DefaultLimit int

	// MaxLimit rejects larger limits with INVALID_PAGINATION. Zero disables
	// the cap.
	MaxLimit int

	// DuplicateKeys decides how a filter level carrying the same key twice
	// is handled (default reject).
	DuplicateKeys filter.DuplicateKeyPolicy

	// MixedKeys decides how a filter level that mixes a combinator with
	// other keys is handled (default reject).
	MixedKeys filter.MixedKeyPolicy

	// SoftDeleteColumn is the boolean column hidden rows are flagged with
	// (default DefaultSoftDeleteColumn).
	SoftDeleteColumn string
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Alias == "" {
		c.Alias = DefaultAlias
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.SoftDeleteColumn == "" {
		c.SoftDeleteColumn = DefaultSoftDeleteColumn
	}
	return c
}

// Validate checks the configuration itself.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default limit must be positive, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < 0 {
		return fmt.Errorf("max limit must be non-negative, got %d", c.MaxLimit)
	}
	if c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default limit %d exceeds max limit %d", c.DefaultLimit, c.MaxLimit)
	}
	return nil
}
