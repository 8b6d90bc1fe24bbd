package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/strapiql/internal/queryir"
)

// Compiler turns QuerySpecs into CompiledQueries.
//
// A Compiler holds only read-only configuration, so one instance may be
// used concurrently. Each Compile call allocates its own parameter
// namespace and returns an independently owned result.
type Compiler struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for debug output. Parameter values are never
// logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithRegistry replaces the default operator registry.
func WithRegistry(r *Registry) Option {
	return func(c *Compiler) {
		c.registry = r
	}
}

// New creates a Compiler. Zero Config fields take their defaults.
func New(cfg Config, opts ...Option) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compiler config: %w", err)
	}
	c := &Compiler{
		cfg:      cfg.withDefaults(),
		registry: DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Compiler) Config() Config {
	return c.cfg
}

// Registry returns the operator registry in use.
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// Compile assembles a CompiledQuery from spec. The steps run in a fixed
// order:
//  1. soft-delete visibility
//  2. filters, AND-ed after the soft-delete restriction
//  3. sort
//  4. populate joins
//  5. projection
//  6. pagination
//
// Any error aborts the whole compilation; there is no partial result.
func (c *Compiler) Compile(spec QuerySpec) (*queryir.CompiledQuery, error) {
	alias := c.cfg.Alias

	// 1. Soft delete
	visibility := spec.SoftDelete
	if visibility == "" {
		visibility = Exclusive
	}
	var softDelete queryir.Predicate
	switch visibility {
	case Exclusive:
		softDelete = queryir.BoolEquals{Column: queryir.Col(alias, c.cfg.SoftDeleteColumn), Value: false}
	case Inclusive:
	default:
		return nil, visibilityError("unknown soft delete visibility %q", visibility)
	}

	// 2. Filters
	node := spec.Filter
	if spec.RawFilters != nil {
		if node != nil {
			return nil, &CompileError{
				Code:    ErrCodeMalformedFilter,
				Message: "both a parsed filter and raw filters were supplied",
			}
		}
		parsed, err := c.ParseFilters(spec.RawFilters)
		if err != nil {
			return nil, err
		}
		node = parsed
	}
	userPred, params, err := c.CompileFilter(node, alias)
	if err != nil {
		return nil, err
	}

	// 3. Sort
	orderBy := make([]queryir.Order, 0, len(spec.Sort))
	for _, s := range spec.Sort {
		field := strings.TrimSpace(s.Field)
		if field == "" {
			continue
		}
		dir := s.Direction
		if dir != queryir.Desc {
			dir = queryir.Asc
		}
		orderBy = append(orderBy, queryir.Order{Column: queryir.Col(alias, field), Direction: dir})
	}

	// 4. Populate
	joins := ResolveJoins(spec.Populate, spec.Joined)

	// 5. Projection
	projection := queryir.AllColumns()
	if cols := projectionColumns(alias, spec.Fields); len(cols) > 0 {
		projection = queryir.Projection{Columns: cols}
	}

	// 6. Pagination
	limit, offset, err := c.pagination(spec)
	if err != nil {
		return nil, err
	}

	q := &queryir.CompiledQuery{
		Alias:      alias,
		Predicate:  queryir.Conjoin(softDelete, userPred),
		Parameters: params,
		Joins:      joins,
		OrderBy:    orderBy,
		Projection: projection,
		Limit:      limit,
		Offset:     offset,
	}

	if res := queryir.Validate(q); !res.Valid {
		return nil, fmt.Errorf("compiled an invalid query: %s", strings.Join(res.Problems, "; "))
	}

	c.logger.Debug("compiled query",
		"alias", alias,
		"visibility", string(visibility),
		"params", len(params),
		"joins", len(joins),
		"order_by", len(orderBy),
		"limit", limit,
		"offset", offset,
	)
	return q, nil
}

func (c *Compiler) pagination(spec QuerySpec) (int, int, error) {
	limit := c.cfg.DefaultLimit
	if spec.Limit != nil {
		limit = *spec.Limit
	}
	offset := 0
	if spec.Offset != nil {
		offset = *spec.Offset
	}

	if limit <= 0 {
		return 0, 0, paginationError("limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return 0, 0, paginationError("offset must be non-negative, got %d", offset)
	}
	if c.cfg.MaxLimit > 0 && limit > c.cfg.MaxLimit {
		return 0, 0, paginationError("limit %d exceeds maximum %d", limit, c.cfg.MaxLimit)
	}
	return limit, offset, nil
}

// projectionColumns qualifies fields in request order, dropping blanks and
// repeats.
func projectionColumns(alias string, fields []string) []queryir.Column {
	seen := make(map[string]bool, len(fields))
	var cols []queryir.Column
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		cols = append(cols, queryir.Col(alias, f))
	}
	return cols
}
