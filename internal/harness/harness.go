package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/querysql"
	"github.com/roach88/strapiql/internal/schema"
	"github.com/roach88/strapiql/internal/store"
)

// evalRowLimit bounds the rows loaded for the evaluator.
const evalRowLimit = 1 << 20

// Harness holds the per-scenario state.
type Harness struct {
	store    *store.Store
	compiler *compiler.Compiler
	registry *schema.Registry
	entity   *schema.Entity
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and seed setup rows
// 2. Compile the request and check it against the entity
// 3. Run it through SQLite and through the evaluator
// 4. Evaluate assertions
//
// Compile errors and schema issues are outcomes, not failures: they are
// recorded on the result for the error and issues assertions.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	reg, err := schema.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	entity, err := reg.Entity(scenario.Entity)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	c, err := compiler.New(compiler.Config{}, compiler.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		compiler: c,
		registry: reg,
		entity:   entity,
		logger:   logger,
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.execute(ctx, scenario, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup inserts the seed rows in order.
func (h *Harness) executeSetup(ctx context.Context, setup []TableRows) error {
	for i, t := range setup {
		for j, row := range t.Rows {
			if _, err := h.store.Insert(ctx, t.Table, store.Record(row)); err != nil {
				return fmt.Errorf("setup[%d] %s row %d: %w", i, t.Table, j, err)
			}
		}
		h.logger.Info("seeded table", "table", t.Table, "rows", len(t.Rows))
	}
	return nil
}

// execute compiles and runs the request, filling result.
func (h *Harness) execute(ctx context.Context, scenario *Scenario, result *Result) error {
	spec, err := h.decodeRequest(scenario)
	if err != nil {
		if code, ok := compileErrorCode(err); ok {
			result.ErrorCode = code
			return nil
		}
		return err
	}
	if !h.entity.SoftDelete {
		spec.SoftDelete = compiler.Inclusive
	}

	q, err := h.compiler.Compile(spec)
	if err != nil {
		if code, ok := compileErrorCode(err); ok {
			result.ErrorCode = code
			return nil
		}
		return err
	}
	result.Query = q

	if err := h.entity.Check(h.registry, q); err != nil {
		var ve *schema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		result.Issues = ve.Issues
		return nil
	}

	rendered, err := querysql.NewSQLCompiler().Render(querysql.Target{
		Table:      h.entity.Table,
		PrimaryKey: h.entity.PrimaryKey,
	}, q)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	result.SQL = rendered.SQL
	for _, a := range rendered.Args {
		if na, ok := a.(sql.NamedArg); ok {
			result.Args = append(result.Args, Arg{Name: na.Name, Value: na.Value})
		}
	}

	if result.Records, err = h.store.Find(ctx, h.entity, q); err != nil {
		return err
	}
	if result.Total, err = h.store.Count(ctx, h.entity, q); err != nil {
		return err
	}
	result.IDs = primaryKeys(result.Records, h.entity.PrimaryKey)

	rows, err := h.allRows(ctx)
	if err != nil {
		return err
	}
	if result.Eval, err = queryir.Eval(q, rows); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	return nil
}

// decodeRequest decodes the scenario's query string, or re-encodes its
// request node and decodes it as a request document, keeping key order.
func (h *Harness) decodeRequest(scenario *Scenario) (compiler.QuerySpec, error) {
	if scenario.QueryString != "" {
		values, err := url.ParseQuery(strings.TrimPrefix(scenario.QueryString, "?"))
		if err != nil {
			return compiler.QuerySpec{}, fmt.Errorf("parse query string: %w", err)
		}
		return compiler.QuerySpecFromValues(values)
	}
	node := &scenario.Request
	if node.Kind == 0 {
		return compiler.DecodeQuerySpecYAML([]byte("{}"))
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return compiler.QuerySpec{}, fmt.Errorf("encode request: %w", err)
	}
	return compiler.DecodeQuerySpecYAML(data)
}

// allRows loads every row of the entity's table, soft-deleted included.
func (h *Harness) allRows(ctx context.Context) ([]queryir.Row, error) {
	q, err := h.compiler.Compile(compiler.QuerySpec{
		SoftDelete: compiler.Inclusive,
		Limit:      compiler.IntPtr(evalRowLimit),
	})
	if err != nil {
		return nil, err
	}
	records, err := h.store.Find(ctx, h.entity, q)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	rows := make([]queryir.Row, len(records))
	for i, r := range records {
		rows[i] = queryir.Row(r)
	}
	return rows, nil
}

func compileErrorCode(err error) (string, bool) {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return string(ce.Code), true
	}
	return "", false
}

// primaryKeys returns the int64 primary key of each record, or nil if any
// record lacks one.
func primaryKeys(records []store.Record, pk string) []int64 {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		id, ok := r[pk].(int64)
		if !ok {
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}
