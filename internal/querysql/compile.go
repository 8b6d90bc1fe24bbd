package querysql

import (
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/strapiql/internal/ir"
	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/schema"
)

// OwnerKeyColumn is the result column RenderRelation adds to every related
// row, holding the owner key value the row belongs to.
const OwnerKeyColumn = "__owner_key"

// throughAlias qualifies the join table of many-to-many relations.
const throughAlias = "__through"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Statement is parameterized SQL ready for database/sql.
//
// Args holds sql.NamedArg values in order of first appearance. Values are
// never interpolated into SQL.
type Statement struct {
	SQL  string
	Args []any

	// Hidden lists columns selected only so related rows can be attached.
	// Callers strip them from results.
	Hidden []string
}

// Target names the table a root query runs against.
type Target struct {
	Table string

	// PrimaryKey, when set, is appended to ORDER BY as a final tiebreaker so
	// pages are stable.
	PrimaryKey string

	// Require lists columns that must be selected even when the projection
	// omits them, e.g. relation owner keys.
	Require []string
}

// SQLCompiler renders CompiledQueries as SQLite SQL.
//
// CRITICAL: All values are parameterized (never interpolated).
// Identifiers are validated and double-quoted.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Render converts q into a SELECT over t.Table aliased as q.Alias.
//
// Joins are not rendered here: populated relations load through
// RenderRelation so LIMIT and OFFSET count root rows only.
func (c *SQLCompiler) Render(t Target, q *queryir.CompiledQuery) (Statement, error) {
	r, err := newRenderer(t.Table, q)
	if err != nil {
		return Statement{}, err
	}

	selectClause, hidden, err := r.projection(t.Require)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectClause)
	sb.WriteString(r.from)

	if err := r.where(&sb); err != nil {
		return Statement{}, err
	}

	orderBy, err := r.orderBy(t.PrimaryKey)
	if err != nil {
		return Statement{}, err
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}

	limit := r.fresh("limit")
	offset := r.fresh("offset")
	fmt.Fprintf(&sb, " LIMIT :%s OFFSET :%s", limit, offset)
	r.args = append(r.args, sql.Named(limit, int64(q.Limit)), sql.Named(offset, int64(q.Offset)))

	return Statement{SQL: sb.String(), Args: r.args, Hidden: hidden}, nil
}

// RenderCount converts q into a COUNT(*) over every matching row, ignoring
// order, projection and pagination.
func (c *SQLCompiler) RenderCount(table string, q *queryir.CompiledQuery) (Statement, error) {
	r, err := newRenderer(table, q)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*)")
	sb.WriteString(r.from)
	if err := r.where(&sb); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sb.String(), Args: r.args}, nil
}

// RenderRelation selects the rows of rel owned by ownerKeys. Every row
// carries OwnerKeyColumn; rows are ordered by owner key, then by the target
// primary key.
func (c *SQLCompiler) RenderRelation(rel schema.Relation, ownerKeys []any) (Statement, error) {
	if len(ownerKeys) == 0 {
		return Statement{}, fmt.Errorf("relation %s: no owner keys", rel.Name)
	}
	for _, id := range []string{rel.Name, rel.Table, rel.TargetKey, rel.PrimaryKey} {
		if err := checkIdent(id); err != nil {
			return Statement{}, fmt.Errorf("relation %s: %w", rel.Name, err)
		}
	}

	alias := quote(rel.Name)
	target := alias + "." + quote(rel.TargetKey)

	var ownerCol, joinClause string
	if rel.Through == "" {
		ownerCol = target
	} else {
		for _, id := range []string{rel.Through, rel.ThroughOwnerKey, rel.ThroughTargetKey} {
			if err := checkIdent(id); err != nil {
				return Statement{}, fmt.Errorf("relation %s: %w", rel.Name, err)
			}
		}
		through := quote(throughAlias)
		ownerCol = through + "." + quote(rel.ThroughOwnerKey)
		joinClause = fmt.Sprintf(" JOIN %s AS %s ON %s.%s = %s",
			quote(rel.Through), through, through, quote(rel.ThroughTargetKey), target)
	}

	placeholders := make([]string, len(ownerKeys))
	args := make([]any, len(ownerKeys))
	for i, key := range ownerKeys {
		name := fmt.Sprintf("owner_%d", i+1)
		placeholders[i] = ":" + name
		args[i] = sql.Named(name, key)
	}

	stmt := fmt.Sprintf("SELECT %s.*, %s AS %s FROM %s AS %s%s WHERE %s IN (%s) ORDER BY %s ASC, %s.%s ASC",
		alias, ownerCol, quote(OwnerKeyColumn),
		quote(rel.Table), alias, joinClause,
		ownerCol, strings.Join(placeholders, ", "),
		quote(OwnerKeyColumn), alias, quote(rel.PrimaryKey))

	return Statement{SQL: stmt, Args: args}, nil
}

// renderer carries per-statement state: the bound arguments and every
// placeholder name already taken.
type renderer struct {
	q     *queryir.CompiledQuery
	from  string
	args  []any
	taken map[string]bool
	bound map[string]bool
}

func newRenderer(table string, q *queryir.CompiledQuery) (*renderer, error) {
	if res := queryir.Validate(q); !res.Valid {
		return nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}
	if err := checkIdent(table); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if err := checkIdent(q.Alias); err != nil {
		return nil, fmt.Errorf("alias: %w", err)
	}

	r := &renderer{
		q:     q,
		from:  fmt.Sprintf(" FROM %s AS %s", quote(table), quote(q.Alias)),
		taken: make(map[string]bool, len(q.Parameters)),
		bound: make(map[string]bool, len(q.Parameters)),
	}
	for name := range q.Parameters {
		r.taken[name] = true
	}
	return r, nil
}

func (r *renderer) where(sb *strings.Builder) error {
	if r.q.Predicate == nil {
		return nil
	}
	cond, err := r.predicate(r.q.Predicate)
	if err != nil {
		return fmt.Errorf("compile filter: %w", err)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(cond)
	return nil
}

func (r *renderer) projection(require []string) (string, []string, error) {
	alias := quote(r.q.Alias)
	if r.q.Projection.All {
		return alias + ".*", nil, nil
	}

	parts := make([]string, 0, len(r.q.Projection.Columns)+len(require))
	selected := make(map[string]bool, len(r.q.Projection.Columns))
	for _, col := range r.q.Projection.Columns {
		s, err := r.column(col)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		if col.Qualifier == "" || col.Qualifier == r.q.Alias {
			selected[col.Name] = true
		}
	}

	var hidden []string
	for _, name := range require {
		if selected[name] {
			continue
		}
		if err := checkIdent(name); err != nil {
			return "", nil, err
		}
		selected[name] = true
		hidden = append(hidden, name)
		parts = append(parts, alias+"."+quote(name))
	}
	return strings.Join(parts, ", "), hidden, nil
}

func (r *renderer) orderBy(pk string) (string, error) {
	parts := make([]string, 0, len(r.q.OrderBy)+1)
	hasPK := false
	for _, o := range r.q.OrderBy {
		col, err := r.column(o.Column)
		if err != nil {
			return "", err
		}
		parts = append(parts, col+" "+string(o.Direction))
		if o.Column.Name == pk && (o.Column.Qualifier == "" || o.Column.Qualifier == r.q.Alias) {
			hasPK = true
		}
	}

	// Deterministic tiebreaker, unless the caller already sorts by it
	if pk != "" && !hasPK {
		if err := checkIdent(pk); err != nil {
			return "", fmt.Errorf("primary key: %w", err)
		}
		parts = append(parts, quote(r.q.Alias)+"."+quote(pk)+" ASC")
	}
	return strings.Join(parts, ", "), nil
}

// predicate renders p as a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always named placeholders.
func (r *renderer) predicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.Comparison:
		col, err := r.foldColumn(pred.Column, pred.Fold)
		if err != nil {
			return "", err
		}
		ph, err := r.bind(pred.Param)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, sqlOperator(pred.Op), ph), nil

	case queryir.Like:
		col, err := r.foldColumn(pred.Column, pred.Fold)
		if err != nil {
			return "", err
		}
		ph, err := r.bind(pred.Param)
		if err != nil {
			return "", err
		}
		op := "LIKE"
		if pred.Negated {
			op = "NOT LIKE"
		}
		return fmt.Sprintf(`%s %s %s ESCAPE '\'`, col, op, ph), nil

	case queryir.In:
		return r.in(pred)

	case queryir.Between:
		col, err := r.column(pred.Column)
		if err != nil {
			return "", err
		}
		low, err := r.bind(pred.Low)
		if err != nil {
			return "", err
		}
		high, err := r.bind(pred.High)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, low, high), nil

	case queryir.IsNull:
		col, err := r.column(pred.Column)
		if err != nil {
			return "", err
		}
		if pred.Negated {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil

	case queryir.BoolEquals:
		col, err := r.column(pred.Column)
		if err != nil {
			return "", err
		}
		if pred.Value {
			return col + " = TRUE", nil
		}
		return col + " = FALSE", nil

	case queryir.And:
		return r.combine(pred.Predicates, " AND ")

	case queryir.Or:
		return r.combine(pred.Predicates, " OR ")

	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (r *renderer) combine(preds []queryir.Predicate, sep string) (string, error) {
	if len(preds) == 0 {
		return "1 = 1", nil // Always true (vacuous truth)
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		s, err := r.predicate(p)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// in expands the bound list into one placeholder per element.
func (r *renderer) in(pred queryir.In) (string, error) {
	col, err := r.column(pred.Column)
	if err != nil {
		return "", err
	}
	val, err := r.q.Param(pred.Param)
	if err != nil {
		return "", err
	}
	list, ok := val.(ir.Array)
	if !ok || len(list) == 0 {
		return "", fmt.Errorf("parameter %q: IN requires a non-empty array", pred.Param)
	}
	if err := checkParamName(pred.Param); err != nil {
		return "", err
	}

	placeholders := make([]string, len(list))
	for i, elem := range list {
		name := r.fresh(fmt.Sprintf("%s_%d", pred.Param, i+1))
		placeholders[i] = ":" + name
		r.args = append(r.args, sql.Named(name, ir.ToParam(elem)))
	}

	op := "IN"
	if pred.Negated {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), nil
}

// bind records the named argument for param and returns its placeholder.
func (r *renderer) bind(param string) (string, error) {
	if err := checkParamName(param); err != nil {
		return "", err
	}
	if !r.bound[param] {
		val, err := r.q.Param(param)
		if err != nil {
			return "", err
		}
		r.bound[param] = true
		r.args = append(r.args, sql.Named(param, ir.ToParam(val)))
	}
	return ":" + param, nil
}

// fresh returns base, or base with a numeric suffix, such that the name is
// not a parameter of the query nor used earlier in this statement.
func (r *renderer) fresh(base string) string {
	name := base
	for i := 2; r.taken[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	r.taken[name] = true
	return name
}

func (r *renderer) column(col queryir.Column) (string, error) {
	if err := checkIdent(col.Name); err != nil {
		return "", fmt.Errorf("column: %w", err)
	}
	if col.Qualifier == "" {
		return quote(col.Name), nil
	}
	if err := checkIdent(col.Qualifier); err != nil {
		return "", fmt.Errorf("column qualifier: %w", err)
	}
	return quote(col.Qualifier) + "." + quote(col.Name), nil
}

func (r *renderer) foldColumn(col queryir.Column, fold bool) (string, error) {
	s, err := r.column(col)
	if err != nil || !fold {
		return s, err
	}
	return "LOWER(" + s + ")", nil
}

func sqlOperator(op queryir.CompareOp) string {
	if op == queryir.OpNe {
		return "<>"
	}
	return string(op)
}

func checkIdent(s string) error {
	if !identPattern.MatchString(s) {
		return fmt.Errorf("invalid identifier %q", s)
	}
	return nil
}

// checkParamName enforces what sql.Named accepts: a leading letter.
func checkParamName(s string) error {
	if !identPattern.MatchString(s) || s[0] == '_' {
		return fmt.Errorf("invalid parameter name %q", s)
	}
	return nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

// ArgNames returns the placeholder names of st in order.
func (st Statement) ArgNames() []string {
	names := make([]string, 0, len(st.Args))
	for _, a := range st.Args {
		if na, ok := a.(sql.NamedArg); ok {
			names = append(names, na.Name)
		}
	}
	return names
}

// IsHidden reports whether column was added only for relation loading.
func (st Statement) IsHidden(column string) bool {
	return slices.Contains(st.Hidden, column)
}

// RenderInsert renders an INSERT of values into columns, in the order given.
func (c *SQLCompiler) RenderInsert(table string, columns []string, values []any) (Statement, error) {
	if err := checkIdent(table); err != nil {
		return Statement{}, fmt.Errorf("table: %w", err)
	}
	if len(columns) == 0 || len(columns) != len(values) {
		return Statement{}, fmt.Errorf("insert into %s: %d columns for %d values", table, len(columns), len(values))
	}

	cols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, name := range columns {
		if err := checkIdent(name); err != nil {
			return Statement{}, fmt.Errorf("column: %w", err)
		}
		ph := fmt.Sprintf("v%d", i+1)
		cols[i] = quote(name)
		placeholders[i] = ":" + ph
		args[i] = sql.Named(ph, values[i])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return Statement{SQL: stmt, Args: args}, nil
}

// RenderSetFlag renders an UPDATE setting a boolean column on the row whose
// primary key is id.
func (c *SQLCompiler) RenderSetFlag(table, pk, column string, value bool, id any) (Statement, error) {
	for _, ident := range []string{table, pk, column} {
		if err := checkIdent(ident); err != nil {
			return Statement{}, err
		}
	}
	lit := "FALSE"
	if value {
		lit = "TRUE"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = :id",
		quote(table), quote(column), lit, quote(pk))
	return Statement{SQL: stmt, Args: []any{sql.Named("id", id)}}, nil
}
