package queryir

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/strapiql/internal/ir"
)

// Row is one record keyed by unqualified column name.
// Missing columns read as NULL.
type Row map[string]any

// Eval applies q to rows in memory with SQL semantics: filtering, ordering,
// offset, limit and projection. Joins are ignored; only root-entity columns
// are visible.
//
// NULL handling follows SQL: any comparison against NULL is unknown and
// therefore excludes the row. Values of different types order as
// NULL < numbers < text, matching SQLite.
//
// Eval is the reference semantics for the SQL renderer and is used to check
// compiled queries against expected row sets without a database.
func Eval(q *CompiledQuery, rows []Row) ([]Row, error) {
	if res := Validate(q); !res.Valid {
		return nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	type keyed struct {
		row  Row
		keys []ir.Value
	}

	matched := make([]keyed, 0, len(rows))
	for _, row := range rows {
		ok, err := Matches(q, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		keys := make([]ir.Value, len(q.OrderBy))
		for i, o := range q.OrderBy {
			v, err := columnValue(row, o.Column)
			if err != nil {
				return nil, err
			}
			keys[i] = v
		}
		matched = append(matched, keyed{row: row, keys: keys})
	}

	slices.SortStableFunc(matched, func(a, b keyed) int {
		for i, o := range q.OrderBy {
			c := orderCompare(a.keys[i], b.keys[i])
			if o.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	start := min(q.Offset, len(matched))
	end := min(start+q.Limit, len(matched))

	out := make([]Row, 0, end-start)
	for _, k := range matched[start:end] {
		out = append(out, project(k.row, q.Projection))
	}
	return out, nil
}

// Matches reports whether row satisfies q's predicate.
func Matches(q *CompiledQuery, row Row) (bool, error) {
	e := &evaluator{params: q.Parameters, row: row}
	return e.eval(q.Predicate)
}

type evaluator struct {
	params map[string]ir.Value
	row    Row
}

func (e *evaluator) eval(p Predicate) (bool, error) {
	if p == nil {
		return true, nil
	}

	switch pred := p.(type) {
	case Comparison:
		col, err := e.column(pred.Column, pred.Fold)
		if err != nil {
			return false, err
		}
		c, ok := sqlCompare(col, e.params[pred.Param])
		if !ok {
			return false, nil
		}
		switch pred.Op {
		case OpEq:
			return c == 0, nil
		case OpNe:
			return c != 0, nil
		case OpGt:
			return c > 0, nil
		case OpGte:
			return c >= 0, nil
		case OpLt:
			return c < 0, nil
		case OpLte:
			return c <= 0, nil
		}
		return false, fmt.Errorf("unknown comparison operator %q", pred.Op)

	case Like:
		col, err := e.column(pred.Column, pred.Fold)
		if err != nil {
			return false, err
		}
		text, ok := likeText(col)
		if !ok {
			return false, nil
		}
		pattern, _ := e.params[pred.Param].(ir.String)
		return likeMatch(text, string(pattern)) != pred.Negated, nil

	case In:
		col, err := e.column(pred.Column, false)
		if err != nil {
			return false, err
		}
		if isNull(col) {
			return false, nil
		}
		list, _ := e.params[pred.Param].(ir.Array)
		sawNull := false
		for _, elem := range list {
			c, ok := sqlCompare(col, elem)
			if !ok {
				sawNull = true
				continue
			}
			if c == 0 {
				return !pred.Negated, nil
			}
		}
		// x NOT IN (..., NULL) is unknown when nothing matched
		return pred.Negated && !sawNull, nil

	case Between:
		col, err := e.column(pred.Column, false)
		if err != nil {
			return false, err
		}
		lo, okLo := sqlCompare(col, e.params[pred.Low])
		hi, okHi := sqlCompare(col, e.params[pred.High])
		if !okLo || !okHi {
			return false, nil
		}
		return lo >= 0 && hi <= 0, nil

	case IsNull:
		col, err := e.column(pred.Column, false)
		if err != nil {
			return false, err
		}
		return isNull(col) != pred.Negated, nil

	case BoolEquals:
		col, err := e.column(pred.Column, false)
		if err != nil {
			return false, err
		}
		want := ir.Int(0)
		if pred.Value {
			want = 1
		}
		c, ok := sqlCompare(col, want)
		return ok && c == 0, nil

	case And:
		for _, child := range pred.Predicates {
			ok, err := e.eval(child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case Or:
		if len(pred.Predicates) == 0 {
			return true, nil
		}
		for _, child := range pred.Predicates {
			ok, err := e.eval(child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown predicate type %T", p)
	}
}

func (e *evaluator) column(c Column, fold bool) (ir.Value, error) {
	v, err := columnValue(e.row, c)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(ir.String); ok && fold {
		return ir.String(ir.Fold(string(s))), nil
	}
	return v, nil
}

func columnValue(row Row, c Column) (ir.Value, error) {
	raw, ok := row[c.Name]
	if !ok {
		return ir.Null{}, nil
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", c, err)
	}
	return v, nil
}

func project(row Row, p Projection) Row {
	if p.All {
		return row
	}
	out := make(Row, len(p.Columns))
	for _, c := range p.Columns {
		out[c.Name] = row[c.Name]
	}
	return out
}

func isNull(v ir.Value) bool {
	switch v.(type) {
	case nil, ir.Null:
		return true
	}
	return false
}

// typeClass orders values of different types the way SQLite does.
func typeClass(v ir.Value) int {
	switch v.(type) {
	case nil, ir.Null:
		return 0
	case ir.Int, ir.Float, ir.Bool:
		return 1
	case ir.String:
		return 2
	default:
		return 3
	}
}

func numeric(v ir.Value) float64 {
	switch val := v.(type) {
	case ir.Int:
		return float64(val)
	case ir.Float:
		return float64(val)
	case ir.Bool:
		if val {
			return 1
		}
	}
	return 0
}

// orderCompare is a total order with NULL first.
func orderCompare(a, b ir.Value) int {
	ca, cb := typeClass(a), typeClass(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	switch ca {
	case 1:
		if ia, ok := a.(ir.Int); ok {
			if ib, ok := b.(ir.Int); ok {
				return cmp.Compare(ia, ib)
			}
		}
		return cmp.Compare(numeric(a), numeric(b))
	case 2:
		return strings.Compare(string(a.(ir.String)), string(b.(ir.String)))
	}
	return 0
}

// sqlCompare compares a column value with an operand. The second result is
// false when either side is NULL (an unknown outcome).
func sqlCompare(col, operand ir.Value) (int, bool) {
	if isNull(col) || isNull(operand) {
		return 0, false
	}
	return orderCompare(col, withAffinity(col, operand)), true
}

// withAffinity converts operand the way SQLite applies a column's affinity
// to a bound value. The stored value's type stands in for the affinity: a
// numeric column compares numeric-looking text as a number, a text column
// compares integers as their decimal text.
func withAffinity(col, operand ir.Value) ir.Value {
	switch typeClass(col) {
	case 1:
		if s, ok := operand.(ir.String); ok {
			if n, ok := parseNumeric(string(s)); ok {
				return n
			}
		}
	case 2:
		if i, ok := operand.(ir.Int); ok {
			return ir.String(strconv.FormatInt(int64(i), 10))
		}
	}
	return operand
}

// parseNumeric reads s as an integer or real literal. Text SQLite would not
// convert ("inf", "0x10", "1_000") stays text.
func parseNumeric(s string) (ir.Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.eE", r)
	}) {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(i), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return ir.Float(f), true
}

// likeText renders v the way SQLite casts it to text for LIKE.
func likeText(v ir.Value) (string, bool) {
	switch val := v.(type) {
	case ir.String:
		return string(val), true
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), true
	case ir.Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), true
	case ir.Bool:
		if val {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

type likeToken struct {
	any    bool // %
	single bool // _
	r      rune
}

// likeMatch matches s against a case-sensitive LIKE pattern with '\' as
// the escape character.
func likeMatch(s, pattern string) bool {
	var toks []likeToken
	prs := []rune(pattern)
	for i := 0; i < len(prs); i++ {
		switch prs[i] {
		case '\\':
			if i+1 < len(prs) {
				i++
			}
			toks = append(toks, likeToken{r: prs[i]})
		case '%':
			toks = append(toks, likeToken{any: true})
		case '_':
			toks = append(toks, likeToken{single: true})
		default:
			toks = append(toks, likeToken{r: prs[i]})
		}
	}

	text := []rune(s)
	si, ti := 0, 0
	star, mark := -1, 0
	for si < len(text) {
		switch {
		case ti < len(toks) && !toks[ti].any && (toks[ti].single || toks[ti].r == text[si]):
			si++
			ti++
		case ti < len(toks) && toks[ti].any:
			star, mark = ti, si
			ti++
		case star >= 0:
			ti = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for ti < len(toks) && toks[ti].any {
		ti++
	}
	return ti == len(toks)
}
