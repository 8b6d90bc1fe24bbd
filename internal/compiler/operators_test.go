package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strapiql/internal/ir"
	"github.com/roach88/strapiql/internal/queryir"
)

func emit(t *testing.T, token string, v ir.Value) (queryir.Predicate, map[string]ir.Value, error) {
	t.Helper()
	rule, ok := DefaultRegistry().Lookup(token)
	require.True(t, ok, "operator %s not registered", token)
	b := NewBinder("entity")
	pred, err := rule.Emit(queryir.Col("entity", "f"), v, b)
	return pred, b.Parameters(), err
}

func TestDefaultRegistry_Tokens(t *testing.T) {
	tokens := DefaultRegistry().Tokens()

	assert.Len(t, tokens, 21)
	assert.Equal(t, OpEq, tokens[0])
	for _, tok := range []string{
		OpEq, OpEqi, OpNe, OpNei, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn,
		OpContains, OpNotContains, OpContainsi, OpNotContainsi, OpNull, OpNotNull,
		OpBetween, OpStartsWith, OpStartsWithi, OpEndsWith, OpEndsWithi,
	} {
		assert.True(t, DefaultRegistry().Has(tok), tok)
	}
	assert.False(t, DefaultRegistry().Has("$bogus"))
}

func TestRegistry_TokensIsACopy(t *testing.T) {
	tokens := DefaultRegistry().Tokens()
	tokens[0] = "$mutated"
	assert.Equal(t, OpEq, DefaultRegistry().Tokens()[0])
}

func TestNewRegistry_Errors(t *testing.T) {
	noop := func(queryir.Column, ir.Value, *Binder) (queryir.Predicate, error) { return nil, nil }

	_, err := NewRegistry(Rule{Token: "eq", Emit: noop})
	assert.Error(t, err)

	_, err = NewRegistry(Rule{Token: "$eq"})
	assert.Error(t, err)

	_, err = NewRegistry(Rule{Token: "$eq", Emit: noop}, Rule{Token: "$eq", Emit: noop})
	assert.Error(t, err)

	r, err := NewRegistry(Rule{Token: "$custom", Emit: noop})
	require.NoError(t, err)
	assert.Equal(t, []string{"$custom"}, r.Tokens())
	assert.Len(t, r.Rules(), 1)
}

func TestOperators_Comparisons(t *testing.T) {
	tests := []struct {
		token string
		op    queryir.CompareOp
	}{
		{OpEq, queryir.OpEq},
		{OpNe, queryir.OpNe},
		{OpGt, queryir.OpGt},
		{OpGte, queryir.OpGte},
		{OpLt, queryir.OpLt},
		{OpLte, queryir.OpLte},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			pred, params, err := emit(t, tt.token, ir.Int(5))
			require.NoError(t, err)
			assert.Equal(t, queryir.Comparison{Column: queryir.Col("entity", "f"), Op: tt.op, Param: "entity_f_1"}, pred)
			assert.Equal(t, map[string]ir.Value{"entity_f_1": ir.Int(5)}, params)
		})
	}
}

func TestOperators_EqualityWithNull(t *testing.T) {
	pred, params, err := emit(t, OpEq, ir.Null{})
	require.NoError(t, err)
	assert.Equal(t, queryir.IsNull{Column: queryir.Col("entity", "f")}, pred)
	assert.Empty(t, params)

	pred, _, err = emit(t, OpNe, ir.Null{})
	require.NoError(t, err)
	assert.Equal(t, queryir.IsNull{Column: queryir.Col("entity", "f"), Negated: true}, pred)

	_, _, err = emit(t, OpGt, ir.Null{})
	assert.True(t, IsMalformedFilter(err))
}

func TestOperators_CaseInsensitiveLowersLiteral(t *testing.T) {
	pred, params, err := emit(t, OpEqi, ir.String("ÉMILE"))
	require.NoError(t, err)

	cmp := pred.(queryir.Comparison)
	assert.True(t, cmp.Fold)
	assert.Equal(t, ir.String("émile"), params[cmp.Param])

	_, _, err = emit(t, OpEqi, ir.Int(1))
	assert.True(t, IsMalformedFilter(err))
}

func TestOperators_LikePatterns(t *testing.T) {
	tests := []struct {
		token   string
		value   ir.Value
		pattern string
		negated bool
		fold    bool
	}{
		{OpContains, ir.String("John"), "%John%", false, false},
		{OpNotContains, ir.String("John"), "%John%", true, false},
		{OpContainsi, ir.String("John"), "%john%", false, true},
		{OpNotContainsi, ir.String("John"), "%john%", true, true},
		{OpStartsWith, ir.String("Jo"), "Jo%", false, false},
		{OpStartsWithi, ir.String("Jo"), "jo%", false, true},
		{OpEndsWith, ir.String("hn"), "%hn", false, false},
		{OpEndsWithi, ir.String("HN"), "%hn", false, true},
		{OpContains, ir.String("50%_off\\"), `%50\%\_off\\%`, false, false},
		{OpContains, ir.Int(42), "%42%", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.token+"/"+tt.pattern, func(t *testing.T) {
			pred, params, err := emit(t, tt.token, tt.value)
			require.NoError(t, err)

			like := pred.(queryir.Like)
			assert.Equal(t, tt.negated, like.Negated)
			assert.Equal(t, tt.fold, like.Fold)
			assert.Equal(t, ir.String(tt.pattern), params[like.Param])
		})
	}
}

func TestOperators_LikeRejectsNonText(t *testing.T) {
	for _, v := range []ir.Value{ir.Bool(true), ir.Null{}, ir.Array{ir.String("a")}} {
		_, _, err := emit(t, OpContains, v)
		assert.True(t, IsMalformedFilter(err), "%v", v)
	}
}

func TestOperators_EscapedWildcardsMatchLiterally(t *testing.T) {
	pred, params, err := emit(t, OpContains, ir.String("100%"))
	require.NoError(t, err)

	q := &queryir.CompiledQuery{Alias: "entity", Predicate: pred, Parameters: params, Projection: queryir.AllColumns(), Limit: 10}
	ok, err := queryir.Matches(q, queryir.Row{"f": "it is 100% done"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = queryir.Matches(q, queryir.Row{"f": "it is 1000 done"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperators_In(t *testing.T) {
	pred, params, err := emit(t, OpIn, ir.Array{ir.String("a"), ir.String("b")})
	require.NoError(t, err)
	in := pred.(queryir.In)
	assert.False(t, in.Negated)
	assert.Equal(t, ir.Array{ir.String("a"), ir.String("b")}, params[in.Param])

	pred, _, err = emit(t, OpNotIn, ir.Array{ir.Int(1)})
	require.NoError(t, err)
	assert.True(t, pred.(queryir.In).Negated)

	tests := []struct {
		name  string
		value ir.Value
	}{
		{"scalar", ir.String("a")},
		{"empty", ir.Array{}},
		{"nested", ir.Array{ir.Array{ir.Int(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := emit(t, OpIn, tt.value)
			assert.True(t, IsMalformedFilter(err))
		})
	}
}

func TestOperators_Null(t *testing.T) {
	tests := []struct {
		token   string
		value   ir.Value
		negated bool
	}{
		{OpNull, ir.Bool(true), false},
		{OpNull, ir.Bool(false), true},
		{OpNull, ir.String("false"), true},
		{OpNull, ir.String("anything"), false},
		{OpNotNull, ir.Bool(true), true},
		{OpNotNull, ir.Bool(false), false},
		{OpNotNull, ir.Null{}, true},
	}

	for _, tt := range tests {
		pred, params, err := emit(t, tt.token, tt.value)
		require.NoError(t, err)
		assert.Equal(t, queryir.IsNull{Column: queryir.Col("entity", "f"), Negated: tt.negated}, pred, "%s %v", tt.token, tt.value)
		assert.Empty(t, params)
	}
}

func TestOperators_NullRuleIsReusable(t *testing.T) {
	// Two applications must not influence each other
	first, _, err := emit(t, OpNull, ir.Bool(false))
	require.NoError(t, err)
	second, _, err := emit(t, OpNull, ir.Bool(true))
	require.NoError(t, err)

	assert.True(t, first.(queryir.IsNull).Negated)
	assert.False(t, second.(queryir.IsNull).Negated)
}

func TestOperators_Between(t *testing.T) {
	pred, params, err := emit(t, OpBetween, ir.Array{ir.Int(18), ir.Int(30)})
	require.NoError(t, err)

	between := pred.(queryir.Between)
	assert.Equal(t, "entity_f_1", between.Low)
	assert.Equal(t, "entity_f_2", between.High)
	assert.Equal(t, ir.Int(18), params[between.Low])
	assert.Equal(t, ir.Int(30), params[between.High])

	for _, v := range []ir.Value{
		ir.Int(18),
		ir.Array{ir.Int(18)},
		ir.Array{ir.Int(1), ir.Int(2), ir.Int(3)},
		ir.Array{ir.Null{}, ir.Int(2)},
	} {
		_, _, err := emit(t, OpBetween, v)
		assert.True(t, IsMalformedFilter(err), "%v", v)
	}
}

func TestOperators_ScalarOperatorsRejectArrays(t *testing.T) {
	for _, tok := range []string{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpEqi} {
		_, _, err := emit(t, tok, ir.Array{ir.Int(1)})
		assert.True(t, IsMalformedFilter(err), tok)
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "plain", EscapeLike("plain"))
	assert.Equal(t, `\%`, EscapeLike("%"))
	assert.Equal(t, `a\_b`, EscapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, EscapeLike(`c:\dir`))
}
