package compiler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strapiql/internal/filter"
	"github.com/roach88/strapiql/internal/queryir"
)

func TestDecodeQuerySpec_Full(t *testing.T) {
	spec, err := DecodeQuerySpec([]byte(`{
		"filters": {"name": {"$containsi": "john"}},
		"sort": ["createdAt:desc", "name"],
		"fields": "id, name",
		"populate": ["roles"],
		"showSoftDeleted": "inclusive",
		"limit": 20,
		"offset": "40"
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, spec.RawFilters.(*filter.Object).Keys())
	assert.Equal(t, []SortField{{"createdAt", queryir.Desc}, {"name", queryir.Asc}}, spec.Sort)
	assert.Equal(t, []string{"id", "name"}, spec.Fields)
	assert.Equal(t, []string{"roles"}, spec.Populate)
	assert.Equal(t, Inclusive, spec.SoftDelete)
	require.NotNil(t, spec.Limit)
	assert.Equal(t, 20, *spec.Limit)
	require.NotNil(t, spec.Offset)
	assert.Equal(t, 40, *spec.Offset)
}

func TestDecodeQuerySpec_Empty(t *testing.T) {
	spec, err := DecodeQuerySpec([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, spec.RawFilters)
	assert.Nil(t, spec.Limit)
	assert.Nil(t, spec.Offset)

	spec, err = DecodeQuerySpec([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, spec.RawFilters)
}

func TestDecodeQuerySpec_Errors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		pagination bool
	}{
		{"not json", `{`, false},
		{"not an object", `[]`, false},
		{"unknown key", `{"filter": {}}`, false},
		{"filters not object", `{"filters": [1]}`, false},
		{"bad sort", `{"sort": 1}`, false},
		{"bad sort element", `{"sort": ["a", 1]}`, false},
		{"bad visibility", `{"showSoftDeleted": "sometimes"}`, false},
		{"fractional limit", `{"limit": 1.5}`, true},
		{"text limit", `{"limit": "ten"}`, true},
		{"bool offset", `{"offset": true}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeQuerySpec([]byte(tt.src))
			require.Error(t, err)
			assert.Equal(t, tt.pagination, IsInvalidPagination(err))
		})
	}
}

func TestDecodeQuerySpec_InvalidVisibility(t *testing.T) {
	for _, src := range []string{
		`{"showSoftDeleted": "sometimes"}`,
		`{"showSoftDeleted": 3}`,
	} {
		_, err := DecodeQuerySpec([]byte(src))
		require.Error(t, err, src)
		assert.True(t, IsInvalidVisibility(err), src)

		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, KeyShowSoftDeleted, ce.Path)
	}
}

func TestDecodeQuerySpec_FiltersKeepDuplicates(t *testing.T) {
	spec, err := DecodeQuerySpec([]byte(`{"filters": {"a": {"$eq": 1}, "a": {"$eq": 2}}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, spec.RawFilters.(*filter.Object).Keys())
}

func TestDecodeQuerySpecYAML(t *testing.T) {
	src := `
filters:
  $or:
    - name: { $startsWith: jo }
    - age: { $between: [18, 30] }
sort: name:desc
populate: roles, profile
showSoftDeleted: true
limit: 5
`
	spec, err := DecodeQuerySpecYAML([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"$or"}, spec.RawFilters.(*filter.Object).Keys())
	assert.Equal(t, []SortField{{"name", queryir.Desc}}, spec.Sort)
	assert.Equal(t, []string{"roles", "profile"}, spec.Populate)
	assert.Equal(t, Inclusive, spec.SoftDelete)
	assert.Equal(t, 5, *spec.Limit)

	c := newCompiler(t, Config{})
	q, err := c.Compile(spec)
	require.NoError(t, err)

	rows := []queryir.Row{
		{"id": 1, "name": "john", "age": 50},
		{"id": 2, "name": "mary", "age": 30},
		{"id": 3, "name": "zed", "age": 40},
	}
	assert.Equal(t, []any{2, 1}, ids(evalRows(t, q, rows)))
}

func TestQuerySpecFromValues_JSONFilters(t *testing.T) {
	v := url.Values{}
	v.Set("filters", `{"name": {"$eq": "john"}}`)
	v.Set("sort", "name:desc")
	v.Set("limit", "5")
	v.Set("offset", "10")
	v.Set("showSoftDeleted", "inclusive")

	spec, err := QuerySpecFromValues(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, spec.RawFilters.(*filter.Object).Keys())
	assert.Equal(t, []SortField{{"name", queryir.Desc}}, spec.Sort)
	assert.Equal(t, 5, *spec.Limit)
	assert.Equal(t, 10, *spec.Offset)
	assert.Equal(t, Inclusive, spec.SoftDelete)
}

func TestQuerySpecFromValues_BracketFilters(t *testing.T) {
	v, err := url.ParseQuery(
		"filters[$or][0][name][$eq]=john" +
			"&filters[$or][1][status][$in][]=active" +
			"&filters[$or][1][status][$in][]=draft" +
			"&filters[$or][10][age][$between][0]=18" +
			"&filters[$or][10][age][$between][1]=30" +
			"&populate[0]=roles&populate[1]=profile" +
			"&fields=id,name")
	require.NoError(t, err)

	spec, err := QuerySpecFromValues(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"roles", "profile"}, spec.Populate)
	assert.Equal(t, []string{"id", "name"}, spec.Fields)

	c := newCompiler(t, Config{})
	node, err := c.ParseFilters(spec.RawFilters)
	require.NoError(t, err)

	or, ok := node.(*filter.Disjunction)
	require.True(t, ok)
	require.Len(t, or.Children, 3)

	// Indices order numerically, not lexically
	assert.Equal(t, "name", or.Children[0].(*filter.FieldPredicate).Field)
	assert.Equal(t, "status", or.Children[1].(*filter.FieldPredicate).Field)
	assert.Equal(t, "age", or.Children[2].(*filter.FieldPredicate).Field)
}

func TestQuerySpecFromValues_SingleListValue(t *testing.T) {
	v, err := url.ParseQuery("filters[status][$in][]=active")
	require.NoError(t, err)

	spec, err := QuerySpecFromValues(v)
	require.NoError(t, err)

	c := newCompiler(t, Config{})
	node, err := c.ParseFilters(spec.RawFilters)
	require.NoError(t, err)
	assert.Equal(t, OpIn, node.(*filter.FieldPredicate).Operator)
}

func TestQuerySpecFromValues_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown key", "page=2"},
		{"bad json", "filters={"},
		{"both forms", "filters={}&filters[a][$eq]=1"},
		{"value and children", "filters[a]=1&filters[a][$eq]=1"},
		{"unterminated", "filters[a[$eq]=1"},
		{"bad limit", "limit=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			_, err = QuerySpecFromValues(v)
			assert.Error(t, err)
		})
	}
}
