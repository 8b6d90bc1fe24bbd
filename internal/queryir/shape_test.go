package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strapiql/internal/ir"
)

func renamedQuery(prefix string) *CompiledQuery {
	return &CompiledQuery{
		Alias: "entity",
		Predicate: And{Predicates: []Predicate{
			Comparison{Column: Col("entity", "age"), Op: OpGte, Param: prefix + "age"},
			Like{Column: Col("entity", "name"), Param: prefix + "name", Fold: true},
		}},
		Parameters: map[string]ir.Value{
			prefix + "age":  ir.Int(18),
			prefix + "name": ir.String("%john%"),
		},
		OrderBy:    []Order{{Column: Col("entity", "name"), Direction: Desc}},
		Projection: AllColumns(),
		Limit:      10,
	}
}

func TestShape_IgnoresParameterNames(t *testing.T) {
	a, err := Shape(renamedQuery("x_"))
	require.NoError(t, err)
	b, err := Shape(renamedQuery("completely_different_"))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"param":"p1"`)
	assert.Contains(t, string(a), `"param":"p2"`)
}

func TestShape_DetectsValueChange(t *testing.T) {
	q1 := renamedQuery("x_")
	q2 := renamedQuery("x_")
	q2.Parameters["x_age"] = ir.Int(19)

	a, err := Shape(q1)
	require.NoError(t, err)
	b, err := Shape(q2)
	require.NoError(t, err)

	assert.NotEqual(t, string(a), string(b))
}

func TestShape_DetectsPredicateChange(t *testing.T) {
	q1 := renamedQuery("x_")
	q2 := renamedQuery("x_")
	q2.Predicate = Or{Predicates: q1.Predicate.(And).Predicates}

	h1, err := ShapeHash(q1)
	require.NoError(t, err)
	h2, err := ShapeHash(q2)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestShape_NilQuery(t *testing.T) {
	_, err := Shape(nil)
	assert.Error(t, err)
}

func TestCompiledQuery_MarshalJSON(t *testing.T) {
	q := renamedQuery("entity_")

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	params := decoded["parameters"].(map[string]any)
	assert.Equal(t, float64(18), params["entity_age"])
	assert.Equal(t, "%john%", params["entity_name"])
	assert.Equal(t, float64(10), decoded["limit"])

	pred := decoded["predicate"].(map[string]any)
	assert.Equal(t, "and", pred["type"])
}
