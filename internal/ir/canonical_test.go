package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"float", Float(0.25), "0.25"},
		{"bool true", Bool(true), "true"},
		{"null", Null{}, "null"},
		{"empty array", Array{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", map[string]any{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("a < b && c > d")
	require.NoError(t, err)
	assert.Equal(t, `"a < b && c > d"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form
	decomposed, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	precomposed, err := MarshalCanonical("\u00e9")
	require.NoError(t, err)
	assert.Equal(t, precomposed, decomposed)
}

func TestMarshalCanonicalUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
}

func TestFingerprintDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	a := Fingerprint(DomainQueryShape, data)
	b := Fingerprint("other/domain/v1", data)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint(DomainQueryShape, data))
}
