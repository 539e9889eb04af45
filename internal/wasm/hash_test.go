package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashDeterminism(t *testing.T) {
	v := map[string]any{
		"function": "add",
		"stack":    []ValueType{ValueTypeI32},
	}

	h1, err := ContentHash(DomainFunctionAnalysis, v)
	require.NoError(t, err)
	h2, err := ContentHash(DomainFunctionAnalysis, v)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "ContentHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestContentHashDomainSeparation(t *testing.T) {
	v := map[string]any{"function": "add"}

	fn, err := ContentHash(DomainFunctionAnalysis, v)
	require.NoError(t, err)
	mod, err := ContentHash(DomainModuleAnalysis, v)
	require.NoError(t, err)

	assert.NotEqual(t, fn, mod, "different domains must produce different hashes")
}

func TestContentHashChangesWithInput(t *testing.T) {
	h1, err := ContentHash(DomainFunctionAnalysis, map[string]any{"max_depth": 1})
	require.NoError(t, err)
	h2, err := ContentHash(DomainFunctionAnalysis, map[string]any{"max_depth": 2})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestContentHashRejectsUnsupported(t *testing.T) {
	_, err := ContentHash(DomainFunctionAnalysis, map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), DomainFunctionAnalysis)
}
