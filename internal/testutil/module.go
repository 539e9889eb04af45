package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/compiler"
	"github.com/roach88/wasmstack/internal/wasm"
)

// MustModule compiles a YAML module description and fails the test on error.
// The module is not validated, so tests can build deliberately broken bodies.
func MustModule(t testing.TB, src string) *wasm.Module {
	t.Helper()
	desc, err := compiler.ParseModuleYAML([]byte(src))
	require.NoError(t, err)
	if desc.Name == "" {
		desc.Name = "test"
	}
	m, err := compiler.CompileModule(desc)
	require.NoError(t, err)
	return m
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
