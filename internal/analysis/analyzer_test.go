package analysis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wasmstack/internal/testutil"
	"github.com/roach88/wasmstack/internal/wasm"
)

const threeFunctions = `module:
  name: trio
  functions:
    - name: inc
      params: [i32]
      results: [i32]
      body: [local.get 0, i32.const 1, i32.add]
    - name: broken
      results: [i32]
      body: [f32.const 1, i32.eqz]
    - name: widen
      params: [i32]
      results: [i64]
      body: [local.get 0, i64.extend_i32_s]
`

func TestAnalyzeModule(t *testing.T) {
	m := testutil.MustModule(t, threeFunctions)
	a := newTestAnalyzer(
		WithRunIDGenerator(NewFixedGenerator("run-1")),
		WithWorkers(2),
	)

	res, err := a.AnalyzeModule(context.Background(), m)
	require.Error(t, err)
	require.NotNil(t, res, "pass failures still return the result")

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "trio", res.Module)
	assert.Equal(t, wasm.AnalysisVersion, res.AnalysisVersion)
	require.Len(t, res.Functions, 3)
	for i, name := range []string{"inc", "broken", "widen"} {
		assert.Equal(t, name, res.Functions[i].Name, "results keep module order")
		assert.Equal(t, i, res.Functions[i].Index)
	}

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].Name)
	assert.True(t, IsStackViolation(err))
	assert.Equal(t, ErrCodeStackViolation, CodeOf(err))

	fr, ok := res.Function("widen")
	require.True(t, ok)
	assert.True(t, fr.OK())
	_, ok = res.Function("missing")
	assert.False(t, ok)

	assert.Contains(t, hookKeys(res.Hooks), "i64.extend_i32_s:[i32]->[i64]")
	assert.Contains(t, hookKeys(res.Hooks), "f32.const:[]->[f32]", "hooks from failed functions are kept up to the failure")
	assert.Equal(t, 2, res.MaxDepth())
	assert.Len(t, res.ContentHash, 64)
}

func TestAnalyzeModuleAllPass(t *testing.T) {
	m := testutil.MustModule(t, `module:
  functions:
    - name: a
      body: [nop]
    - name: b
      results: [f64]
      body: [f64.const 0.5]
`)
	res, err := newTestAnalyzer().AnalyzeModule(context.Background(), m)
	require.NoError(t, err)
	assert.Empty(t, res.Failed())
	assert.NoError(t, res.Err())
	assert.Equal(t, "run-test", res.RunID)
}

func TestAnalyzeModuleDeterministic(t *testing.T) {
	m := testutil.MustModule(t, threeFunctions)

	serial, _ := newTestAnalyzer(WithWorkers(1)).AnalyzeModule(context.Background(), m)
	parallel, _ := newTestAnalyzer(WithWorkers(8)).AnalyzeModule(context.Background(), m)
	require.NotNil(t, serial)
	require.NotNil(t, parallel)

	assert.Equal(t, serial.ContentHash, parallel.ContentHash)
	assert.Equal(t, serial.Hooks, parallel.Hooks)
	for i := range serial.Functions {
		assert.Equal(t, serial.Functions[i].ContentHash, parallel.Functions[i].ContentHash)
	}

	strict, _ := newTestAnalyzer(WithStrict(true)).AnalyzeModule(context.Background(), m)
	require.NotNil(t, strict)
	assert.True(t, strict.Strict)
	assert.NotEqual(t, serial.ContentHash, strict.ContentHash, "mode is part of the hash")
}

func TestAnalyzeModuleCancelled(t *testing.T) {
	m := testutil.MustModule(t, threeFunctions)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestAnalyzer().AnalyzeModule(ctx, m)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAnalyzeModuleLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := testutil.MustModule(t, threeFunctions)

	_, _ = New(WithLogger(logger), WithRunIDGenerator(NewFixedGenerator("run-log"))).AnalyzeModule(context.Background(), m)

	out := buf.String()
	assert.Contains(t, out, `"msg":"function failed"`)
	assert.Contains(t, out, `"function":"broken"`)
	assert.Contains(t, out, `"code":"STACK_VIOLATION"`)
	assert.Contains(t, out, `"run_id":"run-log"`)
	assert.Contains(t, out, `"msg":"analysis finished with failures"`)
}

func TestOptionsDefaults(t *testing.T) {
	a := New()
	assert.False(t, a.Strict())
	assert.GreaterOrEqual(t, a.workers, 1)
	assert.IsType(t, UUIDv7Generator{}, a.runIDs)

	a = New(WithWorkers(0), WithLogger(nil), WithStrict(true))
	assert.Equal(t, 1, a.workers)
	assert.NotNil(t, a.logger)
	assert.True(t, a.Strict())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	first := gen.Generate()
	second := gen.Generate()
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
}
