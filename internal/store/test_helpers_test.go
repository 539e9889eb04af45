package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/wasmstack/internal/analysis"
	"github.com/roach88/wasmstack/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const testModule = `module:
  name: trio
  functions:
    - name: inc
      params: [i32]
      results: [i32]
      body: [local.get 0, i32.const 1, i32.add]
    - name: broken
      results: [i32]
      body: [f32.const 1, i32.eqz]
    - name: pick
      params: [i32]
      results: [f64]
      body:
        - f64.const 1
        - f64.const 2
        - local.get 0
        - select
`

// analyzeTestModule runs the analysis over testModule with a fixed run ID.
// The broken function fails, so the analysis error is ignored.
func analyzeTestModule(t *testing.T, runID string) *analysis.ModuleResult {
	t.Helper()
	m := testutil.MustModule(t, testModule)
	a := analysis.New(
		analysis.WithLogger(testutil.DiscardLogger()),
		analysis.WithRunIDGenerator(analysis.NewFixedGenerator(runID)),
		analysis.WithWorkers(1),
	)
	res, _ := a.AnalyzeModule(context.Background(), m)
	if res == nil {
		t.Fatal("AnalyzeModule() returned nil result")
	}
	return res
}
