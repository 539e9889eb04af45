package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/wasmstack/internal/wasm"
)

// TraceSnapshot captures the analysis of a scenario for golden comparison.
type TraceSnapshot struct {
	ScenarioName string
	Strict       bool
	Result       *Result
}

// toCanonicalMap converts the snapshot for canonical JSON serialization.
// Steps are rendered one line each so golden diffs stay readable.
// The content hash is left out; it is covered by analysis tests.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	functions := make([]any, len(s.Result.Functions))
	for i, fn := range s.Result.Functions {
		steps := make([]any, len(fn.Steps))
		for j, st := range fn.Steps {
			steps[j] = st.String()
		}
		fm := map[string]any{
			"name":      fn.Name,
			"signature": fn.Signature,
			"max_depth": fn.MaxDepth,
			"steps":     steps,
		}
		if fn.ErrorCode != "" {
			fm["error_code"] = fn.ErrorCode
		}
		functions[i] = fm
	}

	hooks := make([]any, len(s.Result.Hooks))
	for i, h := range s.Result.Hooks {
		hooks[i] = h
	}

	return map[string]any{
		"scenario":  s.ScenarioName,
		"module":    s.Result.Module,
		"strict":    s.Strict,
		"functions": functions,
		"hooks":     hooks,
	}
}

// MarshalSnapshot renders the golden file content for a scenario result.
func MarshalSnapshot(name string, strict bool, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Strict:       strict,
		Result:       result,
	}
	return wasm.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, scenario.Strict, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, name string, strict bool, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(name, strict, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)

	return nil
}
