package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/wasmstack/internal/analysis"
	"github.com/roach88/wasmstack/internal/compiler"
	"github.com/roach88/wasmstack/internal/store"
	"github.com/roach88/wasmstack/internal/testutil"
)

// defaultRunID is used when a scenario sets no run_id.
const defaultRunID = "test-run-default"

// Harness runs scenarios against a fresh store with a fixed run ID.
type Harness struct {
	store    *store.Store
	analyzer *analysis.Analyzer
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load and compile the module
// 2. Analyze it with a fixed run ID
// 3. Write the run to the store and read the trace back
// 4. Evaluate assertions against the stored trace
//
// Pass failures inside the module are not errors: they are part of the
// trace and are checked by function_error assertions. Run returns an error
// only when the scenario cannot be executed.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	m, err := compiler.LoadModuleFile(scenario.Module)
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = defaultRunID
	}

	logger := testutil.DiscardLogger()
	h := &Harness{
		store: st,
		analyzer: analysis.New(
			analysis.WithLogger(logger),
			analysis.WithStrict(scenario.Strict),
			analysis.WithRunIDGenerator(testutil.NewConstantRunID(runID)),
			analysis.WithWorkers(1),
		),
		logger: logger,
	}

	res, err := h.analyzer.AnalyzeModule(ctx, m)
	if res == nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if _, err := h.store.WriteRun(ctx, res); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result, err := h.readResult(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

// readResult builds the result from what the store holds for runID.
func (h *Harness) readResult(ctx context.Context, runID string) (*Result, error) {
	run, err := h.store.ReadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}

	fns, err := h.store.ReadFunctions(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Module = run.Module
	result.ContentHash = run.ContentHash

	for _, fn := range fns {
		steps, err := h.store.ReadSteps(ctx, runID, fn.Index)
		if err != nil {
			return nil, err
		}
		result.Functions = append(result.Functions, FunctionTrace{
			Name:      fn.Name,
			Signature: fn.Signature,
			MaxDepth:  fn.MaxDepth,
			ErrorCode: fn.ErrorCode,
			Steps:     steps,
		})
	}

	hooks, err := h.store.ReadHooks(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, hook := range hooks {
		result.Hooks = append(result.Hooks, hook.Key())
	}

	return result, nil
}
