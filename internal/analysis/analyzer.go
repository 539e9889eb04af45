package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/wasmstack/internal/wasm"
)

// Analyzer runs the instrumentation pass over modules.
//
// Thread-safety: an Analyzer holds only configuration and is safe for
// concurrent use. Every function pass gets its own TypeStack.
type Analyzer struct {
	logger  *slog.Logger
	strict  bool
	workers int
	runIDs  RunIDGenerator
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithStrict makes every block end check its results against the declared
// block type (see typestack.WithStrictBlockResults).
func WithStrict(strict bool) Option {
	return func(a *Analyzer) {
		a.strict = strict
	}
}

// WithWorkers limits how many functions are analyzed in parallel.
// Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = max(n, 1)
	}
}

// WithRunIDGenerator sets the run ID source.
//
// Default: UUIDv7Generator
// Use NewFixedGenerator in tests for deterministic run IDs.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(a *Analyzer) {
		a.runIDs = g
	}
}

// New creates an Analyzer. By default it logs to slog.Default, runs in
// compatible (non-strict) mode, and uses one worker per CPU.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:  slog.Default(),
		workers: runtime.GOMAXPROCS(0),
		runIDs:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Strict reports whether block results are checked.
func (a *Analyzer) Strict() bool {
	return a.strict
}

// AnalyzeModule analyzes every function of m in parallel.
//
// The result is always returned when the run completes, with one entry per
// function in module order. Functions that fail carry their *PassError; the
// returned error joins them. A cancelled context aborts the run and returns
// a nil result.
func (a *Analyzer) AnalyzeModule(ctx context.Context, m *wasm.Module) (*ModuleResult, error) {
	runID := a.runIDs.Generate()
	log := a.logger.With("run_id", runID, "module", m.Name)

	res := &ModuleResult{
		RunID:           runID,
		Module:          m.Name,
		Strict:          a.strict,
		AnalysisVersion: wasm.AnalysisVersion,
		Functions:       make([]*FunctionResult, len(m.Functions)),
	}

	log.Debug("analysis starting", "functions", len(m.Functions), "workers", a.workers, "strict", a.strict)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range m.Functions {
		i := i
		g.Go(func() error {
			fr, err := a.analyzeFunction(gctx, m, i, log)
			res.Functions[i] = fr
			if err != nil && CodeOf(err) == "" {
				// Not a pass failure: cancellation or an internal error.
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze module %q: %w", m.Name, err)
	}

	hooks := hookSet{}
	fnHashes := make([]any, len(res.Functions))
	for i, fr := range res.Functions {
		for _, h := range fr.Hooks {
			hooks.add(h)
		}
		fnHashes[i] = fr.ContentHash
	}
	res.Hooks = hooks.sorted()

	hash, err := wasm.ContentHash(wasm.DomainModuleAnalysis, map[string]any{
		"module":           m.Name,
		"analysis_version": wasm.AnalysisVersion,
		"strict":           a.strict,
		"functions":        fnHashes,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze module %q: %w", m.Name, err)
	}
	res.ContentHash = hash

	failed := len(res.Failed())
	if failed > 0 {
		log.Warn("analysis finished with failures",
			"functions", len(res.Functions),
			"failed", failed,
		)
	} else {
		log.Info("analysis finished",
			"functions", len(res.Functions),
			"hooks", len(res.Hooks),
			"max_depth", res.MaxDepth(),
		)
	}

	return res, res.Err()
}

// AnalyzeFunction analyzes function idx of m.
//
// On a pass failure the partial result is returned together with its
// *PassError. The module is needed for globals and call targets.
func (a *Analyzer) AnalyzeFunction(ctx context.Context, m *wasm.Module, idx int) (*FunctionResult, error) {
	return a.analyzeFunction(ctx, m, idx, a.logger.With("module", m.Name))
}

func (a *Analyzer) analyzeFunction(ctx context.Context, m *wasm.Module, idx int, log *slog.Logger) (*FunctionResult, error) {
	if idx < 0 || idx >= len(m.Functions) {
		return nil, fmt.Errorf("function index %d out of range (module has %d)", idx, len(m.Functions))
	}

	p := newPass(m, idx, a.strict)
	if err := p.run(ctx); err != nil {
		var pe *PassError
		if !errors.As(err, &pe) {
			return nil, err
		}
		p.res.Err = pe
	}
	p.res.Hooks = p.hooks.sorted()

	hash, err := functionHash(p.res, a.strict)
	if err != nil {
		return nil, fmt.Errorf("hash function %q: %w", p.fn.Name, err)
	}
	p.res.ContentHash = hash

	if p.res.Err != nil {
		log.Warn("function failed",
			"function", p.fn.Name,
			"code", p.res.Err.Code,
			"pc", p.res.Err.PC,
			"error", p.res.Err.Err,
		)
		return p.res, p.res.Err
	}

	log.Debug("function analyzed",
		"function", p.fn.Name,
		"steps", len(p.res.Steps),
		"max_depth", p.res.MaxDepth,
		"hooks", len(p.res.Hooks),
	)
	return p.res, nil
}

// functionHash computes the content hash of a function result. Two runs over
// the same function with the same mode hash equal.
func functionHash(r *FunctionResult, strict bool) (string, error) {
	steps := make([]any, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = map[string]any{
			"pc":      s.PC,
			"instr":   s.Instr,
			"inputs":  s.Inputs,
			"outputs": s.Outputs,
			"stack":   s.Stack,
			"dead":    s.Dead,
		}
	}
	hooks := make([]string, len(r.Hooks))
	for i, h := range r.Hooks {
		hooks[i] = h.Key()
	}

	v := map[string]any{
		"name":      r.Name,
		"type":      r.Type.String(),
		"strict":    strict,
		"max_depth": r.MaxDepth,
		"steps":     steps,
		"hooks":     hooks,
	}
	if r.Err != nil {
		v["error"] = string(r.Err.Code)
	}
	return wasm.ContentHash(wasm.DomainFunctionAnalysis, v)
}
