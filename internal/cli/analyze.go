package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/wasmstack/internal/analysis"
	"github.com/roach88/wasmstack/internal/compiler"
	"github.com/roach88/wasmstack/internal/store"
	"github.com/roach88/wasmstack/internal/wasm"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Database string
	Workers  int
	Strict   bool
	Steps    bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs analysis.RunIDGenerator
}

// StepOutput is one analyzed instruction in command output.
type StepOutput struct {
	PC         int      `json:"pc"`
	Instr      string   `json:"instr"`
	Inputs     []string `json:"inputs"`
	Outputs    []string `json:"outputs"`
	Depth      int      `json:"depth"`
	OpenBlocks int      `json:"open_blocks"`
	Stack      []string `json:"stack"`
	Dead       bool     `json:"dead,omitempty"`
}

// FunctionError describes why a function failed.
type FunctionError struct {
	Code    string `json:"code"`
	PC      int    `json:"pc"`
	Instr   string `json:"instr,omitempty"`
	Message string `json:"message"`
}

// FunctionSummary is the outcome of one function in command output.
type FunctionSummary struct {
	Index     int            `json:"index"`
	Name      string         `json:"name"`
	Signature string         `json:"signature"`
	MaxDepth  int            `json:"max_depth"`
	Error     *FunctionError `json:"error,omitempty"`
	Steps     []StepOutput   `json:"steps,omitempty"`
}

// AnalyzeResult is the analyze command's output.
type AnalyzeResult struct {
	RunID       string            `json:"run_id"`
	Module      string            `json:"module"`
	ContentHash string            `json:"content_hash"`
	Strict      bool              `json:"strict"`
	MaxDepth    int               `json:"max_depth"`
	Functions   []FunctionSummary `json:"functions"`
	Hooks       []string          `json:"hooks"`
	Failed      int               `json:"failed"`
	Stored      bool              `json:"stored"`
	SameAs      string            `json:"same_as,omitempty"` // earlier run with the same content hash
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	return newAnalyzeCommand(&AnalyzeOptions{RootOptions: rootOpts})
}

func newAnalyzeCommand(opts *AnalyzeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <module>",
		Short: "Run the type stack analysis over a module",
		Long: `Run the type stack analysis over every function of a YAML or CUE module.

Each function is analyzed independently; one function's failure does not
stop the others. With --db the run is recorded in a SQLite database.

Exit codes:
  0 - All functions passed
  1 - One or more functions failed
  2 - Command error (unreadable module, database error, etc.)

Examples:
  wasmstack analyze ./module.yaml
  wasmstack analyze ./module.cue --strict --steps
  wasmstack analyze ./module.yaml --db ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "functions analyzed in parallel (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "check block results on every end")
	cmd.Flags().BoolVar(&opts.Steps, "steps", false, "include per-instruction steps in the output")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)
	logger := opts.logger()

	m, err := compiler.LoadModuleFile(path)
	if err != nil {
		return commandError(formatter, ErrCodeLoadModule, "failed to load module", err)
	}
	formatter.VerboseLog("Loaded module %s with %d function(s)", m.Name, len(m.Functions))

	res, err := analyzeModule(ctx, opts, cmd, m)
	if res == nil {
		return commandError(formatter, ErrCodeAnalysis, "analysis aborted", err)
	}

	out := buildAnalyzeResult(res, opts.Steps)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.settings().Store.Path
	}
	if dbPath != "" {
		sameAs, err := recordRun(ctx, dbPath, res)
		if err != nil {
			return commandError(formatter, ErrCodeOpenDatabase, "failed to record run", err)
		}
		out.Stored = true
		out.SameAs = sameAs
		logger.Info("run recorded", "run_id", res.RunID, "db", dbPath)
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: out, RunID: out.RunID}
		if out.Failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeAnalysis,
				Message: fmt.Sprintf("%d function(s) failed", out.Failed),
			}
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
	} else {
		writeAnalyzeText(formatter.Writer, out)
	}

	if out.Failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d function(s) failed", out.Failed), res.Err())
	}
	return nil
}

// analyzeModule runs the pass with flags taking precedence over the config file.
func analyzeModule(ctx context.Context, opts *AnalyzeOptions, cmd *cobra.Command, m *wasm.Module) (*analysis.ModuleResult, error) {
	cfg := opts.settings()

	strict := cfg.Analysis.Strict
	if cmd.Flags().Changed("strict") {
		strict = opts.Strict
	}
	workers := cfg.Analysis.Workers
	if cmd.Flags().Changed("workers") {
		workers = opts.Workers
	}

	aopts := []analysis.Option{
		analysis.WithLogger(opts.logger()),
		analysis.WithStrict(strict),
	}
	if workers > 0 {
		aopts = append(aopts, analysis.WithWorkers(workers))
	}
	if opts.RunIDs != nil {
		aopts = append(aopts, analysis.WithRunIDGenerator(opts.RunIDs))
	}

	return analysis.New(aopts...).AnalyzeModule(ctx, m)
}

// recordRun writes res to the database at path and returns the ID of an
// earlier run with the same content hash, if any.
func recordRun(ctx context.Context, path string, res *analysis.ModuleResult) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	var sameAs string
	prev, found, err := st.FindRunByHash(ctx, res.ContentHash)
	if err != nil {
		return "", err
	}
	if found && prev.ID != res.RunID {
		sameAs = prev.ID
	}

	if _, err := st.WriteRun(ctx, res); err != nil {
		return "", err
	}
	return sameAs, nil
}

func buildAnalyzeResult(res *analysis.ModuleResult, withSteps bool) AnalyzeResult {
	out := AnalyzeResult{
		RunID:       res.RunID,
		Module:      res.Module,
		ContentHash: res.ContentHash,
		Strict:      res.Strict,
		MaxDepth:    res.MaxDepth(),
		Functions:   make([]FunctionSummary, 0, len(res.Functions)),
		Hooks:       hookKeys(res.Hooks),
		Failed:      len(res.Failed()),
	}

	for _, fr := range res.Functions {
		fs := FunctionSummary{
			Index:     fr.Index,
			Name:      fr.Name,
			Signature: fr.Type.String(),
			MaxDepth:  fr.MaxDepth,
		}
		if fr.Err != nil {
			fs.Error = functionError(fr.Err)
		}
		if withSteps {
			fs.Steps = stepOutputs(fr.Steps)
		}
		out.Functions = append(out.Functions, fs)
	}
	return out
}

func functionError(pe *analysis.PassError) *FunctionError {
	msg := string(pe.Code)
	if pe.Err != nil {
		msg = pe.Err.Error()
	}
	return &FunctionError{
		Code:    string(pe.Code),
		PC:      pe.PC,
		Instr:   pe.Instr,
		Message: msg,
	}
}

func stepOutputs(steps []analysis.Step) []StepOutput {
	out := make([]StepOutput, len(steps))
	for i, st := range steps {
		out[i] = StepOutput{
			PC:         st.PC,
			Instr:      st.Instr,
			Inputs:     wasm.ValueTypeNames(st.Inputs),
			Outputs:    wasm.ValueTypeNames(st.Outputs),
			Depth:      st.Depth,
			OpenBlocks: st.OpenBlocks,
			Stack:      st.Stack,
			Dead:       st.Dead,
		}
	}
	return out
}

func hookKeys(hooks []analysis.HookSignature) []string {
	keys := make([]string, len(hooks))
	for i, h := range hooks {
		keys[i] = h.Key()
	}
	return keys
}

func writeAnalyzeText(w io.Writer, out AnalyzeResult) {
	fmt.Fprintf(w, "Module %s (run %s)\n", out.Module, out.RunID)
	for _, fn := range out.Functions {
		if fn.Error == nil {
			fmt.Fprintf(w, "  ✓ %s %s  max depth %d\n", fn.Name, fn.Signature, fn.MaxDepth)
		} else {
			fmt.Fprintf(w, "  ✗ %s %s  %s at pc %d", fn.Name, fn.Signature, fn.Error.Code, fn.Error.PC)
			if fn.Error.Instr != "" {
				fmt.Fprintf(w, " (%s)", fn.Error.Instr)
			}
			fmt.Fprintf(w, ": %s\n", fn.Error.Message)
		}
		for _, st := range fn.Steps {
			fmt.Fprintf(w, "      %s\n", formatStepOutput(st))
		}
	}
	fmt.Fprintf(w, "Hooks: %d distinct\n", len(out.Hooks))
	fmt.Fprintf(w, "Content hash: %s\n", out.ContentHash)
	if out.SameAs != "" {
		fmt.Fprintf(w, "Same result as run %s\n", out.SameAs)
	}

	if out.Failed > 0 {
		fmt.Fprintf(w, "✗ %d of %d function(s) failed\n", out.Failed, len(out.Functions))
		return
	}
	fmt.Fprintln(w, "✓ All functions passed")
}

// formatStepOutput matches analysis.Step.String.
func formatStepOutput(st StepOutput) string {
	inputs, _ := wasm.ParseValueTypes(st.Inputs)
	outputs, _ := wasm.ParseValueTypes(st.Outputs)
	return analysis.Step{
		PC:      st.PC,
		Instr:   st.Instr,
		Inputs:  inputs,
		Outputs: outputs,
		Stack:   st.Stack,
		Dead:    st.Dead,
	}.String()
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
