package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/wasmstack/internal/store"
)

// ShowOptions holds flags for the show and runs commands.
type ShowOptions struct {
	*RootOptions
	Database string
	Steps    bool
}

// RunSummary is one stored run in command output.
type RunSummary struct {
	ID              string `json:"id"`
	Module          string `json:"module"`
	ContentHash     string `json:"content_hash"`
	Strict          bool   `json:"strict"`
	AnalysisVersion string `json:"analysis_version"`
	ToolVersion     string `json:"tool_version"`
	Functions       int    `json:"functions"`
	Failed          int    `json:"failed"`
	MaxDepth        int    `json:"max_depth"`
}

// ShowResult is the show command's output.
type ShowResult struct {
	Run       RunSummary        `json:"run"`
	Functions []FunctionSummary `json:"functions"`
	Hooks     []string          `json:"hooks"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded analysis run",
		Long: `Show a run recorded by analyze --db: its functions, their outcome, and
the hook signatures it found.

Examples:
  wasmstack show 019a... --db ./runs.db
  wasmstack show 019a... --db ./runs.db --steps --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path (default store.path from config)")
	cmd.Flags().BoolVar(&opts.Steps, "steps", false, "include per-instruction steps")

	return cmd
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List recorded analysis runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path (default store.path from config)")

	return cmd
}

// openExistingStore opens the database named by the flag or the config.
// Unlike analyze, reading never creates a database.
func openExistingStore(opts *ShowOptions, formatter *OutputFormatter) (*store.Store, error) {
	path := opts.Database
	if path == "" {
		path = opts.settings().Store.Path
	}
	if path == "" {
		return nil, commandError(formatter, ErrCodeOpenDatabase, "no database given (use --db or store.path)", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, commandError(formatter, ErrCodeOpenDatabase, "database not found", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, commandError(formatter, ErrCodeOpenDatabase, "failed to open database", err)
	}
	return st, nil
}

func runShow(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	st, err := openExistingStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return commandError(formatter, ErrCodeRunNotFound, fmt.Sprintf("run %s not found", runID), nil)
	}
	if err != nil {
		return commandError(formatter, ErrCodeOpenDatabase, "failed to read run", err)
	}

	fns, err := st.ReadFunctions(ctx, runID)
	if err != nil {
		return commandError(formatter, ErrCodeOpenDatabase, "failed to read functions", err)
	}
	hooks, err := st.ReadHooks(ctx, runID)
	if err != nil {
		return commandError(formatter, ErrCodeOpenDatabase, "failed to read hooks", err)
	}

	out := ShowResult{
		Run:       runSummary(run),
		Functions: make([]FunctionSummary, 0, len(fns)),
		Hooks:     hookKeys(hooks),
	}
	for _, fn := range fns {
		fs := FunctionSummary{
			Index:     fn.Index,
			Name:      fn.Name,
			Signature: fn.Signature,
			MaxDepth:  fn.MaxDepth,
		}
		if !fn.OK() {
			fs.Error = &FunctionError{Code: fn.ErrorCode, PC: fn.ErrorPC, Message: fn.ErrorMessage}
		}
		if opts.Steps {
			steps, err := st.ReadSteps(ctx, runID, fn.Index)
			if err != nil {
				return commandError(formatter, ErrCodeOpenDatabase, "failed to read steps", err)
			}
			fs.Steps = stepOutputs(steps)
		}
		out.Functions = append(out.Functions, fs)
	}

	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: out, RunID: run.ID})
	}

	writeAnalyzeText(formatter.Writer, AnalyzeResult{
		RunID:       run.ID,
		Module:      run.Module,
		ContentHash: run.ContentHash,
		Strict:      run.Strict,
		MaxDepth:    run.MaxDepth,
		Functions:   out.Functions,
		Hooks:       out.Hooks,
		Failed:      run.FailedCount,
	})
	fmt.Fprintf(formatter.Writer, "Recorded by %s (analysis %s)\n", run.ToolVersion, run.AnalysisVersion)
	return nil
}

func runRuns(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExistingStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd))
	if err != nil {
		return commandError(formatter, ErrCodeOpenDatabase, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = runSummary(r)
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	writeRunsText(formatter.Writer, summaries)
	return nil
}

func runSummary(r store.RunRecord) RunSummary {
	return RunSummary{
		ID:              r.ID,
		Module:          r.Module,
		ContentHash:     r.ContentHash,
		Strict:          r.Strict,
		AnalysisVersion: r.AnalysisVersion,
		ToolVersion:     r.ToolVersion,
		Functions:       r.FunctionCount,
		Failed:          r.FailedCount,
		MaxDepth:        r.MaxDepth,
	}
}

func writeRunsText(w io.Writer, runs []RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	for _, r := range runs {
		mark := "✓"
		if r.Failed > 0 {
			mark = "✗"
		}
		mode := ""
		if r.Strict {
			mode = " strict"
		}
		fmt.Fprintf(w, "%s %s  %s%s  %d/%d passed  %s\n",
			mark, r.ID, r.Module, mode, r.Functions-r.Failed, r.Functions, shortHash(r.ContentHash))
	}
}

// shortHash keeps the first 12 hex digits.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
