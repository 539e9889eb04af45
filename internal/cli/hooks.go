package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wasmstack/internal/compiler"
)

// HooksResult lists the instrumentation hooks a module needs.
type HooksResult struct {
	Module string   `json:"module"`
	Hooks  []string `json:"hooks"`
	Failed []string `json:"failed,omitempty"` // functions whose hooks are incomplete
}

// NewHooksCommand creates the hooks command.
func NewHooksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hooks <module>",
		Short: "List the distinct hook signatures a module needs",
		Long: `Analyze a module and print one line per distinct hook signature, in the
form instr:[inputs]->[outputs], sorted.

A function that fails analysis contributes the hooks found before its
failure; the command then exits with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHooks(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "check block results on every end")

	return cmd
}

func runHooks(opts *AnalyzeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := compiler.LoadModuleFile(path)
	if err != nil {
		return commandError(formatter, ErrCodeLoadModule, "failed to load module", err)
	}

	res, err := analyzeModule(commandContext(cmd), opts, cmd, m)
	if res == nil {
		return commandError(formatter, ErrCodeAnalysis, "analysis aborted", err)
	}

	out := HooksResult{Module: res.Module, Hooks: hookKeys(res.Hooks)}
	for _, fr := range res.Failed() {
		out.Failed = append(out.Failed, fr.Name)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		for _, key := range out.Hooks {
			fmt.Fprintln(formatter.Writer, key)
		}
		for _, name := range out.Failed {
			fmt.Fprintf(formatter.ErrWriter, "✗ %s failed analysis\n", name)
		}
	}

	if len(out.Failed) > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d function(s) failed", len(out.Failed)), res.Err())
	}
	return nil
}
