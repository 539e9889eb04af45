package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wasmstack/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Module    string                     `json:"module,omitempty"`
	Functions int                        `json:"functions,omitempty"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <module>",
		Short: "Check a module's structure without analyzing it",
		Long: `Check a YAML or CUE module for structural problems: unbalanced blocks,
out of range indexes, misplaced else, duplicate names.

Operand types are not checked; use analyze for that.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := compiler.LoadModuleFile(path)
	if err != nil {
		// A malformed instruction or type is a validation failure, not a
		// command error.
		var cErr *compiler.CompileError
		if errors.As(err, &cErr) {
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   cErr.Field,
				Message: cErr.Message,
				Code:    compiler.ErrMalformedModule,
				Line:    compileErrorLine(cErr),
			}})
		}
		return commandError(formatter, ErrCodeLoadModule, "failed to load module", err)
	}

	formatter.VerboseLog("Validating module %s (%d function(s))", m.Name, len(m.Functions))

	if errs := compiler.Validate(m); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Module: m.Name, Functions: len(m.Functions)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Module %s valid (%d function(s))\n", m.Name, len(m.Functions))
	return nil
}

// compileErrorLine prefers the body entry, then the CUE source line.
func compileErrorLine(e *compiler.CompileError) int {
	if e.Line > 0 {
		return e.Line
	}
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidationErrors outputs validation errors and returns an exit code 1 error.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return failure
}
