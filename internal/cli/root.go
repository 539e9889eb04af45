package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // path to wasmstack.toml
	LogLevel string

	// Settings and Logger are set before any subcommand runs.
	Settings *Config
	Logger   *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the wasmstack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wasmstack",
		Short: "wasmstack - WebAssembly operand type stack analysis",
		Long: `Track the static types on the WebAssembly operand stack, instruction by
instruction, and report the concrete type signature every instruction
consumes and produces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := LoadConfig(opts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Settings = cfg

			level := cfg.Log.Level
			if cmd.Flags().Changed("log-level") {
				level = opts.LogLevel
			}
			logger, err := newLogger(cmd.ErrOrStderr(), level, opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid log level", err)
			}
			opts.Logger = logger

			if cfg.Path != "" {
				logger.Debug("config loaded", "path", cfg.Path)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to config file (default ./"+ConfigFileName+" if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHooksCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// settings returns the loaded config, or defaults when the command runs
// without the root (as in tests).
func (o *RootOptions) settings() *Config {
	if o.Settings == nil {
		return DefaultConfig()
	}
	return o.Settings
}

// logger returns the configured logger, or slog.Default.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
