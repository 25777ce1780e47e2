package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/maat/internal/config"
	"github.com/roach88/maat/internal/flush"
)

// RootOptions holds global flags for all commands, and the configuration
// resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Driver     string
	DSN        string
	Catalog    string

	// RunIDs overrides the flush run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs flush.RunIDGenerator

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the maat CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maat",
		Short: "maat - precomputed rankings",
		Long: `Maintain precomputed rankings of entities in a relational store.

Entity types and their typologies are declared in a catalog (YAML or CUE).
"maat flush" rebuilds rankings into a staging buffer and promotes them
atomically; "maat show" reads them back in rank order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return resolveConfig(cmd, opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default $MAAT_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|pgx)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database DSN; a file path for sqlite3")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "catalog file or CUE directory")

	// Add subcommands
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))

	return cmd
}

// resolveConfig validates the global flags, loads the configuration and
// applies flags set on the command line on top of it.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) error {
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = opts.Driver
	}
	if flags.Changed("dsn") {
		cfg.DSN = opts.DSN
	}
	if flags.Changed("catalog") {
		cfg.Catalog = opts.Catalog
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	opts.Config = cfg
	opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Run executes the CLI with args and returns the process exit code. Errors
// are reported on stderr, or on stdout as a JSON error document when
// --format=json.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, &RootOptions{}, args, stdout, stderr)
}

func run(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	// Commands return ExitErrors; anything else is a usage error raised by
	// cobra itself (unknown command, bad flag, wrong argument count).
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		err = WrapExitError(ExitCommandError, "invalid usage", err)
	}

	f := newFormatter(opts, stdout, stderr)
	if !isValidFormat(f.Format) {
		f.Format = "text"
	}
	_ = f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}
