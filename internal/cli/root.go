package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/config"
	"github.com/roach88/clientbook/internal/engine"
	"github.com/roach88/clientbook/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string
	Database string
	Fallback string

	// engineOptions, when set, adjusts engine options before Open (tests).
	engineOptions func(*engine.Options)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the clientbook CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clientbook",
		Short: "clientbook - customer records, appointments and notes",
		Long: `Manage a local clientbook store: customers, their appointments, images
and drawn notes, with backups and note reconciliation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the store (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Fallback, "fallback", "", "path to the fallback notes file (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCustomerCommand(opts))
	cmd.AddCommand(NewAppointmentCommand(opts))
	cmd.AddCommand(NewImageCommand(opts))
	cmd.AddCommand(NewNoteCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewNotesCommand(opts))
	cmd.AddCommand(NewWipeCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported through the output formatter.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) && isUsageError(err) {
		err = WrapExitError(ExitCommandError, "invalid command", err)
	}
	// Flags are not parsed when the command itself was not found.
	format := formatFromArgs(args)
	if format == "" {
		format = opts.Format
	}
	out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	if out.Format != "json" {
		out.Format = "text"
	}
	_ = out.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

func formatFromArgs(args []string) string {
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, "--format="); ok {
			return v
		}
		if a == "--format" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// usagePrefixes start the messages of cobra's own usage errors that are
// not routed through the flag error func.
var usagePrefixes = []string{
	"unknown command",
	"required flag(s)",
	"if any flags in the group",
}

func isUsageError(err error) bool {
	msg := err.Error()
	for _, p := range usagePrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// session is an open engine plus everything a command needs around it.
type session struct {
	cfg config.Config
	eng *engine.Engine
	log zerolog.Logger
	out *OutputFormatter
}

// loadConfig resolves configuration with flag overrides applied.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Fallback != "" {
		cfg.Fallback.Path = opts.Fallback
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// withSession opens the engine, runs fn and closes the engine.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	return withSessionOptions(cmd, opts, nil, fn)
}

func withSessionOptions(cmd *cobra.Command, opts *RootOptions, adjust func(*engine.Options),
	fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}

	engOpts := engine.OptionsFromConfig(cfg, log)
	if adjust != nil {
		adjust(&engOpts)
	}
	if opts.engineOptions != nil {
		opts.engineOptions(&engOpts)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log.Debug().Str("path", engOpts.DBPath).Msg("opening store")
	eng, err := engine.Open(ctx, engOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := eng.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing store")
		}
	}()

	return fn(ctx, &session{
		cfg: cfg,
		eng: eng,
		log: log,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	})
}

// exactArgs is cobra.ExactArgs reporting a command error.
func exactArgs(n int) cobra.PositionalArgs {
	return usageArgs(cobra.ExactArgs(n))
}

func minArgs(n int) cobra.PositionalArgs {
	return usageArgs(cobra.MinimumNArgs(n))
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// parseID parses a record id argument.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s id %q", kind, s))
	}
	return id, nil
}
