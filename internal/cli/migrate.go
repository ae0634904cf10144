package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/engine"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Version int
}

// MigrateResult is printed by the migrate command.
type MigrateResult struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schemaVersion"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Long: `Create the store if it does not exist and upgrade it to the target schema
version. Every command does this on open; migrate does nothing else.

Example:
  clientbook migrate --db ./clientbook.db
  clientbook migrate --version 3`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Version, "version", 0, "target schema version (default: current)")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	if opts.Version < 0 {
		return NewExitError(ExitCommandError, "--version must not be negative")
	}
	adjust := func(o *engine.Options) { o.SchemaVersion = opts.Version }
	return withSessionOptions(cmd, opts.RootOptions, adjust, func(ctx context.Context, s *session) error {
		return s.out.Success(MigrateResult{Path: s.eng.Store().Path(), SchemaVersion: s.eng.SchemaVersion()})
	})
}
