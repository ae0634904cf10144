package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/notes"
	"github.com/roach88/clientbook/internal/store"
)

// NotesOptions holds flags for the notes maintenance commands.
type NotesOptions struct {
	*RootOptions
	Strict bool
	Apply  bool
	Keep   string
	Limit  int
}

// NewNotesCommand creates the notes maintenance command group.
func NewNotesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Check, repair and reconcile notes across both locations",
		Long: `Notes are kept in the store and mirrored into a fallback file. These
commands compare the two locations and repair damaged copies.`,
	}
	cmd.AddCommand(newNotesScanCommand(rootOpts))
	cmd.AddCommand(newNotesRecoverCommand(rootOpts))
	cmd.AddCommand(newNotesRestoreCommand(rootOpts))
	cmd.AddCommand(newNotesMigrateLegacyCommand(rootOpts))
	cmd.AddCommand(newNotesResolveCommand(rootOpts))
	cmd.AddCommand(newNotesReconcileCommand(rootOpts))
	cmd.AddCommand(newNotesRunsCommand(rootOpts))
	return cmd
}

// ScanSummary counts a scan report's entries.
type ScanSummary struct {
	Healthy           int  `json:"healthy"`
	Conflicting       int  `json:"conflicting"`
	Corrupted         int  `json:"corrupted"`
	Recoverable       int  `json:"recoverable"`
	PrimaryOnly       int  `json:"primaryOnly"`
	FallbackOnly      int  `json:"fallbackOnly"`
	Duplicates        int  `json:"duplicates"`
	FallbackAvailable bool `json:"fallbackAvailable"`
}

// ScanResult is printed by notes scan.
type ScanResult struct {
	Summary ScanSummary   `json:"summary"`
	Report  *notes.Report `json:"report,omitempty"`
}

func summarize(r notes.Report) ScanSummary {
	return ScanSummary{
		Healthy:           len(r.Healthy),
		Conflicting:       len(r.Conflicting),
		Corrupted:         len(r.Corrupted),
		Recoverable:       len(r.Recoverable()),
		PrimaryOnly:       len(r.PrimaryOnly),
		FallbackOnly:      len(r.FallbackOnly),
		Duplicates:        len(r.Duplicates),
		FallbackAvailable: r.FallbackAvailable,
	}
}

func newNotesScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotesOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Classify every note as healthy, conflicting or corrupted",
		Long: `Classify every note found in either location. With --strict the command
exits 1 when any note is corrupted or conflicting. --verbose includes the
full report.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				report, err := s.eng.ScanNotes(ctx)
				if err != nil {
					return err
				}
				res := ScanResult{Summary: summarize(report)}
				if opts.Verbose {
					res.Report = &report
				}
				if err := s.out.Success(res); err != nil {
					return err
				}
				if opts.Strict && (res.Summary.Corrupted > 0 || res.Summary.Conflicting > 0) {
					return NewExitError(ExitFailure, fmt.Sprintf("%d corrupted and %d conflicting notes",
						res.Summary.Corrupted, res.Summary.Conflicting))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when problems are found")
	return cmd
}

// RecoverResult is printed by notes recover.
type RecoverResult struct {
	DryRun  bool                `json:"dryRun"`
	Summary ScanSummary         `json:"summary"`
	Result  notes.RecoverResult `json:"result"`
}

func newNotesRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotesOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Repair corrupted notes from their healthy copy",
		Long: `Plan the repair of every corrupted note that has a recovery source.
Nothing is written unless --apply is given.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				report, res, err := s.eng.RecoverNotes(ctx, !opts.Apply)
				if err != nil {
					return err
				}
				if err := s.out.Success(RecoverResult{DryRun: !opts.Apply, Summary: summarize(report), Result: res}); err != nil {
					return err
				}
				if res.Failed > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d notes could not be recovered", res.Failed))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "write the repairs")
	return cmd
}

func newNotesRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore missing or corrupted notes from a backup file",
		Long: `Restore notes from a backup file. Only notes that are missing or corrupted
in the store are written; healthy notes are never overwritten.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.eng.RestoreNotesFromFile(ctx, args[0])
				if err != nil {
					if store.IsValidation(err) {
						return err
					}
					return WrapExitError(ExitCommandError, "failed to restore notes", err)
				}
				return s.out.Success(res)
			})
		},
	}
}

func newNotesMigrateLegacyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-legacy",
		Short: "Convert legacy rich-text customer notes into notes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.eng.MigrateLegacyNotes(ctx)
				if err != nil {
					return err
				}
				if err := s.out.Success(res); err != nil {
					return err
				}
				if len(res.Failed) > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d customers could not be migrated", len(res.Failed)))
				}
				return nil
			})
		},
	}
}

func newNotesResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotesOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "resolve <note-id>",
		Short: "Settle a conflicting note by keeping one copy",
		Long: `Settle a note whose two copies differ. Keeping the fallback copy is an
ordinary edit, so "note undo" brings the replaced content back.

Example:
  clientbook notes resolve 12 --keep fallback`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("note", args[0])
			if err != nil {
				return err
			}
			keep := notes.Location(opts.Keep)
			if keep != notes.Primary && keep != notes.Fallback {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid --keep %q: must be %s or %s", opts.Keep, notes.Primary, notes.Fallback))
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				n, err := s.eng.ResolveConflict(ctx, id, keep)
				if err != nil {
					return err
				}
				return s.out.Success(n)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Keep, "keep", "", "copy to keep (primary|fallback)")
	_ = cmd.MarkFlagRequired("keep")
	return cmd
}

func newNotesReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconcile pass now",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				run, err := s.eng.Reconcile(ctx)
				if err != nil {
					return err
				}
				return s.out.Success(run)
			})
		},
	}
}

func newNotesRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotesOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent reconcile runs",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit <= 0 {
				return NewExitError(ExitCommandError, "--limit must be positive")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				runs, err := s.eng.ReconcileRuns(ctx, opts.Limit)
				if err != nil {
					return err
				}
				return s.out.Success(runs)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of runs")
	return cmd
}
