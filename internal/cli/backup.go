package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/clientbook/internal/backup"
	"github.com/roach88/clientbook/internal/engine"
)

// BackupOptions holds flags for the backup commands.
type BackupOptions struct {
	*RootOptions
	Lightweight bool
	Out         string

	Mode           string
	Customers      []int64
	NoAppointments bool
	NoImages       bool
	NoNotes        bool
}

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export and import backup files",
	}
	cmd.AddCommand(newBackupExportCommand(rootOpts))
	cmd.AddCommand(newBackupImportCommand(rootOpts))
	return cmd
}

// ExportResult is printed by backup export.
type ExportResult struct {
	Path  string       `json:"path"`
	Stats backup.Stats `json:"stats"`
}

func newBackupExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup file",
		Long: `Write every customer, appointment, note and image to one JSON file.
Images are read in small batches. --lightweight leaves images out.

Example:
  clientbook backup export
  clientbook backup export --lightweight --out today.json`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				path := opts.Out
				if path == "" {
					if err := os.MkdirAll(s.cfg.Backup.Dir, 0o755); err != nil {
						return WrapExitError(ExitCommandError, "failed to create backup dir", err)
					}
					path = filepath.Join(s.cfg.Backup.Dir, backup.FileName(s.eng.Store().Now(), opts.Lightweight))
				}

				exportOpts := backup.ExportOptions{
					IncludeImages: !opts.Lightweight,
					Chunked:       !opts.Lightweight,
					Progress: func(p backup.Progress) {
						s.out.VerboseLog("%3d%% %s", p.Percent, p.Stage)
					},
				}
				stats, err := s.eng.WriteBackup(ctx, path, exportOpts)
				if err != nil {
					return err
				}
				return s.out.Success(ExportResult{Path: path, Stats: stats})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Lightweight, "lightweight", false, "leave images out")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default: a dated file in backup.dir)")
	return cmd
}

func newBackupImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a backup file",
		Long: `Import a backup file. merge mode overwrites records with the same id and
keeps everything else; replace mode wipes the store first. --customers
imports only the listed customers and, unless excluded, their records.

Example:
  clientbook backup import backup.json --mode replace
  clientbook backup import backup.json --customers 3,7 --no-images`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := backup.ParseMode(opts.Mode)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --mode", err)
			}
			if _, err := os.Stat(args[0]); err != nil {
				return WrapExitError(ExitCommandError, "failed to read backup", err)
			}

			importOpts := engine.ImportFileOptions{
				Mode:      mode,
				Customers: opts.Customers,
				Related: &backup.FilterOptions{
					Appointments: !opts.NoAppointments,
					Images:       !opts.NoImages,
					Notes:        !opts.NoNotes,
				},
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				importOpts.Progress = func(p backup.Progress) {
					s.out.VerboseLog("%3d%% %s", p.Percent, p.Stage)
				}
				res, err := s.eng.ImportFile(ctx, args[0], importOpts)
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					s.out.VerboseLog("warning: %s", w)
				}
				return s.out.Success(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Mode, "mode", string(backup.ModeMerge), fmt.Sprintf("import mode (%s|%s)", backup.ModeMerge, backup.ModeReplace))
	cmd.Flags().Int64SliceVar(&opts.Customers, "customers", nil, "only import these customer ids")
	cmd.Flags().BoolVar(&opts.NoAppointments, "no-appointments", false, "with --customers, skip their appointments")
	cmd.Flags().BoolVar(&opts.NoImages, "no-images", false, "with --customers, skip their images")
	cmd.Flags().BoolVar(&opts.NoNotes, "no-notes", false, "with --customers, skip their notes")
	return cmd
}
