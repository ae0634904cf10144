package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewWipeCommand creates the wipe command.
func NewWipeCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every record and the fallback notes",
		Long: `Delete every customer, appointment, image and note, and empty the
fallback notes file. The schema is kept. Requires --yes.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to wipe without --yes")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.eng.ClearAll(ctx); err != nil {
					return err
				}
				return s.out.Success("store wiped")
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
