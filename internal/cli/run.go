package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled reconcile and daily backup jobs",
		Long: `Run the scheduler in the foreground until interrupted. Schedules come
from the schedule section of the config.

Example:
  clientbook run --config clientbook.yaml`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, runScheduler(cmd))
		},
	}
}

func runScheduler(cmd *cobra.Command) func(ctx context.Context, s *session) error {
	return func(parentCtx context.Context, s *session) error {
		if !s.cfg.Schedule.Enabled {
			return NewExitError(ExitCommandError, "scheduling is disabled (schedule.enabled: false)")
		}

		ctx, cancel := context.WithCancel(parentCtx)
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan) // Prevent signal handler leak

		go func() {
			select {
			case sig := <-sigChan:
				s.log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
				cancel()
			case <-ctx.Done():
				// Parent context cancelled (e.g., from test)
			}
		}()

		fmt.Fprintln(cmd.ErrOrStderr(), "Scheduler started. Press Ctrl-C to stop.")
		if err := s.eng.Run(ctx); err != nil {
			return WrapExitError(ExitCommandError, "scheduler error", err)
		}
		return s.out.Success("scheduler stopped")
	}
}
