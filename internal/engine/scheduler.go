package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/roach88/clientbook/internal/backup"
	"github.com/roach88/clientbook/internal/store"
)

// WriteDailyBackup writes a lightweight backup into the backup directory
// and records the time as the last backup. The file is named per day, so a
// second call on the same day replaces the first.
func (e *Engine) WriteDailyBackup(ctx context.Context) (string, backup.Stats, error) {
	now := e.opts.Now()
	if err := os.MkdirAll(e.opts.BackupDir, 0o755); err != nil {
		return "", backup.Stats{}, fmt.Errorf("daily backup: %w", err)
	}
	path := filepath.Join(e.opts.BackupDir, backup.FileName(now, true))

	stats, err := e.WriteBackup(ctx, path, backup.ExportOptions{})
	if err != nil {
		return "", stats, fmt.Errorf("daily backup: %w", err)
	}

	if !e.st.HasCollection(store.Settings) {
		e.log.Warn().Int("schema_version", e.st.SchemaVersion()).Msg("settings unavailable; backup time not recorded")
		return path, stats, nil
	}
	if err := e.st.SetSetting(ctx, store.SettingLastBackupAt, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return path, stats, fmt.Errorf("daily backup: %w", err)
	}
	return path, stats, nil
}

// RunJob runs one scheduled job immediately. The daily backup is skipped
// when one was already taken today.
func (e *Engine) RunJob(ctx context.Context, job Job) error {
	switch job {
	case JobReconcile:
		if _, err := e.reconciler.Run(ctx); err != nil {
			return newJobError(job, "run failed", err)
		}
		return nil

	case JobDailyBackup:
		needed, err := e.NeedsDailyBackup(ctx, e.opts.Now())
		if err != nil {
			return newJobError(job, "check failed", err)
		}
		if !needed {
			e.log.Debug().Str("job", string(job)).Msg("backup already taken today")
			return nil
		}
		path, stats, err := e.WriteDailyBackup(ctx)
		if err != nil {
			return newJobError(job, "write failed", err)
		}
		e.log.Info().Str("job", string(job)).Str("path", path).Int("customers", stats.Customers).
			Msg("daily backup written")
		return nil
	}
	return newJobError(job, "unknown job", nil)
}

// Run schedules the reconcile and daily backup jobs and blocks until ctx is
// done. Jobs already running when ctx ends are waited for.
func (e *Engine) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.Local),
		cron.WithLogger(cronLogger{e.log}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{e.log})),
	)

	jobs := []struct {
		job  Job
		spec string
	}{
		{JobReconcile, e.opts.ReconcileSpec},
		{JobDailyBackup, e.opts.DailyBackupSpec},
	}
	for _, j := range jobs {
		job := j.job
		if _, err := c.AddFunc(j.spec, func() {
			if err := e.RunJob(ctx, job); err != nil {
				e.log.Error().Err(err).Str("job", string(job)).Msg("scheduled job failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job, j.spec, err)
		}
	}

	c.Start()
	e.log.Info().Str("reconcile", e.opts.ReconcileSpec).Str("daily_backup", e.opts.DailyBackupSpec).
		Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	e.log.Info().Msg("scheduler stopped")
	return nil
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
