package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/backup"
	"github.com/roach88/clientbook/internal/store"
)

func TestNeedsDailyBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC)

	needed, err := f.eng.NeedsDailyBackup(ctx, now)
	require.NoError(t, err)
	assert.True(t, needed, "never backed up")

	require.NoError(t, f.eng.Store().SetSetting(ctx, store.SettingLastBackupAt, "2025-03-04T08:00:00Z"))
	needed, err = f.eng.NeedsDailyBackup(ctx, now)
	require.NoError(t, err)
	assert.False(t, needed, "backed up earlier today")

	needed, err = f.eng.NeedsDailyBackup(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, needed, "last backup was yesterday")

	require.NoError(t, f.eng.Store().SetSetting(ctx, store.SettingLastBackupAt, "garbage"))
	needed, err = f.eng.NeedsDailyBackup(ctx, now)
	require.NoError(t, err)
	assert.True(t, needed, "unreadable value counts as never")
}

func TestNeedsDailyBackup_EarlySchema(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SchemaVersion = 1 })

	needed, err := f.eng.NeedsDailyBackup(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestWriteDailyBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.customer(t, "Ana", "Lee")

	path, stats, err := f.eng.WriteDailyBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "backups", "clientbook-daily-backup-2025-01-01.json"), path)
	assert.Equal(t, 1, stats.Customers)

	p, warnings, err := backup.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, p.Meta.Lightweight)
	assert.Len(t, p.Customers, 1)

	last, ok, err := f.eng.Store().Setting(ctx, store.SettingLastBackupAt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, last, "2025-01-01T12:00")
}

func TestRunJob_DailyBackupOncePerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.eng.RunJob(ctx, JobDailyBackup))
	path := filepath.Join(f.dir, "backups", "clientbook-daily-backup-2025-01-01.json")
	info, err := os.Stat(path)
	require.NoError(t, err)

	f.customer(t, "Late", "Entry")
	require.NoError(t, f.eng.RunJob(ctx, JobDailyBackup))

	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), again.Size(), "second run the same day writes nothing")
}

func TestRunJob_Reconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.eng.RunJob(ctx, JobReconcile))
	runs, err := f.eng.ReconcileRuns(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunJob_Failures(t *testing.T) {
	f := newFixture(t)

	err := f.eng.RunJob(context.Background(), Job("compact"))
	require.Error(t, err)
	assert.True(t, IsJobError(err, Job("compact")))

	f2 := newFixture(t, func(o *Options) { o.BackupDir = "/dev/null/backups" })
	err = f2.eng.RunJob(context.Background(), JobDailyBackup)
	require.Error(t, err)
	assert.True(t, IsJobError(err, JobDailyBackup))
	assert.False(t, IsJobError(err, JobReconcile))
	assert.Contains(t, err.Error(), "daily-backup: write failed")
}

func TestRun_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BadSpec(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ReconcileSpec = "whenever" })

	err := f.eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule reconcile")
}

func TestJobError_Message(t *testing.T) {
	assert.Equal(t, "reconcile: unknown job", newJobError(JobReconcile, "unknown job", nil).Error())
}
