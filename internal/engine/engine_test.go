package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/backup"
	"github.com/roach88/clientbook/internal/notes"
	"github.com/roach88/clientbook/internal/store"
	"github.com/roach88/clientbook/internal/testutil"
)

var healthySVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="60">` +
	strings.Repeat(`<path d="M0 0 L10 10"/>`, 4) + `</svg>`

type fixture struct {
	eng   *Engine
	dir   string
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)

	opts := Options{
		DBPath:              filepath.Join(dir, "clientbook.db"),
		FallbackPath:        filepath.Join(dir, "notes.json"),
		BackupDir:           filepath.Join(dir, "backups"),
		MaxNotesPerCustomer: 50,
		Now:                 clock.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}

	eng, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return &fixture{eng: eng, dir: dir, clock: clock}
}

func (f *fixture) customer(t *testing.T, first, last string) int64 {
	t.Helper()
	id, err := f.eng.CreateCustomer(context.Background(), store.Customer{FirstName: first, LastName: last})
	require.NoError(t, err)
	return id
}

func TestOpen_FreshStoreAtCurrentVersion(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, store.CurrentSchemaVersion, f.eng.SchemaVersion())
	assert.NoError(t, f.eng.Close())
	assert.NoError(t, f.eng.Close(), "second close is a no-op")
}

func TestOpen_SecondHandleBlocked(t *testing.T) {
	f := newFixture(t)

	_, err := Open(context.Background(), Options{DBPath: f.eng.Store().Path()})
	require.Error(t, err)
	assert.True(t, store.IsOpen(err))
}

func TestOptionsFromConfig_DefaultsFillGaps(t *testing.T) {
	opts := Options{DBPath: "x.db"}
	opts.applyDefaults()

	assert.Equal(t, "x.db", opts.DBPath)
	assert.Equal(t, 5000, opts.BusyTimeoutMS)
	assert.Equal(t, "backups", opts.BackupDir)
	assert.Equal(t, 5, opts.ImageBatchSize)
	assert.Equal(t, "@every 1h", opts.ReconcileSpec)
	assert.NotNil(t, opts.Now)
	assert.NotNil(t, opts.IDs)
}

func TestScenario_CustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.eng.CreateCustomer(ctx, store.Customer{FirstName: "Ana", LastName: "Lee", ContactNumber: "555-0001"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	_, err = f.eng.Store().CreateAppointment(ctx, store.Appointment{
		CustomerID: id, Start: start, End: start.Add(time.Hour),
	})
	require.NoError(t, err)

	found, err := f.eng.SearchCustomers(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)

	require.NoError(t, f.eng.DeleteCustomer(ctx, id))

	appts, err := f.eng.Store().AppointmentsByCustomer(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, appts)

	_, err = f.eng.GetCustomer(ctx, id)
	assert.True(t, store.IsNotFound(err))
}

func TestDeleteCustomer_RemovesFallbackNotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")

	n, err := f.eng.CreateNote(ctx, store.Note{CustomerID: id, SVG: healthySVG, Date: "2025-01-01"})
	require.NoError(t, err)
	_, err = f.eng.Reconcile(ctx)
	require.NoError(t, err)

	mirrored, err := f.eng.Fallback().CustomerNotes(id)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, n.ID, mirrored[0].ID)

	require.NoError(t, f.eng.DeleteCustomer(ctx, id))

	left, err := f.eng.Fallback().CustomerNotes(id)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDeleteNote_NotResurrectedByReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")

	n, err := f.eng.CreateNote(ctx, store.Note{CustomerID: id, SVG: healthySVG, Date: "2025-01-01"})
	require.NoError(t, err)
	_, err = f.eng.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, f.eng.DeleteNote(ctx, n.ID))
	_, err = f.eng.Reconcile(ctx)
	require.NoError(t, err)

	_, err = f.eng.Store().GetNote(ctx, n.ID)
	assert.True(t, store.IsNotFound(err))
	left, err := f.eng.Fallback().CustomerNotes(id)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDeleteNote_FallbackOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")

	require.NoError(t, f.eng.Fallback().Put(store.Note{ID: 40, CustomerID: id, SVG: healthySVG, Date: "2025-01-01"}))
	require.NoError(t, f.eng.DeleteNote(ctx, 40))

	left, err := f.eng.Fallback().CustomerNotes(id)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestUndoNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")

	n, err := f.eng.CreateNote(ctx, store.Note{CustomerID: id, SVG: healthySVG, Date: "2025-01-01"})
	require.NoError(t, err)

	edited := n
	edited.SVG = healthySVG + "<!-- edited -->"
	_, err = f.eng.UpdateNote(ctx, edited)
	require.NoError(t, err)

	restored, err := f.eng.UndoNote(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, healthySVG, restored.SVG)
	assert.NotNil(t, restored.RestoredAt)
}

func TestClearAll_WipesBothLocations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")
	require.NoError(t, f.eng.Fallback().Put(store.Note{ID: 9, CustomerID: id, SVG: healthySVG, Date: "2025-01-01"}))

	require.NoError(t, f.eng.ClearAll(ctx))

	customers, err := f.eng.Store().ListCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, customers)
	all, err := f.eng.Fallback().All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWriteBackupAndImportFile(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	ana := src.customer(t, "Ana", "Lee")
	bob := src.customer(t, "Bob", "Ray")
	for _, id := range []int64{ana, bob} {
		_, err := src.eng.CreateNote(ctx, store.Note{CustomerID: id, SVG: healthySVG, Date: "2025-01-01"})
		require.NoError(t, err)
	}

	path := filepath.Join(src.dir, "out.json")
	stats, err := src.eng.WriteBackup(ctx, path, backup.ExportOptions{IncludeImages: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Customers)
	assert.Equal(t, 2, stats.Notes)

	dst := newFixture(t)
	res, err := dst.eng.ImportFile(ctx, path, ImportFileOptions{Mode: backup.ModeReplace, Customers: []int64{bob}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Customers)
	assert.Equal(t, 1, res.Notes)
	assert.Empty(t, res.Warnings)

	_, err = dst.eng.GetCustomer(ctx, ana)
	assert.True(t, store.IsNotFound(err))
	got, err := dst.eng.GetCustomer(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.FirstName)
}

func TestImportFile_Unreadable(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	_, err := f.eng.ImportFile(context.Background(), path, ImportFileOptions{})
	require.Error(t, err)
	assert.True(t, store.IsValidation(err))
}

func TestRestoreNotesFromFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")
	n, err := f.eng.CreateNote(ctx, store.Note{CustomerID: id, SVG: healthySVG, Date: "2025-01-01"})
	require.NoError(t, err)

	path := filepath.Join(f.dir, "notes-backup.json")
	_, err = f.eng.WriteBackup(ctx, path, backup.ExportOptions{})
	require.NoError(t, err)

	broken := n
	broken.SVG = "<svg/>"
	_, err = f.eng.UpdateNote(ctx, broken)
	require.NoError(t, err)

	res, err := f.eng.RestoreNotesFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, notes.RestoreResult{Restored: 1}, res)

	got, err := f.eng.Store().GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, healthySVG, got.SVG)
}

func TestRecoverNotes_DryRunThenApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.customer(t, "Ana", "Lee")
	n, err := f.eng.CreateNote(ctx, store.Note{CustomerID: id, SVG: "<svg/>", Date: "2025-01-01"})
	require.NoError(t, err)
	good := n
	good.SVG = healthySVG
	require.NoError(t, f.eng.Fallback().Put(good))

	report, res, err := f.eng.RecoverNotes(ctx, true)
	require.NoError(t, err)
	require.Len(t, report.Corrupted, 1)
	assert.Len(t, res.Planned, 1)
	assert.Zero(t, res.Applied)

	_, res, err = f.eng.RecoverNotes(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	got, err := f.eng.Store().GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, healthySVG, got.SVG)
}

func TestReconcileRuns_Recorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.eng.Reconcile(ctx)
	require.NoError(t, err)
	_, err = f.eng.Reconcile(ctx)
	require.NoError(t, err)

	runs, err := f.eng.ReconcileRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestReconcileRuns_EarlySchema(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SchemaVersion = 2 })

	runs, err := f.eng.ReconcileRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
