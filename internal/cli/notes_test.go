package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/fallback"
	"github.com/roach88/clientbook/internal/notes"
	"github.com/roach88/clientbook/internal/store"
)

// corruptPrimaryNote adds a note whose primary copy is too short to be
// healthy and puts a healthy copy in the fallback file.
func corruptPrimaryNote(t *testing.T, env *cliEnv) store.Note {
	t.Helper()
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)

	var n store.Note
	env.run(t, "note", "add", "--customer", "1", "--svg", "<svg/>", "--date", "2025-01-01").ok(t, &n)

	good := n
	good.SVG = healthySVG
	require.NoError(t, fallback.New(env.fb).Put(good))
	return n
}

func TestNotes_ScanStrict(t *testing.T) {
	env := newCLIEnv(t)
	corruptPrimaryNote(t, env)

	var res ScanResult
	env.run(t, "notes", "scan").ok(t, &res)
	assert.Equal(t, 1, res.Summary.Corrupted)
	assert.Equal(t, 1, res.Summary.Recoverable)
	assert.True(t, res.Summary.FallbackAvailable)
	assert.Nil(t, res.Report)

	strict := env.run(t, "notes", "scan", "--strict")
	assert.Equal(t, ExitFailure, strict.code)

	verbose := env.run(t, "-v", "notes", "scan")
	verbose.ok(t, &res)
	require.NotNil(t, res.Report)
	assert.Len(t, res.Report.Corrupted, 1)
}

func TestNotes_RecoverDryRunThenApply(t *testing.T) {
	env := newCLIEnv(t)
	n := corruptPrimaryNote(t, env)

	var dry RecoverResult
	env.run(t, "notes", "recover").ok(t, &dry)
	assert.True(t, dry.DryRun)
	assert.Len(t, dry.Result.Planned, 1)
	assert.Zero(t, dry.Result.Applied)

	var applied RecoverResult
	env.run(t, "notes", "recover", "--apply").ok(t, &applied)
	assert.False(t, applied.DryRun)
	assert.Equal(t, 1, applied.Result.Applied)

	var detail NoteDetail
	env.run(t, "note", "show", "1").ok(t, &detail)
	assert.Equal(t, n.ID, detail.Note.ID)
	assert.Equal(t, healthySVG, detail.Note.SVG)

	env.run(t, "notes", "scan", "--strict").ok(t, nil)
}

func TestNotes_RestoreFromBackup(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)
	env.run(t, "note", "add", "--customer", "1", "--svg", healthySVG, "--date", "2025-01-01").ok(t, nil)
	out := filepath.Join(env.dir, "b.json")
	env.run(t, "backup", "export", "--out", out).ok(t, nil)

	env.run(t, "note", "edit", "1", "--svg", "<svg/>").ok(t, nil)

	var res notes.RestoreResult
	env.run(t, "notes", "restore", out).ok(t, &res)
	assert.Equal(t, notes.RestoreResult{Restored: 1}, res)

	e := env.run(t, "notes", "restore", filepath.Join(env.dir, "absent.json")).failed(t, ExitCommandError)
	assert.Contains(t, e.Message, "failed to restore notes")
}

func TestNotes_ReconcileAndRuns(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)
	env.run(t, "note", "add", "--customer", "1", "--svg", healthySVG, "--date", "2025-01-01").ok(t, nil)

	var run store.ReconcileRun
	env.run(t, "notes", "reconcile").ok(t, &run)
	assert.Equal(t, 1, run.Scanned)
	assert.Equal(t, 1, run.Mirrored)
	assert.Equal(t, notes.ReconcilerVersion, run.Version)

	env.run(t, "notes", "reconcile").ok(t, &run)
	assert.Zero(t, run.Mirrored)

	var runs []store.ReconcileRun
	env.run(t, "notes", "runs", "--limit", "5").ok(t, &runs)
	assert.Len(t, runs, 2)
}

func TestNotes_Resolve(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)

	var n store.Note
	env.run(t, "note", "add", "--customer", "1", "--svg", healthySVG, "--date", "2025-01-01").ok(t, &n)
	other := n
	other.SVG = healthySVG + "<!-- other device -->"
	require.NoError(t, fallback.New(env.fb).Put(other))

	var res ScanResult
	env.run(t, "notes", "scan").ok(t, &res)
	require.Equal(t, 1, res.Summary.Conflicting)

	env.run(t, "notes", "resolve", "1", "--keep", "sideways").failed(t, ExitCommandError)

	var kept store.Note
	env.run(t, "notes", "resolve", "1", "--keep", "fallback").ok(t, &kept)
	assert.Equal(t, other.SVG, kept.SVG)

	env.run(t, "notes", "scan", "--strict").ok(t, nil)
}

func TestNotes_MigrateLegacy(t *testing.T) {
	env := newCLIEnv(t)

	st, err := store.Open(context.Background(), env.db, store.WithClock(env.clock.Now))
	require.NoError(t, err)
	legacy := "<p>Prefers mornings</p>"
	_, err = st.CreateCustomer(context.Background(), store.Customer{FirstName: "Ana", NotesHTML: &legacy})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	var res notes.LegacyResult
	env.run(t, "notes", "migrate-legacy").ok(t, &res)
	assert.Equal(t, 1, res.Migrated)
	assert.Empty(t, res.Failed)

	var list []store.Note
	env.run(t, "note", "list", "1").ok(t, &list)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].SVG, ">Prefers mornings</tspan>")

	env.run(t, "notes", "migrate-legacy").ok(t, &res)
	assert.Zero(t, res.Migrated)
}

func TestNotes_FallbackUnavailable(t *testing.T) {
	env := newCLIEnv(t)
	env.run(t, "customer", "add", "--first", "Ana").ok(t, nil)
	require.NoError(t, os.WriteFile(env.fb, []byte("not json"), 0o644))

	var res ScanResult
	env.run(t, "notes", "scan").ok(t, &res)
	assert.False(t, res.Summary.FallbackAvailable)
}
