package notes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/store"
)

func TestRestoreFromBackup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.customer(t, "Ana")

	healthy := f.primaryNote(t, ana, healthySVG("current"))
	broken := f.primaryNote(t, ana, brokenSVG("x"))

	backup := map[int64][]store.Note{
		ana: {
			{ID: healthy.ID, SVG: healthySVG("older backup"), Date: "2024-12-01"},
			{ID: broken.ID, SVG: healthySVG("backup copy"), Date: "2024-12-01"},
			{ID: 50, SVG: healthySVG("gone from primary"), Date: "01/12/2024", NoteNumber: 9},
			{ID: 51, SVG: brokenSVG("also broken"), Date: "2024-12-01"},
			{SVG: healthySVG("no id"), Date: "2024-12-01"},
		},
		99: {
			{ID: 60, SVG: healthySVG("orphan"), Date: "2024-12-01"},
		},
	}

	result, err := f.svc.RestoreFromBackup(ctx, backup)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Restored: 2, Skipped: 3, Failed: 1}, result)

	got, err := f.st.GetNote(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, healthySVG("current"), got.SVG, "healthy notes are never overwritten")

	got, err = f.st.GetNote(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, healthySVG("backup copy"), got.SVG)
	assert.NotNil(t, got.RestoredAt)

	got, err = f.st.GetNote(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, ana, got.CustomerID)
	assert.Equal(t, "2024-12-01", got.Date)
	assert.Equal(t, 9, got.NoteNumber)

	_, err = f.st.GetNote(ctx, 60)
	assert.True(t, store.IsNotFound(err))
}

func TestRestoreFromBackup_EarlySchema(t *testing.T) {
	f := newFixture(t, store.WithSchemaVersion(1))

	result, err := f.svc.RestoreFromBackup(context.Background(), map[int64][]store.Note{
		1: {{ID: 1, SVG: healthySVG("x"), Date: "2024-12-01"}},
	})
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{}, result)
}
