package fallback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "notes.json"))
}

func note(id, customerID int64, number int, svg string) store.Note {
	return store.Note{
		ID:         id,
		CustomerID: customerID,
		SVG:        svg,
		Date:       "2025-01-10",
		NoteNumber: number,
		CreatedAt:  time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)

	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	notes, err := s.CustomerNotes(1)
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestPutUpsertsByID(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put(note(1, 7, 1, "a")))
	require.NoError(t, s.Put(note(2, 7, 2, "b")))
	require.NoError(t, s.Put(note(1, 7, 1, "a2")))

	notes, err := s.CustomerNotes(7)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "a2", notes[0].SVG)
	assert.Equal(t, "b", notes[1].SVG)
	assert.Equal(t, note(2, 7, 2, "b"), notes[1], "round trips through the document")
}

func TestPutAll(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.PutAll([]store.Note{note(1, 7, 1, "a"), note(2, 8, 1, "b"), note(1, 7, 1, "a2")}))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all[7], 1)
	assert.Equal(t, "a2", all[7][0].SVG)
	assert.Len(t, all[8], 1)
}

func TestDeleteNoteAndCustomer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutAll([]store.Note{note(1, 7, 1, "a"), note(2, 7, 2, "b"), note(3, 8, 1, "c")}))

	require.NoError(t, s.DeleteNote(7, 1))
	notes, err := s.CustomerNotes(7)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(2), notes[0].ID)

	require.NoError(t, s.DeleteCustomer(8))
	all, err := s.All()
	require.NoError(t, err)
	_, ok := all[8]
	assert.False(t, ok)

	// Absent keys are a no-op.
	require.NoError(t, s.DeleteCustomer(99))
	require.NoError(t, s.DeleteNote(99, 1))
}

func TestTrimKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutAll([]store.Note{
		note(3, 7, 3, "c"), note(1, 7, 1, "a"), note(2, 7, 2, "b"), note(4, 8, 1, "d"),
	}))

	n, err := s.Trim(2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes, err := s.CustomerNotes(7)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, int64(2), notes[0].ID)
	assert.Equal(t, int64(3), notes[1].ID)

	n, err = s.Trim(2)
	require.NoError(t, err)
	assert.Zero(t, n, "second trim is a no-op")
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(note(1, 7, 1, "a")))
	require.NoError(t, s.Clear())

	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUnavailable(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := New("")
		_, err := s.All()
		assert.True(t, store.IsRecoveryUnavailable(err))
		assert.True(t, store.IsRecoveryUnavailable(s.Put(note(1, 1, 1, "a"))))
	})

	t.Run("corrupt document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := New(path).All()
		assert.True(t, store.IsRecoveryUnavailable(err))
	})

	t.Run("unwritable directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "notes.json")
		err := New(path).Put(note(1, 1, 1, "a"))
		assert.True(t, store.IsRecoveryUnavailable(err))
	})
}
