package notes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/fallback"
	"github.com/roach88/clientbook/internal/ids"
	"github.com/roach88/clientbook/internal/store"
	"github.com/roach88/clientbook/internal/testutil"
)

type fixture struct {
	st    *store.Store
	fb    *fallback.Store
	svc   *Service
	clock *testutil.DeterministicClock
}

// newFixture opens a fresh primary store and an empty fallback document in
// a temp dir, sharing one deterministic clock.
func newFixture(t *testing.T, opts ...store.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)

	opts = append([]store.Option{store.WithClock(clock.Now)}, opts...)
	st, err := store.Open(context.Background(), filepath.Join(dir, "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fb := fallback.New(filepath.Join(dir, "notes.json"))
	gen := ids.NewFixedGenerator("run-1", "run-2", "run-3")
	return &fixture{
		st:    st,
		fb:    fb,
		svc:   New(st, fb, WithClock(clock.Now), WithIDGenerator(gen)),
		clock: clock,
	}
}

// corruptFallback makes the fallback document unreadable.
func (f *fixture) corruptFallback(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.fb.Path(), []byte("{not json"), 0o644))
}

func (f *fixture) customer(t *testing.T, first string) int64 {
	t.Helper()
	id, err := f.st.CreateCustomer(context.Background(), store.Customer{FirstName: first})
	require.NoError(t, err)
	return id
}

func (f *fixture) primaryNote(t *testing.T, customerID int64, svg string) store.Note {
	t.Helper()
	n, err := f.st.CreateNote(context.Background(), store.Note{CustomerID: customerID, SVG: svg})
	require.NoError(t, err)
	return n
}

func (f *fixture) fallbackNote(t *testing.T, id, customerID int64, svg string) store.Note {
	t.Helper()
	n := store.Note{ID: id, CustomerID: customerID, SVG: svg, Date: "2025-01-01", NoteNumber: int(id)}
	require.NoError(t, f.fb.Put(n))
	return n
}

// healthySVG returns content longer than MinContentLength.
func healthySVG(label string) string {
	return `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="60"><text x="10" y="20">` +
		label + `</text>` + strings.Repeat(`<path d="M0 0 L10 10"/>`, 2) + `</svg>`
}

// brokenSVG returns content at or below MinContentLength.
func brokenSVG(label string) string {
	return `<svg>` + label + `</svg>`
}
