package backup

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/fallback"
	"github.com/roach88/clientbook/internal/ids"
	"github.com/roach88/clientbook/internal/notes"
	"github.com/roach88/clientbook/internal/store"
	"github.com/roach88/clientbook/internal/testutil"
)

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type env struct {
	st       *store.Store
	fb       *fallback.Store
	exporter *Exporter
	importer *Importer
}

// newEnv opens a fresh store and fallback document in a temp dir.
func newEnv(t *testing.T, storeOpts []store.Option, opts ...Option) *env {
	t.Helper()
	dir := t.TempDir()
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)

	storeOpts = append([]store.Option{store.WithClock(clock.Now)}, storeOpts...)
	st, err := store.Open(context.Background(), filepath.Join(dir, "test.db"), storeOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fb := fallback.New(filepath.Join(dir, "notes.json"))
	svc := notes.New(st, fb, notes.WithClock(clock.Now))

	opts = append([]Option{
		WithClock(clock.Now),
		WithIDGenerator(ids.NewFixedGenerator("export-1", "export-2", "export-3")),
	}, opts...)
	return &env{
		st:       st,
		fb:       fb,
		exporter: NewExporter(st, svc, opts...),
		importer: NewImporter(st, fb, opts...),
	}
}

// seed fills the store with two customers and their related records.
func (e *env) seed(t *testing.T) (ana, bob int64) {
	t.Helper()
	ctx := context.Background()

	var err error
	ana, err = e.st.CreateCustomer(ctx, store.Customer{FirstName: "Ana", LastName: "Lee", ContactNumber: "555-0001"})
	require.NoError(t, err)
	bob, err = e.st.CreateCustomer(ctx, store.Customer{FirstName: "Bob", LastName: "Ray"})
	require.NoError(t, err)

	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	for _, cust := range []int64{ana, bob} {
		_, err = e.st.CreateAppointment(ctx, store.Appointment{
			CustomerID: cust, Title: "Cut", Start: start, End: start.Add(time.Hour),
		})
		require.NoError(t, err)
		_, err = e.st.AddImages(ctx, cust, []store.ImageUpload{{Name: "dot.png", Data: pngBytes}})
		require.NoError(t, err)
		_, err = e.st.CreateNote(ctx, store.Note{CustomerID: cust, SVG: healthySVG("note"), Date: "2025-01-10"})
		require.NoError(t, err)
	}
	return ana, bob
}

func healthySVG(label string) string {
	return `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="60"><text x="10" y="20">` +
		label + `</text>` + strings.Repeat(`<path d="M0 0 L10 10"/>`, 2) + `</svg>`
}
