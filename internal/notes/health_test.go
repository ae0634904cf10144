package notes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/clientbook/internal/store"
)

func TestHealthy(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	edited := created.Add(time.Hour)

	tests := []struct {
		name string
		note store.Note
		want bool
	}{
		{"content and date", store.Note{SVG: healthySVG("a"), Date: "2025-01-01"}, true},
		{"content and createdAt", store.Note{SVG: healthySVG("a"), CreatedAt: created}, true},
		{"content and editedDate", store.Note{SVG: healthySVG("a"), EditedDate: &edited}, true},
		{"content without any date", store.Note{SVG: healthySVG("a")}, false},
		{"short content", store.Note{SVG: brokenSVG("a"), Date: "2025-01-01"}, false},
		{"exactly the threshold", store.Note{SVG: strings.Repeat("x", MinContentLength), Date: "2025-01-01"}, false},
		{"one past the threshold", store.Note{SVG: strings.Repeat("x", MinContentLength+1), Date: "2025-01-01"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Healthy(tt.note))
		})
	}
}

func TestFingerprint_NormalizesUnicode(t *testing.T) {
	composed := "<text>caf\u00e9</text>"
	decomposed := "<text>cafe\u0301</text>"

	assert.Equal(t, Fingerprint(composed), Fingerprint(decomposed))
	assert.NotEqual(t, Fingerprint(composed), Fingerprint("<text>cafe</text>"))
	assert.Len(t, Fingerprint(""), 64)
}

func TestPrefer(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	healthyOld := store.Note{ID: 1, SVG: healthySVG("old"), CreatedAt: t1}
	healthyNew := store.Note{ID: 1, SVG: healthySVG("new"), CreatedAt: t1, EditedDate: &t2}
	healthyDated := store.Note{ID: 1, SVG: healthySVG("dated"), Date: "2025-03-01", CreatedAt: t1}
	healthyTwin := store.Note{ID: 1, SVG: healthySVG("twin"), CreatedAt: t1}
	small := store.Note{ID: 1, SVG: brokenSVG("s"), CreatedAt: t1}
	larger := store.Note{ID: 1, SVG: brokenSVG("larger"), CreatedAt: t1}

	tests := []struct {
		name    string
		a, b    store.Note
		wantSVG string
	}{
		{"healthy beats corrupted", small, healthyOld, healthyOld.SVG},
		{"healthy primary beats corrupted fallback", healthyOld, small, healthyOld.SVG},
		{"newer edit wins", healthyOld, healthyNew, healthyNew.SVG},
		{"later date wins over createdAt", healthyOld, healthyDated, healthyDated.SVG},
		{"tie keeps primary", healthyOld, healthyTwin, healthyOld.SVG},
		{"larger corrupted wins", small, larger, larger.SVG},
		{"equal corrupted keeps primary", larger, store.Note{ID: 1, SVG: brokenSVG("LARGER")}, larger.SVG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSVG, Prefer(tt.a, tt.b).SVG)
		})
	}
}

func TestMerge(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	primary := []store.Note{
		{ID: 2, CustomerID: 1, SVG: healthySVG("p2"), NoteNumber: 2, CreatedAt: t1},
		{ID: 3, CustomerID: 1, SVG: brokenSVG("p3"), NoteNumber: 3, CreatedAt: t1},
	}
	fb := map[int64][]store.Note{
		1: {
			{ID: 3, SVG: healthySVG("f3"), NoteNumber: 3, Date: "2025-01-01"},
			{ID: 1, SVG: healthySVG("f1"), NoteNumber: 1, Date: "2025-01-01"},
			{ID: 2, SVG: healthySVG("f2"), NoteNumber: 2, CreatedAt: t1, EditedDate: &t2},
		},
		7: {
			{ID: 9, CustomerID: 7, SVG: healthySVG("f9"), NoteNumber: 1, Date: "2025-01-01"},
		},
	}

	merged := Merge(primary, fb)

	assert.Len(t, merged, 2)
	got := merged[1]
	if assert.Len(t, got, 3) {
		assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})
		assert.Equal(t, healthySVG("f1"), got[0].SVG)
		assert.Equal(t, healthySVG("f2"), got[1].SVG, "newer fallback edit wins")
		assert.Equal(t, healthySVG("f3"), got[2].SVG, "healthy fallback beats corrupted primary")
		assert.Equal(t, int64(1), got[0].CustomerID, "customer id backfilled from key")
	}
	assert.Len(t, merged[7], 1)
}
