package notes

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clientbook/internal/store"
)

const legacyFragment = `<p>Hello <b>world</b></p><p>Second &amp; last</p>` +
	`<div>The quick brown fox jumps over the lazy dog and keeps on running far away</div>`

func TestLegacySVG_Golden(t *testing.T) {
	svg, err := LegacySVG(legacyFragment)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "legacy_svg", []byte(svg))
}

func TestLegacySVG_EmptyText(t *testing.T) {
	svg, err := LegacySVG("<p><br></p><p>   </p>")
	require.NoError(t, err)
	assert.Empty(t, svg)
}

func TestLegacySVG_MinimumHeight(t *testing.T) {
	svg, err := LegacySVG("one line<br>two")
	require.NoError(t, err)
	assert.Contains(t, svg, `height="60"`)
	assert.Contains(t, svg, `>one line</tspan>`)
	assert.Contains(t, svg, `>two</tspan>`)
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  []string
	}{
		{"fits", "short line", 50, []string{"short line"}},
		{"breaks on spaces", "aa bb cc", 5, []string{"aa bb", "cc"}},
		{"splits long words", "abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"collapses whitespace", "  a   b ", 10, []string{"a b"}},
		{"empty", "", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrap(tt.in, tt.width))
		})
	}
}

func TestMigrateLegacyNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	html := `<p>Prefers mornings</p><p>Allergic to latex</p>`
	blank := emptyEditorHTML
	withNotes, err := f.st.CreateCustomer(ctx, store.Customer{FirstName: "Ana", NotesHTML: &html})
	require.NoError(t, err)
	withBlank, err := f.st.CreateCustomer(ctx, store.Customer{FirstName: "Bea", NotesHTML: &blank})
	require.NoError(t, err)
	f.customer(t, "Cai")

	res, err := f.svc.MigrateLegacyNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Migrated)
	assert.Empty(t, res.Failed)

	c, err := f.st.GetCustomer(ctx, withNotes)
	require.NoError(t, err)
	assert.Nil(t, c.NotesHTML)

	notes, err := f.st.NotesByCustomer(ctx, withNotes)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	want, err := LegacySVG(html)
	require.NoError(t, err)
	assert.Equal(t, want, notes[0].SVG)
	assert.Contains(t, notes[0].SVG, `<tspan x="10" dy="0">Prefers mornings</tspan>`)
	assert.Contains(t, notes[0].SVG, `<tspan x="10" dy="20">Allergic to latex</tspan>`)
	assert.Equal(t, c.CreatedAt.Format("2006-01-02"), notes[0].Date)
	assert.True(t, Healthy(notes[0]))

	b, err := f.st.GetCustomer(ctx, withBlank)
	require.NoError(t, err)
	assert.NotNil(t, b.NotesHTML, "blank editor content is left alone")

	again, err := f.svc.MigrateLegacyNotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Migrated)
}

func TestLegacySVG_ParsesFragments(t *testing.T) {
	svg, err := LegacySVG("<p>Allergic to latex</p>")
	require.NoError(t, err)
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="60" viewBox="0 0 400 60">`+
		`<text x="10" y="30" font-family="Arial, sans-serif" font-size="16" fill="#ffffff">`+
		`<tspan x="10" dy="0">Allergic to latex</tspan></text></svg>`, svg)
}

func TestHTMLText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", "<p>a</p><p>b</p>", "a\nb\n"},
		{"line breaks", "a<br>b", "a\nb"},
		{"inline markup", "<b>bold</b> and <i>it</i>", "bold and it"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"scripts dropped", "<script>x()</script>ok", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := htmlText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrateLegacyNotes_DatesFromCustomerCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	html := "Call before noon"
	id, err := f.st.CreateCustomer(ctx, store.Customer{FirstName: "Dee", NotesHTML: &html})
	require.NoError(t, err)
	c, err := f.st.GetCustomer(ctx, id)
	require.NoError(t, err)

	res, err := f.svc.MigrateLegacyNotes(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Migrated)

	notes, err := f.st.NotesByCustomer(ctx, id)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, c.CreatedAt.UTC().Format("2006-01-02"), notes[0].Date)
	assert.Equal(t, 1, notes[0].NoteNumber)
	assert.Contains(t, notes[0].SVG, ">Call before noon</tspan>")
}
