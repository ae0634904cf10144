package notes

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roach88/clientbook/internal/datenorm"
	"github.com/roach88/clientbook/internal/store"
)

// Layout of notes converted from legacy rich text.
const (
	legacyWidth      = 400
	legacyLineHeight = 20
	legacyPadding    = 20
	legacyMinHeight  = 60
	legacyWrapAt     = 50
)

// emptyEditorHTML is what the old rich-text editor saved for a blank field.
const emptyEditorHTML = "<p><br></p>"

// LegacyFailure records a customer whose legacy notes could not be read.
type LegacyFailure struct {
	CustomerID int64  `json:"customerId"`
	Error      string `json:"error"`
}

// LegacyResult summarizes a legacy notes migration.
type LegacyResult struct {
	Migrated int             `json:"migrated"`
	Failed   []LegacyFailure `json:"failed"`
}

// MigrateLegacyNotes converts every customer's inline rich-text notes into a
// regular note and clears the legacy field. The note is dated with the
// customer's creation date. Customers whose notes cannot be read keep their
// legacy field and are listed in Failed.
func (s *Service) MigrateLegacyNotes(ctx context.Context) (LegacyResult, error) {
	res := LegacyResult{Failed: []LegacyFailure{}}
	if !s.st.HasCollection(store.Notes) {
		s.log.Warn().Msg("notes collection unavailable; legacy notes left in place")
		return res, nil
	}

	res, err := store.Run(ctx, s.st, []store.Collection{store.Customers, store.Notes}, store.ReadWrite,
		func(tx *store.Tx) (LegacyResult, error) {
			out := LegacyResult{Failed: []LegacyFailure{}}
			customers, err := tx.ListCustomers()
			if err != nil {
				return out, err
			}

			for _, c := range customers {
				if c.NotesHTML == nil {
					continue
				}
				legacy := strings.TrimSpace(*c.NotesHTML)
				if legacy == "" || legacy == emptyEditorHTML {
					continue
				}

				svg, err := LegacySVG(legacy)
				if err != nil {
					s.log.Warn().Err(err).Int64("customer_id", c.ID).Msg("skipping unreadable legacy notes")
					out.Failed = append(out.Failed, LegacyFailure{CustomerID: c.ID, Error: err.Error()})
					continue
				}
				if svg != "" {
					n := store.Note{CustomerID: c.ID, SVG: svg}
					if !c.CreatedAt.IsZero() {
						n.Date = c.CreatedAt.UTC().Format(datenorm.Layout)
					}
					if _, err := tx.CreateNote(n); err != nil {
						return out, err
					}
				}

				c.NotesHTML = nil
				if _, err := tx.PutCustomer(c); err != nil {
					return out, err
				}
				out.Migrated++
			}
			return out, nil
		})
	if err != nil {
		return LegacyResult{Failed: []LegacyFailure{}}, fmt.Errorf("migrate legacy notes: %w", err)
	}

	if res.Migrated > 0 || len(res.Failed) > 0 {
		s.log.Info().Int("customers", res.Migrated).Int("failed", len(res.Failed)).Msg("migrated legacy notes")
	}
	return res, nil
}

// LegacySVG renders the text of a rich-text fragment as an SVG note. It
// returns "" when the fragment holds no text.
func LegacySVG(fragment string) (string, error) {
	text, err := htmlText(fragment)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, wrap(strings.TrimSpace(l), legacyWrapAt)...)
	}
	if len(lines) == 0 {
		return "", nil
	}

	height := max(legacyMinHeight, len(lines)*legacyLineHeight+legacyPadding)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		legacyWidth, height, legacyWidth, height)
	b.WriteString(`<text x="10" y="30" font-family="Arial, sans-serif" font-size="16" fill="#ffffff">`)
	for i, l := range lines {
		dy := "0"
		if i > 0 {
			dy = fmt.Sprint(legacyLineHeight)
		}
		fmt.Fprintf(&b, `<tspan x="10" dy="%s">`, dy)
		if err := xml.EscapeText(&b, []byte(l)); err != nil {
			return "", err
		}
		b.WriteString(`</tspan>`)
	}
	b.WriteString(`</text></svg>`)
	return b.String(), nil
}

// htmlText extracts the text content of fragment, turning block elements
// and line breaks into newlines.
func htmlText(fragment string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return "", fmt.Errorf("parse legacy notes: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteByte('\n')
				return
			case "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte('\n')
			}
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String(), nil
}

// wrap breaks s into lines of at most width runes, splitting on spaces.
// Words longer than width are split.
func wrap(s string, width int) []string {
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
