package notes

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/clientbook/internal/datenorm"
	"github.com/roach88/clientbook/internal/store"
)

// MinContentLength is the SVG length a note must exceed to count as having
// content. Recovery depends on this exact definition; keep it coarse.
const MinContentLength = 100

// fingerprintDomain separates note fingerprints from other SHA-256 uses.
const fingerprintDomain = "clientbook/note-content/v1"

// Healthy reports whether n has non-trivial content and at least one date.
func Healthy(n store.Note) bool {
	if len(n.SVG) <= MinContentLength {
		return false
	}
	return n.Date != "" || n.EditedDate != nil || !n.CreatedAt.IsZero()
}

// Fingerprint returns a stable digest of the note's content. Content is NFC
// normalized first so equivalent Unicode text compares equal.
func Fingerprint(svg string) string {
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0})
	h.Write([]byte(norm.NFC.String(svg)))
	return hex.EncodeToString(h.Sum(nil))
}

// SameContent reports whether two notes carry identical content.
func SameContent(a, b store.Note) bool {
	return Fingerprint(a.SVG) == Fingerprint(b.SVG)
}

// lastTouched is the first of editedDate, date and createdAt that is set.
func lastTouched(n store.Note) time.Time {
	if n.EditedDate != nil && !n.EditedDate.IsZero() {
		return *n.EditedDate
	}
	if n.Date != "" {
		if t, ok := datenorm.Timestamp(n.Date, n.CreatedAt); ok {
			return t
		}
	}
	return n.CreatedAt
}

// Prefer picks one copy of a note that exists in two places. a wins ties, so
// callers pass the primary copy first.
//
// A healthy copy beats a corrupted one. Between two healthy copies the most
// recently touched wins. Between two corrupted copies the one with strictly
// more content wins.
func Prefer(a, b store.Note) store.Note {
	ha, hb := Healthy(a), Healthy(b)
	switch {
	case ha && !hb:
		return a
	case hb && !ha:
		return b
	case ha && hb:
		if lastTouched(b).After(lastTouched(a)) {
			return b
		}
		return a
	default:
		if len(b.SVG) > len(a.SVG) {
			return b
		}
		return a
	}
}
