// Package backup exports the whole store as one self-contained JSON
// document and imports such documents back, either merging into or
// replacing existing data.
package backup

import (
	"time"

	"github.com/roach88/clientbook/internal/store"
)

// AppTag identifies documents written by this package.
const AppTag = "clientbook"

// Meta describes a backup document.
type Meta struct {
	App         string    `json:"app"`
	Version     int       `json:"version"`
	ExportedAt  time.Time `json:"exportedAt"`
	ExportID    string    `json:"exportId,omitempty"`
	Lightweight bool      `json:"lightweight,omitempty"`
}

// Payload is the backup document. Image content is inline as data URIs and
// notes from both locations are already merged per customer.
type Payload struct {
	Meta          Meta                   `json:"__meta"`
	Customers     []store.Customer       `json:"customers"`
	Appointments  []store.Appointment    `json:"appointments"`
	CustomerNotes map[int64][]store.Note `json:"customerNotes"`
	Images        []store.Image          `json:"images"`
}

// NoteCount returns the number of notes across all customers.
func (p *Payload) NoteCount() int {
	n := 0
	for _, list := range p.CustomerNotes {
		n += len(list)
	}
	return n
}

func newPayload() *Payload {
	return &Payload{
		Customers:     []store.Customer{},
		Appointments:  []store.Appointment{},
		CustomerNotes: map[int64][]store.Note{},
		Images:        []store.Image{},
	}
}

// Progress reports how far a chunked export or import has come.
type Progress struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
}

// ProgressFunc receives progress updates. It is called synchronously.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(percent int, stage string) {
	if f != nil {
		f(Progress{Percent: min(max(percent, 0), 100), Stage: stage})
	}
}
