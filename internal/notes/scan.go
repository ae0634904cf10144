package notes

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/clientbook/internal/store"
)

// Location names where a copy of a note lives.
type Location string

const (
	None     Location = ""
	Primary  Location = "primary"
	Fallback Location = "fallback"
)

// Entry is one note id with the copy found in each location.
type Entry struct {
	NoteID     int64       `json:"noteId"`
	CustomerID int64       `json:"customerId"`
	Primary    *store.Note `json:"primary,omitempty"`
	Fallback   *store.Note `json:"fallback,omitempty"`
}

// Copy returns the copy held at loc.
func (e Entry) Copy(loc Location) *store.Note {
	switch loc {
	case Primary:
		return e.Primary
	case Fallback:
		return e.Fallback
	}
	return nil
}

// Corruption is an entry where at least one copy fails the health check.
// Source is the designated recovery source (None when there is no better
// copy) and Target is the location to overwrite.
type Corruption struct {
	Entry
	Source Location `json:"source"`
	Target Location `json:"target"`
}

// Duplicate is a note id stored more than once in the fallback store.
type Duplicate struct {
	NoteID      int64   `json:"noteId"`
	CustomerIDs []int64 `json:"customerIds"`
	Copies      int     `json:"copies"`
}

// Report is the result of Scan. Every slice is ordered by note id.
type Report struct {
	Scanned int `json:"scanned"`

	// Healthy holds notes that are healthy and either identical in both
	// locations or present in only one.
	Healthy []Entry `json:"healthy"`

	// Conflicting holds notes healthy in both locations with different
	// content. Neither side is preferred; see Service.ResolveConflict.
	Conflicting []Entry `json:"conflicting"`

	Corrupted []Corruption `json:"corrupted"`

	// PrimaryOnly and FallbackOnly hold every note present in a single
	// location, healthy or not.
	PrimaryOnly  []Entry `json:"primaryOnly"`
	FallbackOnly []Entry `json:"fallbackOnly"`

	Duplicates []Duplicate `json:"duplicates"`

	// FallbackAvailable is false when the fallback store could not be read
	// and the scan covered the primary store only.
	FallbackAvailable bool `json:"fallbackAvailable"`
}

// Recoverable returns the corrupted entries that have a recovery source.
func (r Report) Recoverable() []Corruption {
	out := []Corruption{}
	for _, c := range r.Corrupted {
		if c.Source != None {
			out = append(out, c)
		}
	}
	return out
}

// Scan classifies every note id found in either location.
func (s *Service) Scan(ctx context.Context) (Report, error) {
	primary, err := s.primaryNotes(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("scan notes: %w", err)
	}
	fbAll, ok := s.fallbackNotes()
	return classify(primary, fbAll, ok), nil
}

func classify(primary []store.Note, fbAll map[int64][]store.Note, fallbackOK bool) Report {
	report := Report{
		Healthy:           []Entry{},
		Conflicting:       []Entry{},
		Corrupted:         []Corruption{},
		PrimaryOnly:       []Entry{},
		FallbackOnly:      []Entry{},
		Duplicates:        []Duplicate{},
		FallbackAvailable: fallbackOK,
	}

	entries := map[int64]*Entry{}
	entry := func(id int64) *Entry {
		e, ok := entries[id]
		if !ok {
			e = &Entry{NoteID: id}
			entries[id] = e
		}
		return e
	}

	for i := range primary {
		n := primary[i]
		e := entry(n.ID)
		e.Primary = &n
		e.CustomerID = n.CustomerID
	}

	// Fallback copies, folding duplicates into their preferred copy.
	dups := map[int64]*Duplicate{}
	for _, custID := range sortedKeys(fbAll) {
		for _, n := range fbAll[custID] {
			if n.CustomerID == 0 {
				n.CustomerID = custID
			}
			e := entry(n.ID)
			if e.Fallback == nil {
				c := n
				e.Fallback = &c
			} else {
				d, ok := dups[n.ID]
				if !ok {
					d = &Duplicate{NoteID: n.ID, CustomerIDs: []int64{e.Fallback.CustomerID}, Copies: 1}
					dups[n.ID] = d
				}
				d.Copies++
				if !containsID(d.CustomerIDs, custID) {
					d.CustomerIDs = append(d.CustomerIDs, custID)
				}
				best := Prefer(*e.Fallback, n)
				e.Fallback = &best
			}
			if e.CustomerID == 0 {
				e.CustomerID = n.CustomerID
			}
		}
	}

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		e := *entries[id]
		report.Scanned++

		switch {
		case e.Primary != nil && e.Fallback != nil:
			classifyPair(&report, e)
		case e.Primary != nil:
			report.PrimaryOnly = append(report.PrimaryOnly, e)
			classifySingle(&report, e, Primary)
		default:
			report.FallbackOnly = append(report.FallbackOnly, e)
			classifySingle(&report, e, Fallback)
		}

		if d, ok := dups[id]; ok {
			sort.Slice(d.CustomerIDs, func(i, j int) bool { return d.CustomerIDs[i] < d.CustomerIDs[j] })
			report.Duplicates = append(report.Duplicates, *d)
		}
	}
	return report
}

func classifyPair(report *Report, e Entry) {
	hp, hf := Healthy(*e.Primary), Healthy(*e.Fallback)
	switch {
	case hp && hf:
		if SameContent(*e.Primary, *e.Fallback) {
			report.Healthy = append(report.Healthy, e)
		} else {
			report.Conflicting = append(report.Conflicting, e)
		}
	case hp:
		report.Corrupted = append(report.Corrupted, Corruption{Entry: e, Source: Primary, Target: Fallback})
	case hf:
		report.Corrupted = append(report.Corrupted, Corruption{Entry: e, Source: Fallback, Target: Primary})
	default:
		c := Corruption{Entry: e}
		lp, lf := len(e.Primary.SVG), len(e.Fallback.SVG)
		switch {
		case lp > lf:
			c.Source, c.Target = Primary, Fallback
		case lf > lp:
			c.Source, c.Target = Fallback, Primary
		default:
			c.Target = Primary
		}
		report.Corrupted = append(report.Corrupted, c)
	}
}

func classifySingle(report *Report, e Entry, loc Location) {
	if Healthy(*e.Copy(loc)) {
		report.Healthy = append(report.Healthy, e)
		return
	}
	report.Corrupted = append(report.Corrupted, Corruption{Entry: e, Source: None, Target: loc})
}

func sortedKeys(m map[int64][]store.Note) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
