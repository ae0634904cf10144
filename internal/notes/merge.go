package notes

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/clientbook/internal/store"
)

// Merge combines primary notes and the fallback document into one copy per
// note id keyed by customer id, choosing between copies with Prefer (the
// primary copy wins ties). Each customer's notes are ordered by note number
// then id.
func Merge(primary []store.Note, fbAll map[int64][]store.Note) map[int64][]store.Note {
	chosen := map[int64]store.Note{}
	for _, n := range primary {
		chosen[n.ID] = n
	}
	for _, custID := range sortedKeys(fbAll) {
		for _, n := range fbAll[custID] {
			if n.CustomerID == 0 {
				n.CustomerID = custID
			}
			if cur, ok := chosen[n.ID]; ok {
				chosen[n.ID] = Prefer(cur, n)
			} else {
				chosen[n.ID] = n
			}
		}
	}

	out := map[int64][]store.Note{}
	for _, n := range chosen {
		out[n.CustomerID] = append(out[n.CustomerID], n)
	}
	for _, list := range out {
		sortNotes(list)
	}
	return out
}

func sortNotes(list []store.Note) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].NoteNumber != list[j].NoteNumber {
			return list[i].NoteNumber < list[j].NoteNumber
		}
		return list[i].ID < list[j].ID
	})
}

// ExportNotes returns the merged notes of both locations for a backup.
// An unreadable fallback store degrades to the primary notes alone.
func (s *Service) ExportNotes(ctx context.Context) (map[int64][]store.Note, error) {
	primary, err := s.primaryNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("export notes: %w", err)
	}
	fbAll, _ := s.fallbackNotes()
	return Merge(primary, fbAll), nil
}
