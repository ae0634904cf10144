package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/clientbook/internal/store"
)

// ResolveConflict settles a note that differs between locations by keeping
// the copy at keep and writing it over the other. Keeping the fallback copy
// goes through a normal note update, so the replaced primary content stays
// available for one-step undo. Either way the fallback store ends with one
// copy of the note, under the primary record's customer.
func (s *Service) ResolveConflict(ctx context.Context, noteID int64, keep Location) (store.Note, error) {
	if keep != Primary && keep != Fallback {
		return store.Note{}, store.ValidationError("resolve conflict", fmt.Errorf("unknown location %q", keep))
	}

	primary, err := s.st.GetNote(ctx, noteID)
	if err != nil {
		return store.Note{}, err
	}

	fbAll, err := s.fb.All()
	if err != nil {
		return store.Note{}, err
	}
	var fbCopy *store.Note
	for _, list := range fbAll {
		for i := range list {
			if list[i].ID == noteID {
				c := list[i]
				fbCopy = &c
			}
		}
	}
	if fbCopy == nil {
		return store.Note{}, &store.Error{Kind: store.KindNotFound, Op: "resolve conflict",
			Collection: store.Notes, ID: noteID, Err: errors.New("no fallback copy")}
	}

	if keep == Primary {
		if err := s.fb.Put(primary); err != nil {
			return store.Note{}, err
		}
		if err := s.dropStaleCopies(fbAll, primary); err != nil {
			return store.Note{}, err
		}
		s.log.Info().Int64("note_id", noteID).Str("kept", string(keep)).Msg("conflict resolved")
		return primary, nil
	}

	updated := primary
	updated.SVG = fbCopy.SVG
	if fbCopy.Date != "" {
		updated.Date = fbCopy.Date
	}
	out, err := s.st.UpdateNote(ctx, updated)
	if err != nil {
		return store.Note{}, err
	}
	if err := s.fb.Put(out); err != nil {
		return store.Note{}, err
	}
	if err := s.dropStaleCopies(fbAll, out); err != nil {
		return store.Note{}, err
	}
	s.log.Info().Int64("note_id", noteID).Str("kept", string(keep)).Msg("conflict resolved")
	return out, nil
}

// dropStaleCopies removes n's id from every fallback key other than
// n.CustomerID.
func (s *Service) dropStaleCopies(fbAll map[int64][]store.Note, n store.Note) error {
	for cust, list := range fbAll {
		if cust == n.CustomerID {
			continue
		}
		for _, c := range list {
			if c.ID != n.ID {
				continue
			}
			if err := s.fb.DeleteNote(cust, n.ID); err != nil {
				return err
			}
			s.log.Debug().Int64("note_id", n.ID).Int64("customer_id", cust).Msg("removed stale fallback copy")
			break
		}
	}
	return nil
}
