package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/clientbook/internal/store"
)

// RecoverOptions controls Recover.
type RecoverOptions struct {
	// DryRun reports planned writes without applying them.
	DryRun bool
}

// Write is one planned or applied recovery write.
type Write struct {
	NoteID     int64    `json:"noteId"`
	CustomerID int64    `json:"customerId"`
	From       Location `json:"from"`
	To         Location `json:"to"`
	Bytes      int      `json:"bytes"`
}

// RecoverResult summarizes a Recover call.
type RecoverResult struct {
	Planned []Write `json:"planned"`
	Applied int     `json:"applied"`
	Failed  int     `json:"failed"`
}

// Recover copies the recovery source of every corrupted entry in report
// into its corrupted location. Entries without a source are left alone.
// Per-note failures are logged and counted; only a failed primary unit of
// work is returned as an error.
func (s *Service) Recover(ctx context.Context, report Report, opts RecoverOptions) (RecoverResult, error) {
	result := RecoverResult{Planned: []Write{}}

	var toPrimary, toFallback []store.Note
	for _, c := range report.Recoverable() {
		src := c.Copy(c.Source)
		w := Write{NoteID: c.NoteID, CustomerID: c.CustomerID, From: c.Source, To: c.Target, Bytes: len(src.SVG)}
		result.Planned = append(result.Planned, w)

		fixed := recovered(c, s.now())
		switch c.Target {
		case Primary:
			toPrimary = append(toPrimary, fixed)
		case Fallback:
			toFallback = append(toFallback, fixed)
		}
	}

	if opts.DryRun || len(result.Planned) == 0 {
		return result, nil
	}

	if len(toPrimary) > 0 {
		n, err := s.putPrimary(ctx, toPrimary)
		if err != nil {
			return result, fmt.Errorf("recover notes: %w", err)
		}
		result.Applied += n
		result.Failed += len(toPrimary) - n
	}

	if len(toFallback) > 0 {
		if err := s.fb.PutAll(toFallback); err != nil {
			s.log.Warn().Err(err).Int("notes", len(toFallback)).Msg("recovery into fallback store failed")
			result.Failed += len(toFallback)
		} else {
			result.Applied += len(toFallback)
		}
	}

	s.log.Info().Int("applied", result.Applied).Int("failed", result.Failed).Msg("note recovery finished")
	return result, nil
}

// recovered builds the note to write at c.Target: the source copy's content
// and dates under the target copy's identity.
func recovered(c Corruption, now time.Time) store.Note {
	n := *c.Copy(c.Source)
	if tgt := c.Copy(c.Target); tgt != nil {
		n.ID = tgt.ID
		if tgt.CustomerID != 0 {
			n.CustomerID = tgt.CustomerID
		}
		if tgt.NoteNumber != 0 {
			n.NoteNumber = tgt.NoteNumber
		}
	}
	if c.Target == Primary {
		restored := now.UTC()
		n.RestoredAt = &restored
	}
	return n
}

// putPrimary upserts notes into the primary store in one unit, skipping
// notes whose customer no longer exists. Returns how many were written.
func (s *Service) putPrimary(ctx context.Context, notes []store.Note) (int, error) {
	if !s.st.HasCollection(store.Notes) {
		return 0, store.RecoveryUnavailable("write primary notes", errors.New("notes collection unavailable"))
	}
	return store.Run(ctx, s.st, []store.Collection{store.Customers, store.Notes}, store.ReadWrite,
		func(tx *store.Tx) (int, error) {
			written := 0
			for _, n := range notes {
				ok, err := tx.CustomerExists(n.CustomerID)
				if err != nil {
					return 0, err
				}
				if !ok {
					s.log.Warn().Int64("note_id", n.ID).Int64("customer_id", n.CustomerID).
						Msg("skipping note for missing customer")
					continue
				}
				if _, err := tx.PutNote(n); err != nil {
					if store.IsValidation(err) {
						s.log.Warn().Err(err).Int64("note_id", n.ID).Msg("skipping invalid note")
						continue
					}
					return 0, err
				}
				written++
			}
			return written, nil
		})
}
