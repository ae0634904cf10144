package notes

import (
	"context"

	"github.com/roach88/clientbook/internal/store"
)

// RestoreResult summarizes RestoreFromBackup.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RestoreFromBackup writes healthy backup notes into the primary store where
// the current copy is absent or corrupted. Healthy current notes are never
// overwritten. Notes whose customer is gone are counted as failed.
func (s *Service) RestoreFromBackup(ctx context.Context, customerNotes map[int64][]store.Note) (RestoreResult, error) {
	if !s.st.HasCollection(store.Notes) {
		s.log.Warn().Msg("notes collection unavailable; nothing restored")
		return RestoreResult{}, nil
	}

	restoredAt := s.now().UTC()
	result, err := store.Run(ctx, s.st, []store.Collection{store.Customers, store.Notes}, store.ReadWrite,
		func(tx *store.Tx) (RestoreResult, error) {
			var r RestoreResult
			for _, custID := range sortedKeys(customerNotes) {
				for _, n := range customerNotes[custID] {
					if n.CustomerID == 0 {
						n.CustomerID = custID
					}
					if n.ID == 0 || !Healthy(n) {
						r.Skipped++
						continue
					}

					cur, err := tx.GetNote(n.ID)
					switch {
					case err == nil && Healthy(cur):
						r.Skipped++
						continue
					case err != nil && !store.IsNotFound(err):
						return RestoreResult{}, err
					}

					ok, err := tx.CustomerExists(n.CustomerID)
					if err != nil {
						return RestoreResult{}, err
					}
					if !ok {
						s.log.Warn().Int64("note_id", n.ID).Int64("customer_id", n.CustomerID).
							Msg("backup note references missing customer")
						r.Failed++
						continue
					}

					n.RestoredAt = &restoredAt
					if _, err := tx.PutNote(n); err != nil {
						if store.IsValidation(err) {
							r.Failed++
							continue
						}
						return RestoreResult{}, err
					}
					r.Restored++
				}
			}
			return r, nil
		})
	if err != nil {
		return RestoreResult{}, err
	}

	s.log.Info().Int("restored", result.Restored).Int("skipped", result.Skipped).
		Int("failed", result.Failed).Msg("restored notes from backup")
	return result, nil
}
