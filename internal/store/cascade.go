package store

import (
	"context"
	"fmt"
)

// DeleteCustomer removes a customer with its appointments and images, and
// its notes when the unit declares them. Note versions go with their notes.
// An absent customer is a no-op.
func (t *Tx) DeleteCustomer(id int64) error {
	if _, err := t.exec(Customers, `DELETE FROM customers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if _, err := t.exec(Appointments, `DELETE FROM appointments WHERE customer_id = ?`, id); err != nil {
		return fmt.Errorf("delete customer appointments: %w", err)
	}
	if _, err := t.exec(Images, `DELETE FROM images WHERE customer_id = ?`, id); err != nil {
		return fmt.Errorf("delete customer images: %w", err)
	}

	if !t.Has(Notes) {
		return nil
	}
	if t.Has(NoteVersions) {
		_, err := t.exec(NoteVersions, `
			DELETE FROM note_versions
			WHERE note_id IN (SELECT id FROM notes WHERE customer_id = ?)
		`, id)
		if err != nil {
			return fmt.Errorf("delete customer note versions: %w", err)
		}
	}
	if _, err := t.exec(Notes, `DELETE FROM notes WHERE customer_id = ?`, id); err != nil {
		return fmt.Errorf("delete customer notes: %w", err)
	}
	return nil
}

// cascadeScope is every collection present that a customer owns.
func (s *Store) cascadeScope() []Collection {
	scope := []Collection{Customers, Appointments, Images}
	for _, c := range []Collection{Notes, NoteVersions} {
		if s.HasCollection(c) {
			scope = append(scope, c)
		}
	}
	return scope
}

// DeleteCustomer deletes a customer and everything it owns as one unit.
// Either every effect applies or none does.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	_, err := Run(ctx, s, s.cascadeScope(), ReadWrite, func(tx *Tx) (struct{}, error) {
		return struct{}{}, tx.DeleteCustomer(id)
	})
	if err != nil {
		return err
	}
	s.log.Debug().Int64("customer_id", id).Msg("customer deleted")
	return nil
}

// ClearAll wipes every declared collection.
func (t *Tx) ClearAll() error {
	for c := range t.scope {
		if err := t.clear(c); err != nil {
			return err
		}
	}
	return nil
}

// ClearAll wipes every collection present at this schema version in one unit.
func (s *Store) ClearAll(ctx context.Context) error {
	var scope []Collection
	for _, c := range AllCollections {
		if s.HasCollection(c) {
			scope = append(scope, c)
		}
	}
	_, err := Run(ctx, s, scope, ReadWrite, func(tx *Tx) (struct{}, error) {
		return struct{}{}, tx.ClearAll()
	})
	if err != nil {
		return err
	}
	s.log.Info().Msg("all collections cleared")
	return nil
}
