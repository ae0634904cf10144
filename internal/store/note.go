package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/clientbook/internal/datenorm"
)

const noteColumns = `id, customer_id, svg, date, note_number, created_at, edited_date, restored_at`

func scanNote(row rowScanner) (Note, error) {
	var n Note
	var createdAt string
	var edited, restored sql.NullString
	if err := row.Scan(&n.ID, &n.CustomerID, &n.SVG, &n.Date, &n.NoteNumber, &createdAt, &edited, &restored); err != nil {
		return Note{}, err
	}

	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return Note{}, fmt.Errorf("note %d created_at: %w", n.ID, err)
	}
	if n.EditedDate, err = parseNullTime(edited); err != nil {
		return Note{}, fmt.Errorf("note %d edited_date: %w", n.ID, err)
	}
	if n.RestoredAt, err = parseNullTime(restored); err != nil {
		return Note{}, fmt.Errorf("note %d restored_at: %w", n.ID, err)
	}
	return n, nil
}

func scanNoteRows(rows *sql.Rows) (Note, error) {
	n, err := scanNote(rows)
	if err != nil {
		return Note{}, fmt.Errorf("scan note: %w", err)
	}
	return n, nil
}

// nextNoteNumber returns one past the customer's highest note number.
func (t *Tx) nextNoteNumber(customerID int64) (int, error) {
	row, err := t.queryRow(Notes, `SELECT COALESCE(MAX(note_number), 0) FROM notes WHERE customer_id = ?`, customerID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("next note number: %w", err)
	}
	return n + 1, nil
}

// CreateNote inserts a new note for an existing customer. The date is
// normalized (today when unparseable) and the note is numbered after the
// customer's existing notes.
func (t *Tx) CreateNote(n Note) (Note, error) {
	ok, err := t.CustomerExists(n.CustomerID)
	if err != nil {
		return Note{}, err
	}
	if !ok {
		return Note{}, &Error{Kind: KindValidation, Op: "create note", Collection: Customers,
			ID: n.CustomerID, Err: errors.New("customer does not exist")}
	}

	if n.NoteNumber == 0 {
		if n.NoteNumber, err = t.nextNoteNumber(n.CustomerID); err != nil {
			return Note{}, err
		}
	}
	n.ID = 0
	n.CreatedAt = t.s.Now()
	n.RestoredAt = nil

	id, err := t.PutNote(n)
	if err != nil {
		return Note{}, err
	}
	return t.GetNote(id)
}

// PutNote upserts n by primary key. The date is normalized against the
// store clock and createdAt defaults to now.
func (t *Tx) PutNote(n Note) (int64, error) {
	now := t.s.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.Date = datenorm.OrNow(n.Date, now)
	if err := t.s.check("put note", n); err != nil {
		return 0, err
	}

	res, err := t.exec(Notes, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			svg = excluded.svg,
			date = excluded.date,
			note_number = excluded.note_number,
			created_at = excluded.created_at,
			edited_date = excluded.edited_date,
			restored_at = excluded.restored_at
	`,
		idArg(n.ID), n.CustomerID, n.SVG, n.Date, n.NoteNumber,
		formatTime(n.CreatedAt), nullTime(n.EditedDate), nullTime(n.RestoredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("put note: %w", err)
	}
	if n.ID != 0 {
		return n.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("put note: last insert id: %w", err)
	}
	return id, nil
}

// GetNote returns the note with id or a KindNotFound error.
func (t *Tx) GetNote(id int64) (Note, error) {
	row, err := t.queryRow(Notes, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return Note{}, err
	}
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, notFound("get note", Notes, id)
	}
	if err != nil {
		return Note{}, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// UpdateNote replaces an existing note. When the content changes and the
// unit declares NoteVersions, the previous content is retained as the
// note's single NoteVersion first. editedDate is stamped on every update.
func (t *Tx) UpdateNote(n Note) (Note, error) {
	existing, err := t.GetNote(n.ID)
	if err != nil {
		if IsNotFound(err) {
			return Note{}, notFound("update note", Notes, n.ID)
		}
		return Note{}, err
	}

	if existing.SVG != n.SVG {
		if t.Has(NoteVersions) {
			if err := t.retainVersion(existing); err != nil {
				return Note{}, err
			}
		} else {
			t.s.log.Warn().Int64("note_id", n.ID).Msg("note versions unavailable; update not retained")
		}
	}

	if n.CustomerID == 0 {
		n.CustomerID = existing.CustomerID
	}
	if n.NoteNumber == 0 {
		n.NoteNumber = existing.NoteNumber
	}
	if n.Date == "" {
		n.Date = existing.Date
	}
	n.CreatedAt = existing.CreatedAt
	edited := t.s.Now()
	n.EditedDate = &edited

	if _, err := t.PutNote(n); err != nil {
		return Note{}, err
	}
	return t.GetNote(n.ID)
}

// retainVersion replaces the note's retained version with prev.
func (t *Tx) retainVersion(prev Note) error {
	if _, err := t.exec(NoteVersions, `DELETE FROM note_versions WHERE note_id = ?`, prev.ID); err != nil {
		return fmt.Errorf("prune note versions: %w", err)
	}
	_, err := t.exec(NoteVersions, `
		INSERT INTO note_versions (note_id, svg, edited_date, saved_at) VALUES (?, ?, ?, ?)
	`, prev.ID, prev.SVG, nullTime(prev.EditedDate), formatTime(t.s.Now()))
	if err != nil {
		return fmt.Errorf("save note version: %w", err)
	}
	return nil
}

// NotesByCustomer returns a customer's notes ordered by note number.
func (t *Tx) NotesByCustomer(customerID int64) ([]Note, error) {
	rows, err := t.query(Notes, `
		SELECT `+noteColumns+` FROM notes
		WHERE customer_id = ?
		ORDER BY note_number ASC, id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("notes by customer: %w", err)
	}
	return collect(rows, scanNoteRows)
}

// ListNotes returns every note in key order.
func (t *Tx) ListNotes() ([]Note, error) {
	rows, err := t.query(Notes, `SELECT `+noteColumns+` FROM notes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return collect(rows, scanNoteRows)
}

// DeleteNote removes a note and, when declared, its retained version.
func (t *Tx) DeleteNote(id int64) error {
	if _, err := t.exec(Notes, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if t.Has(NoteVersions) {
		if _, err := t.exec(NoteVersions, `DELETE FROM note_versions WHERE note_id = ?`, id); err != nil {
			return fmt.Errorf("delete note version: %w", err)
		}
	}
	return nil
}

// NoteVersion returns the note's retained version, or nil when it has none.
func (t *Tx) NoteVersion(noteID int64) (*NoteVersion, error) {
	row, err := t.queryRow(NoteVersions, `
		SELECT id, note_id, svg, edited_date, saved_at FROM note_versions
		WHERE note_id = ? ORDER BY saved_at DESC, id DESC LIMIT 1
	`, noteID)
	if err != nil {
		return nil, err
	}

	var v NoteVersion
	var edited sql.NullString
	var savedAt string
	err = row.Scan(&v.ID, &v.NoteID, &v.SVG, &edited, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note version: %w", err)
	}
	if v.EditedDate, err = parseNullTime(edited); err != nil {
		return nil, fmt.Errorf("note version %d edited_date: %w", v.ID, err)
	}
	if v.SavedAt, err = parseTime(savedAt); err != nil {
		return nil, fmt.Errorf("note version %d saved_at: %w", v.ID, err)
	}
	return &v, nil
}

// RestorePreviousVersion puts the retained version's content back into the
// note, keeping every other field, and stamps restoredAt. Returns nil when
// the note has no retained version.
func (t *Tx) RestorePreviousVersion(noteID int64) (*Note, error) {
	n, err := t.GetNote(noteID)
	if err != nil {
		return nil, err
	}
	v, err := t.NoteVersion(noteID)
	if err != nil || v == nil {
		return nil, err
	}

	n.SVG = v.SVG
	restored := t.s.Now()
	n.RestoredAt = &restored
	if _, err := t.PutNote(n); err != nil {
		return nil, err
	}
	out, err := t.GetNote(noteID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// noteScope declares note_versions only when the handle has it, so note
// writes keep working on stores without version support.
func (s *Store) noteScope(extra ...Collection) []Collection {
	scope := append([]Collection{Notes}, extra...)
	if s.HasCollection(NoteVersions) {
		scope = append(scope, NoteVersions)
	}
	return scope
}

// CreateNote inserts a note in its own unit.
func (s *Store) CreateNote(ctx context.Context, n Note) (Note, error) {
	return Run(ctx, s, s.noteScope(Customers), ReadWrite, func(tx *Tx) (Note, error) {
		return tx.CreateNote(n)
	})
}

// PutNote upserts a note preserving its id.
func (s *Store) PutNote(ctx context.Context, n Note) (int64, error) {
	return Run(ctx, s, []Collection{Notes}, ReadWrite, func(tx *Tx) (int64, error) {
		return tx.PutNote(n)
	})
}

// UpdateNote replaces a note with version retention.
func (s *Store) UpdateNote(ctx context.Context, n Note) (Note, error) {
	return Run(ctx, s, s.noteScope(), ReadWrite, func(tx *Tx) (Note, error) {
		return tx.UpdateNote(n)
	})
}

// GetNote returns the note with id.
func (s *Store) GetNote(ctx context.Context, id int64) (Note, error) {
	return Run(ctx, s, []Collection{Notes}, ReadOnly, func(tx *Tx) (Note, error) {
		return tx.GetNote(id)
	})
}

// NotesByCustomer returns a customer's notes.
func (s *Store) NotesByCustomer(ctx context.Context, customerID int64) ([]Note, error) {
	return Run(ctx, s, []Collection{Notes}, ReadOnly, func(tx *Tx) ([]Note, error) {
		return tx.NotesByCustomer(customerID)
	})
}

// ListNotes returns every note.
func (s *Store) ListNotes(ctx context.Context) ([]Note, error) {
	return Run(ctx, s, []Collection{Notes}, ReadOnly, func(tx *Tx) ([]Note, error) {
		return tx.ListNotes()
	})
}

// DeleteNote removes a note and its retained version.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	_, err := Run(ctx, s, s.noteScope(), ReadWrite, func(tx *Tx) (struct{}, error) {
		return struct{}{}, tx.DeleteNote(id)
	})
	return err
}

// NoteVersion returns a note's retained version. Stores without version
// support yield nil and log a warning.
func (s *Store) NoteVersion(ctx context.Context, noteID int64) (*NoteVersion, error) {
	v, err := Run(ctx, s, []Collection{NoteVersions}, ReadOnly, func(tx *Tx) (*NoteVersion, error) {
		return tx.NoteVersion(noteID)
	})
	if IsRecoveryUnavailable(err) {
		s.log.Warn().Err(err).Int64("note_id", noteID).Msg("note versions unavailable")
		return nil, nil
	}
	return v, err
}

// RestorePreviousVersion undoes the last content change of a note. Returns
// nil when there is nothing to restore or versions are unavailable.
func (s *Store) RestorePreviousVersion(ctx context.Context, noteID int64) (*Note, error) {
	if !s.HasCollection(NoteVersions) {
		s.log.Warn().Int64("note_id", noteID).Msg("note versions unavailable")
		return nil, nil
	}
	return Run(ctx, s, []Collection{Notes, NoteVersions}, ReadWrite, func(tx *Tx) (*Note, error) {
		return tx.RestorePreviousVersion(noteID)
	})
}
