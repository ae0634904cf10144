package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Mode is the access mode of a unit of work.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

type unitKey struct{}

// Tx is one unit of work over a declared set of collections. It is only
// valid inside the body passed to Run.
type Tx struct {
	s     *Store
	tx    *sql.Tx
	ctx   context.Context
	mode  Mode
	scope map[Collection]bool
}

// Run executes body as one atomic unit over collections. Every write the
// body issues commits together or not at all. The body's value is returned
// only after commit succeeds.
//
// Errors returned by body are propagated unchanged after rollback. Begin and
// commit failures surface as KindTransaction wrapping the driver error.
//
// Units are serialized on the store's single connection: a Run from another
// goroutine waits for the current unit to finish. A body must therefore do
// all of its work through tx. Run called with tx.Context() fails at once
// with "nested unit of work"; a Store method called from inside a body with
// any other context waits on the connection the body holds and returns only
// when that context is done. A body needing several collections declares
// them all up front.
func Run[T any](ctx context.Context, s *Store, collections []Collection, mode Mode, body func(tx *Tx) (T, error)) (T, error) {
	var zero T

	if ctx.Value(unitKey{}) != nil {
		return zero, newError(KindTransaction, "run", errors.New("nested unit of work"))
	}
	if s.db == nil {
		return zero, newError(KindTransaction, "run", errors.New("store is closed"))
	}
	if len(collections) == 0 {
		return zero, newError(KindTransaction, "run", errors.New("no collections declared"))
	}

	scope := make(map[Collection]bool, len(collections))
	for _, c := range collections {
		if !s.HasCollection(c) {
			kind := KindTransaction
			if c == NoteVersions {
				kind = KindRecoveryUnavailable
			}
			return zero, &Error{
				Kind:       kind,
				Op:         "run",
				Collection: c,
				Err:        fmt.Errorf("collection not present at schema v%d", s.version),
			}
		}
		scope[c] = true
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, newError(KindTransaction, "begin", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	t := &Tx{
		s:     s,
		tx:    sqlTx,
		ctx:   context.WithValue(ctx, unitKey{}, true),
		mode:  mode,
		scope: scope,
	}

	out, err := body(t)
	if err != nil {
		return zero, err
	}

	if err := sqlTx.Commit(); err != nil {
		return zero, newError(KindTransaction, "commit", err)
	}
	return out, nil
}

// Context returns the unit's context. Code inside a body must pass this
// context onward so nested units are detected.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// Mode returns the unit's access mode.
func (t *Tx) Mode() Mode {
	return t.mode
}

// Has reports whether the collection was declared for this unit.
func (t *Tx) Has(c Collection) bool {
	return t.scope[c]
}

func (t *Tx) use(c Collection, write bool) error {
	if !t.scope[c] {
		return &Error{Kind: KindTransaction, Op: "access", Collection: c,
			Err: errors.New("collection not declared for this unit")}
	}
	if write && t.mode != ReadWrite {
		return &Error{Kind: KindTransaction, Op: "write", Collection: c,
			Err: errors.New("unit is read-only")}
	}
	return nil
}

func (t *Tx) exec(c Collection, query string, args ...any) (sql.Result, error) {
	if err := t.use(c, true); err != nil {
		return nil, err
	}
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *Tx) query(c Collection, query string, args ...any) (*sql.Rows, error) {
	if err := t.use(c, false); err != nil {
		return nil, err
	}
	return t.tx.QueryContext(t.ctx, query, args...)
}

func (t *Tx) queryRow(c Collection, query string, args ...any) (*sql.Row, error) {
	if err := t.use(c, false); err != nil {
		return nil, err
	}
	return t.tx.QueryRowContext(t.ctx, query, args...), nil
}

// clear removes every record from c.
func (t *Tx) clear(c Collection) error {
	if _, err := t.exec(c, "DELETE FROM "+string(c)); err != nil {
		return fmt.Errorf("clear %s: %w", c, err)
	}
	return nil
}

// collect drains rows through scan. Returns an empty slice, not nil.
func collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return items, nil
}
