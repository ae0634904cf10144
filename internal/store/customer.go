package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

const customerColumns = `id, first_name, last_name, contact_number, social_media_name,
	referral_type, referral_notes, notes_html, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	var notesHTML sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.ContactNumber, &c.SocialMediaName,
		&c.ReferralType, &c.ReferralNotes, &notesHTML, &createdAt, &updatedAt,
	); err != nil {
		return Customer{}, err
	}
	c.NotesHTML = stringPtr(notesHTML)

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Customer{}, fmt.Errorf("customer %d created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Customer{}, fmt.Errorf("customer %d updated_at: %w", c.ID, err)
	}
	return c, nil
}

func scanCustomerRows(rows *sql.Rows) (Customer, error) {
	c, err := scanCustomer(rows)
	if err != nil {
		return Customer{}, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}

// idArg maps the zero id to NULL so SQLite assigns the next key.
func idArg(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// stampCustomer fills missing timestamps and keeps updatedAt >= createdAt.
func (t *Tx) stampCustomer(c *Customer) {
	now := t.s.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = truncate(c.CreatedAt)
	if c.UpdatedAt.IsZero() || c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	c.UpdatedAt = truncate(c.UpdatedAt)
}

// CreateCustomer inserts a new customer and returns its assigned id.
func (t *Tx) CreateCustomer(c Customer) (int64, error) {
	c.ID = 0
	c.CreatedAt = t.s.Now()
	c.UpdatedAt = c.CreatedAt
	return t.PutCustomer(c)
}

// PutCustomer upserts c by primary key. A zero id inserts with a new key;
// any other id is preserved, overwriting an existing record with that id.
func (t *Tx) PutCustomer(c Customer) (int64, error) {
	t.stampCustomer(&c)
	if err := t.s.check("put customer", c); err != nil {
		return 0, err
	}

	res, err := t.exec(Customers, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			contact_number = excluded.contact_number,
			social_media_name = excluded.social_media_name,
			referral_type = excluded.referral_type,
			referral_notes = excluded.referral_notes,
			notes_html = excluded.notes_html,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`,
		idArg(c.ID), c.FirstName, c.LastName, c.ContactNumber, c.SocialMediaName,
		c.ReferralType, c.ReferralNotes, nullString(c.NotesHTML),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("put customer: %w", err)
	}
	if c.ID != 0 {
		return c.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("put customer: last insert id: %w", err)
	}
	return id, nil
}

// GetCustomer returns the customer with id or a KindNotFound error.
func (t *Tx) GetCustomer(id int64) (Customer, error) {
	row, err := t.queryRow(Customers, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	if err != nil {
		return Customer{}, err
	}
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, notFound("get customer", Customers, id)
	}
	if err != nil {
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// CustomerExists reports whether a customer with id exists.
func (t *Tx) CustomerExists(id int64) (bool, error) {
	row, err := t.queryRow(Customers, `SELECT COUNT(*) FROM customers WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("customer exists: %w", err)
	}
	return n > 0, nil
}

// UpdateCustomer replaces an existing customer wholesale. createdAt is kept
// from the stored record when c carries none; updatedAt is stamped now.
func (t *Tx) UpdateCustomer(c Customer) (Customer, error) {
	existing, err := t.GetCustomer(c.ID)
	if err != nil {
		if IsNotFound(err) {
			return Customer{}, notFound("update customer", Customers, c.ID)
		}
		return Customer{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = existing.CreatedAt
	}
	c.UpdatedAt = t.s.Now()
	if _, err := t.PutCustomer(c); err != nil {
		return Customer{}, err
	}
	return t.GetCustomer(c.ID)
}

// ListCustomers returns every customer in key order.
func (t *Tx) ListCustomers() ([]Customer, error) {
	rows, err := t.query(Customers, `SELECT `+customerColumns+` FROM customers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return collect(rows, scanCustomerRows)
}

// RecentCustomers returns up to limit customers, most recently updated first.
func (t *Tx) RecentCustomers(limit int) ([]Customer, error) {
	rows, err := t.query(Customers, `
		SELECT `+customerColumns+` FROM customers
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent customers: %w", err)
	}
	return collect(rows, scanCustomerRows)
}

// SearchCustomers matches query case-insensitively as a substring of the
// customer's first name, last name, contact number and social media handle
// joined by spaces. An empty query returns every customer. Results are in
// scan (key) order; callers re-sort as needed.
func (t *Tx) SearchCustomers(query string) ([]Customer, error) {
	all, err := t.ListCustomers()
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}

	matches := []Customer{}
	for _, c := range all {
		if strings.Contains(fold.String(searchText(c)), q) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

func searchText(c Customer) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{c.FirstName, c.LastName, c.ContactNumber, c.SocialMediaName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// CreateCustomer inserts c in its own unit and returns the new id.
func (s *Store) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	return Run(ctx, s, []Collection{Customers}, ReadWrite, func(tx *Tx) (int64, error) {
		return tx.CreateCustomer(c)
	})
}

// UpdateCustomer replaces an existing customer.
func (s *Store) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	return Run(ctx, s, []Collection{Customers}, ReadWrite, func(tx *Tx) (Customer, error) {
		return tx.UpdateCustomer(c)
	})
}

// PutCustomer upserts c preserving its id.
func (s *Store) PutCustomer(ctx context.Context, c Customer) (int64, error) {
	return Run(ctx, s, []Collection{Customers}, ReadWrite, func(tx *Tx) (int64, error) {
		return tx.PutCustomer(c)
	})
}

// GetCustomer returns the customer with id.
func (s *Store) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return Run(ctx, s, []Collection{Customers}, ReadOnly, func(tx *Tx) (Customer, error) {
		return tx.GetCustomer(id)
	})
}

// ListCustomers returns every customer.
func (s *Store) ListCustomers(ctx context.Context) ([]Customer, error) {
	return Run(ctx, s, []Collection{Customers}, ReadOnly, func(tx *Tx) ([]Customer, error) {
		return tx.ListCustomers()
	})
}

// SearchCustomers runs a substring search; see Tx.SearchCustomers.
func (s *Store) SearchCustomers(ctx context.Context, query string) ([]Customer, error) {
	return Run(ctx, s, []Collection{Customers}, ReadOnly, func(tx *Tx) ([]Customer, error) {
		return tx.SearchCustomers(query)
	})
}

// RecentCustomers returns the most recently updated customers.
func (s *Store) RecentCustomers(ctx context.Context, limit int) ([]Customer, error) {
	return Run(ctx, s, []Collection{Customers}, ReadOnly, func(tx *Tx) ([]Customer, error) {
		return tx.RecentCustomers(limit)
	})
}
