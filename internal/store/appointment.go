package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const appointmentColumns = `id, customer_id, title, type, start_at, end_at, created_at`

func scanAppointment(row rowScanner) (Appointment, error) {
	var a Appointment
	var start, end, createdAt string
	if err := row.Scan(&a.ID, &a.CustomerID, &a.Title, &a.Type, &start, &end, &createdAt); err != nil {
		return Appointment{}, err
	}

	var err error
	if a.Start, err = parseTime(start); err != nil {
		return Appointment{}, fmt.Errorf("appointment %d start: %w", a.ID, err)
	}
	if a.End, err = parseTime(end); err != nil {
		return Appointment{}, fmt.Errorf("appointment %d end: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return Appointment{}, fmt.Errorf("appointment %d created_at: %w", a.ID, err)
	}
	return a, nil
}

func scanAppointmentRows(rows *sql.Rows) (Appointment, error) {
	a, err := scanAppointment(rows)
	if err != nil {
		return Appointment{}, fmt.Errorf("scan appointment: %w", err)
	}
	return a, nil
}

func (t *Tx) checkAppointment(op string, a Appointment) error {
	if a.Start.IsZero() || a.End.IsZero() {
		return ValidationError(op, errors.New("start and end are required"))
	}
	return t.s.check(op, a)
}

func (t *Tx) requireCustomer(op string, customerID int64) error {
	ok, err := t.CustomerExists(customerID)
	if err != nil {
		return err
	}
	if !ok {
		return &Error{Kind: KindValidation, Op: op, Collection: Customers,
			ID: customerID, Err: errors.New("customer does not exist")}
	}
	return nil
}

// CreateAppointment inserts a new appointment. The customer must exist.
func (t *Tx) CreateAppointment(a Appointment) (int64, error) {
	if err := t.requireCustomer("create appointment", a.CustomerID); err != nil {
		return 0, err
	}
	a.ID = 0
	a.CreatedAt = t.s.Now()
	return t.PutAppointment(a)
}

// PutAppointment upserts a by primary key without checking the customer.
func (t *Tx) PutAppointment(a Appointment) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = t.s.Now()
	}
	if err := t.checkAppointment("put appointment", a); err != nil {
		return 0, err
	}

	res, err := t.exec(Appointments, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			title = excluded.title,
			type = excluded.type,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			created_at = excluded.created_at
	`,
		idArg(a.ID), a.CustomerID, a.Title, a.Type,
		formatTime(a.Start), formatTime(a.End), formatTime(a.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("put appointment: %w", err)
	}
	if a.ID != 0 {
		return a.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("put appointment: last insert id: %w", err)
	}
	return id, nil
}

// GetAppointment returns the appointment with id or a KindNotFound error.
func (t *Tx) GetAppointment(id int64) (Appointment, error) {
	row, err := t.queryRow(Appointments, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	if err != nil {
		return Appointment{}, err
	}
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, notFound("get appointment", Appointments, id)
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// UpdateAppointment replaces an existing appointment, keeping createdAt.
// Moving it to another customer requires that customer to exist.
func (t *Tx) UpdateAppointment(a Appointment) (Appointment, error) {
	existing, err := t.GetAppointment(a.ID)
	if err != nil {
		if IsNotFound(err) {
			return Appointment{}, notFound("update appointment", Appointments, a.ID)
		}
		return Appointment{}, err
	}
	if a.CustomerID != existing.CustomerID {
		if err := t.requireCustomer("update appointment", a.CustomerID); err != nil {
			return Appointment{}, err
		}
	}
	a.CreatedAt = existing.CreatedAt
	if _, err := t.PutAppointment(a); err != nil {
		return Appointment{}, err
	}
	return t.GetAppointment(a.ID)
}

// DeleteAppointment removes one appointment. Absent ids are a no-op.
func (t *Tx) DeleteAppointment(id int64) error {
	if _, err := t.exec(Appointments, `DELETE FROM appointments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// AppointmentsByCustomer returns a customer's appointments ordered by start.
func (t *Tx) AppointmentsByCustomer(customerID int64) ([]Appointment, error) {
	rows, err := t.query(Appointments, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE customer_id = ?
		ORDER BY start_at ASC, id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("appointments by customer: %w", err)
	}
	return collect(rows, scanAppointmentRows)
}

// AppointmentsBetween returns appointments whose start lies in [from, to].
// A zero bound is open.
func (t *Tx) AppointmentsBetween(from, to time.Time) ([]Appointment, error) {
	where := []string{"1 = 1"}
	var args []any
	if !from.IsZero() {
		where = append(where, "start_at >= ?")
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		where = append(where, "start_at <= ?")
		args = append(args, formatTime(to))
	}
	rows, err := t.query(Appointments, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments between: %w", err)
	}
	return collect(rows, scanAppointmentRows)
}

// UpcomingAppointments returns up to limit of a customer's appointments
// starting at or after from, using the (customer_id, start_at) index.
func (t *Tx) UpcomingAppointments(customerID int64, from time.Time, limit int) ([]Appointment, error) {
	rows, err := t.query(Appointments, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE customer_id = ? AND start_at >= ?
		ORDER BY start_at ASC, id ASC
		LIMIT ?
	`, customerID, formatTime(from), limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	return collect(rows, scanAppointmentRows)
}

// ListAppointments returns every appointment in key order.
func (t *Tx) ListAppointments() ([]Appointment, error) {
	rows, err := t.query(Appointments, `SELECT `+appointmentColumns+` FROM appointments ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collect(rows, scanAppointmentRows)
}

var appointmentScope = []Collection{Appointments, Customers}

// CreateAppointment inserts a in its own unit.
func (s *Store) CreateAppointment(ctx context.Context, a Appointment) (int64, error) {
	return Run(ctx, s, appointmentScope, ReadWrite, func(tx *Tx) (int64, error) {
		return tx.CreateAppointment(a)
	})
}

// UpdateAppointment replaces an existing appointment.
func (s *Store) UpdateAppointment(ctx context.Context, a Appointment) (Appointment, error) {
	return Run(ctx, s, appointmentScope, ReadWrite, func(tx *Tx) (Appointment, error) {
		return tx.UpdateAppointment(a)
	})
}

// DeleteAppointment removes one appointment.
func (s *Store) DeleteAppointment(ctx context.Context, id int64) error {
	_, err := Run(ctx, s, appointmentScope, ReadWrite, func(tx *Tx) (struct{}, error) {
		return struct{}{}, tx.DeleteAppointment(id)
	})
	return err
}

// GetAppointment returns the appointment with id.
func (s *Store) GetAppointment(ctx context.Context, id int64) (Appointment, error) {
	return Run(ctx, s, appointmentScope, ReadOnly, func(tx *Tx) (Appointment, error) {
		return tx.GetAppointment(id)
	})
}

// AppointmentsByCustomer returns a customer's appointments.
func (s *Store) AppointmentsByCustomer(ctx context.Context, customerID int64) ([]Appointment, error) {
	return Run(ctx, s, appointmentScope, ReadOnly, func(tx *Tx) ([]Appointment, error) {
		return tx.AppointmentsByCustomer(customerID)
	})
}

// AppointmentsBetween returns appointments starting in [from, to].
func (s *Store) AppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return Run(ctx, s, appointmentScope, ReadOnly, func(tx *Tx) ([]Appointment, error) {
		return tx.AppointmentsBetween(from, to)
	})
}

// UpcomingAppointments returns a customer's next appointments from a time.
func (s *Store) UpcomingAppointments(ctx context.Context, customerID int64, from time.Time, limit int) ([]Appointment, error) {
	return Run(ctx, s, appointmentScope, ReadOnly, func(tx *Tx) ([]Appointment, error) {
		return tx.UpcomingAppointments(customerID, from, limit)
	})
}

// ListAppointments returns every appointment.
func (s *Store) ListAppointments(ctx context.Context) ([]Appointment, error) {
	return Run(ctx, s, appointmentScope, ReadOnly, func(tx *Tx) ([]Appointment, error) {
		return tx.ListAppointments()
	})
}
