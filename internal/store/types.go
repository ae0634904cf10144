package store

import (
	"database/sql"
	"time"
)

// Customer is the root entity. Appointments, images and notes reference it
// and are destroyed with it.
type Customer struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"firstName" validate:"required_without=LastName,max=200"`
	LastName        string `json:"lastName" validate:"max=200"`
	ContactNumber   string `json:"contactNumber,omitempty" validate:"max=50"`
	SocialMediaName string `json:"socialMediaName,omitempty" validate:"max=200"`
	ReferralType    string `json:"referralType,omitempty" validate:"max=100"`
	ReferralNotes   string `json:"referralNotes,omitempty"`

	// NotesHTML is the deprecated inline rich-text notes field. New notes
	// live in the notes collection; see notes.MigrateLegacyNotes.
	NotesHTML *string `json:"notesHtml,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" validate:"gtefield=CreatedAt"`
}

// Appointment is a booked time slot for one customer.
type Appointment struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId" validate:"gt=0"`
	Title      string    `json:"title" validate:"max=300"`
	Type       string    `json:"type,omitempty" validate:"max=100"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end" validate:"gtefield=Start"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Image is an attachment whose content is held as a base64 data URI so it
// survives a plain-text backup unchanged.
type Image struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId" validate:"gt=0"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	DataURL    string    `json:"dataUrl" validate:"required"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Content decodes the image's data URI.
func (i Image) Content() ([]byte, string, error) {
	return DecodeDataURL(i.DataURL, i.Type)
}

// ImageUpload is raw image content handed to AddImages.
type ImageUpload struct {
	Name string
	Type string // sniffed from Data when empty
	Data []byte
}

// Note is a vector-graphic (SVG) note attached to a customer.
type Note struct {
	ID         int64      `json:"id"`
	CustomerID int64      `json:"customerId" validate:"gt=0"`
	SVG        string     `json:"svg"`
	Date       string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
	NoteNumber int        `json:"noteNumber,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedDate *time.Time `json:"editedDate,omitempty"`
	RestoredAt *time.Time `json:"restoredAt,omitempty"`
}

// NoteVersion is the single retained prior state of a note.
type NoteVersion struct {
	ID         int64      `json:"id"`
	NoteID     int64      `json:"noteId"`
	SVG        string     `json:"svg"`
	EditedDate *time.Time `json:"editedDate,omitempty"`
	SavedAt    time.Time  `json:"savedAt"`
}

// ReconcileRun records one pass of the note reconciliation job.
type ReconcileRun struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"runId"`
	Version    int       `json:"version"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Scanned    int       `json:"scanned"`
	Corrupted  int       `json:"corrupted"`
	Conflicts  int       `json:"conflicts"`
	Recovered  int       `json:"recovered"`
	Mirrored   int       `json:"mirrored"`
	Trimmed    int       `json:"trimmed"`
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// truncate drops sub-millisecond precision so values compare equal after a
// store round trip.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
