package backup

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/tailscale/hujson"

	"github.com/roach88/clientbook/internal/datenorm"
	"github.com/roach88/clientbook/internal/store"
)

//go:embed schema.cue
var schemaSource string

// maxSchemaWarnings caps how many structural findings Decode reports.
const maxSchemaWarnings = 20

type rawPayload struct {
	Meta          json.RawMessage              `json:"__meta"`
	Customers     []json.RawMessage            `json:"customers"`
	Appointments  []json.RawMessage            `json:"appointments"`
	Images        []json.RawMessage            `json:"images"`
	CustomerNotes map[string][]json.RawMessage `json:"customerNotes"`
}

// wireNote accepts the looser shapes older clients wrote: fractional or
// quoted ids, localized dates and epoch-millisecond timestamps.
type wireNote struct {
	ID         json.Number `json:"id"`
	CustomerID json.Number `json:"customerId"`
	SVG        string      `json:"svg"`
	Date       any         `json:"date"`
	NoteNumber json.Number `json:"noteNumber"`
	CreatedAt  any         `json:"createdAt"`
	EditedDate any         `json:"editedDate"`
	RestoredAt any         `json:"restoredAt"`
}

// Decode reads a backup document. Comments and trailing commas are
// tolerated. A document that is not a JSON object fails with a validation
// error; anything less is reported as a warning and the offending record is
// dropped.
func Decode(r io.Reader) (*Payload, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read backup: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, nil, store.ValidationError("decode backup", fmt.Errorf("invalid JSON: %w", err))
	}

	var raw rawPayload
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, nil, store.ValidationError("decode backup", fmt.Errorf("invalid JSON: %w", err))
	}

	warnings := checkSchema(std)
	p := newPayload()

	if len(raw.Meta) == 0 {
		warnings = append(warnings, "__meta: missing")
	} else if err := json.Unmarshal(raw.Meta, &p.Meta); err != nil {
		warnings = append(warnings, fmt.Sprintf("__meta: %v", err))
	}

	p.Customers = decodeRecords[store.Customer]("customers", raw.Customers, &warnings)
	p.Appointments = decodeRecords[store.Appointment]("appointments", raw.Appointments, &warnings)
	p.Images = decodeRecords[store.Image]("images", raw.Images, &warnings)

	ref := p.Meta.ExportedAt
	for key, list := range raw.CustomerNotes {
		custID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("customerNotes[%q]: invalid customer id", key))
			continue
		}
		notes := make([]store.Note, 0, len(list))
		for i, msg := range list {
			n, err := decodeNote(msg, ref)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("customerNotes[%q][%d]: %v", key, i, err))
				continue
			}
			if n.CustomerID == 0 {
				n.CustomerID = custID
			}
			notes = append(notes, n)
		}
		p.CustomerNotes[custID] = notes
	}
	return p, warnings, nil
}

func decodeRecords[T any](field string, raws []json.RawMessage, warnings *[]string) []T {
	out := make([]T, 0, len(raws))
	for i, msg := range raws {
		var v T
		if err := json.Unmarshal(msg, &v); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("%s[%d]: %v", field, i, err))
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodeNote(msg json.RawMessage, ref time.Time) (store.Note, error) {
	var w wireNote
	if err := json.Unmarshal(msg, &w); err != nil {
		return store.Note{}, err
	}

	var n store.Note
	var err error
	if n.ID, err = wireInt(w.ID); err != nil {
		return store.Note{}, fmt.Errorf("id: %w", err)
	}
	if n.CustomerID, err = wireInt(w.CustomerID); err != nil {
		return store.Note{}, fmt.Errorf("customerId: %w", err)
	}
	number, err := wireInt(w.NoteNumber)
	if err != nil {
		return store.Note{}, fmt.Errorf("noteNumber: %w", err)
	}
	n.NoteNumber = int(number)
	n.SVG = w.SVG

	switch d := w.Date.(type) {
	case nil:
	case string:
		n.Date = d
	default:
		n.Date, _ = datenorm.Normalize(d, ref)
	}

	if t, ok := datenorm.Timestamp(w.CreatedAt, ref); ok {
		n.CreatedAt = t
	}
	if t, ok := datenorm.Timestamp(w.EditedDate, ref); ok {
		n.EditedDate = &t
	}
	if t, ok := datenorm.Timestamp(w.RestoredAt, ref); ok {
		n.RestoredAt = &t
	}
	return n, nil
}

// wireInt reads an id that may have been written as a float. Fractions are
// truncated.
func wireInt(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return 0, errors.New("out of range")
	}
	return int64(f), nil
}

// checkSchema unifies the document with the backup schema and returns the
// structural findings as warnings.
func checkSchema(doc []byte) []string {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Payload"))
	if err := schema.Err(); err != nil {
		return []string{fmt.Sprintf("schema check skipped: %v", err)}
	}

	v := ctx.CompileBytes(doc)
	if err := v.Err(); err != nil {
		return []string{fmt.Sprintf("schema check skipped: %v", err)}
	}

	err := schema.Unify(v).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out []string
	errs := cueerrors.Errors(err)
	for i, e := range errs {
		if i == maxSchemaWarnings {
			out = append(out, fmt.Sprintf("schema: %d more findings omitted", len(errs)-i))
			break
		}
		out = append(out, "schema: "+e.Error())
	}
	return out
}
