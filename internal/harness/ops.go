package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/clientbook/internal/backup"
	"github.com/roach88/clientbook/internal/engine"
	"github.com/roach88/clientbook/internal/store"
)

// opFunc runs one scenario op. args is the step's args map.
type opFunc func(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error)

var ops = map[string]opFunc{
	"customer.create":         customerCreate,
	"customer.update":         customerUpdate,
	"customer.get":            customerGet,
	"customer.search":         customerSearch,
	"customer.delete":         customerDelete,
	"appointment.create":      appointmentCreate,
	"appointment.by_customer": appointmentsByCustomer,
	"image.add":               imageAdd,
	"note.create":             noteCreate,
	"note.update":             noteUpdate,
	"note.version":            noteVersion,
	"note.undo":               noteUndo,
	"note.delete":             noteDelete,
	"notes.scan":              notesScan,
	"notes.reconcile":         notesReconcile,
	"backup.roundtrip":        backupRoundtrip,
	"store.clear":             storeClear,
}

type idArgs struct {
	ID int64 `json:"id"`
}

type customerArgs struct {
	CustomerID int64 `json:"customerId"`
}

// decodeArgs maps generic args onto v through their JSON form, so args use
// the same field names as backups.
func decodeArgs(args map[string]any, v any) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func customerCreate(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var c store.Customer
	if err := decodeArgs(args, &c); err != nil {
		return nil, err
	}
	id, err := eng.CreateCustomer(ctx, c)
	if err != nil {
		return nil, err
	}
	return eng.GetCustomer(ctx, id)
}

// customerUpdate overlays args onto the stored customer named by args.id.
func customerUpdate(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	c, err := eng.GetCustomer(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := decodeArgs(args, &c); err != nil {
		return nil, err
	}
	return eng.UpdateCustomer(ctx, c)
}

func customerGet(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return eng.GetCustomer(ctx, in.ID)
}

func customerSearch(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return eng.SearchCustomers(ctx, in.Query)
}

func customerDelete(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := eng.DeleteCustomer(ctx, in.ID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": in.ID}, nil
}

func appointmentCreate(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var a store.Appointment
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	id, err := eng.Store().CreateAppointment(ctx, a)
	if err != nil {
		return nil, err
	}
	return eng.Store().GetAppointment(ctx, id)
}

func appointmentsByCustomer(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in customerArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return eng.Store().AppointmentsByCustomer(ctx, in.CustomerID)
}

// imageAdd stores one image. data is base64, as in a JSON []byte.
func imageAdd(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in struct {
		CustomerID int64  `json:"customerId"`
		Name       string `json:"name"`
		Type       string `json:"type"`
		Data       []byte `json:"data"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	ids, err := eng.Store().AddImages(ctx, in.CustomerID, []store.ImageUpload{
		{Name: in.Name, Type: in.Type, Data: in.Data},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"ids": ids}, nil
}

func noteCreate(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var n store.Note
	if err := decodeArgs(args, &n); err != nil {
		return nil, err
	}
	return eng.CreateNote(ctx, n)
}

// noteUpdate overlays args onto the stored note named by args.id.
func noteUpdate(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	n, err := eng.Store().GetNote(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := decodeArgs(args, &n); err != nil {
		return nil, err
	}
	return eng.UpdateNote(ctx, n)
}

func noteVersion(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return eng.Store().NoteVersion(ctx, in.ID)
}

func noteUndo(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	return eng.UndoNote(ctx, in.ID)
}

func noteDelete(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in idArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if err := eng.DeleteNote(ctx, in.ID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": in.ID}, nil
}

// notesScan reports how many notes fell into each scan bucket.
func notesScan(ctx context.Context, eng *engine.Engine, _ map[string]any) (any, error) {
	r, err := eng.ScanNotes(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"scanned":      r.Scanned,
		"healthy":      len(r.Healthy),
		"conflicting":  len(r.Conflicting),
		"corrupted":    len(r.Corrupted),
		"primaryOnly":  len(r.PrimaryOnly),
		"fallbackOnly": len(r.FallbackOnly),
		"duplicates":   len(r.Duplicates),
	}, nil
}

func notesReconcile(ctx context.Context, eng *engine.Engine, _ map[string]any) (any, error) {
	return eng.Reconcile(ctx)
}

// backupRoundtrip exports the store and imports the payload straight back
// with args.mode (merge by default).
func backupRoundtrip(ctx context.Context, eng *engine.Engine, args map[string]any) (any, error) {
	var in struct {
		Mode          string `json:"mode"`
		IncludeImages bool   `json:"includeImages"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	mode := backup.ModeMerge
	if in.Mode != "" {
		m, err := backup.ParseMode(in.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	p, _, err := eng.Export(ctx, backup.ExportOptions{IncludeImages: in.IncludeImages})
	if err != nil {
		return nil, err
	}
	return eng.Import(ctx, p, backup.ImportOptions{Mode: mode})
}

func storeClear(ctx context.Context, eng *engine.Engine, _ map[string]any) (any, error) {
	if err := eng.ClearAll(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"cleared": true}, nil
}
