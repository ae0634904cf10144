package backup

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/roach88/clientbook/internal/datenorm"
	"github.com/roach88/clientbook/internal/fallback"
	"github.com/roach88/clientbook/internal/store"
)

// Mode selects how an import treats existing data.
type Mode string

const (
	// ModeMerge upserts payload records and leaves everything else alone.
	ModeMerge Mode = "merge"
	// ModeReplace wipes every collection first.
	ModeReplace Mode = "replace"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMerge, ModeReplace:
		return Mode(s), nil
	}
	return "", store.ValidationError("parse import mode", fmt.Errorf("unknown mode %q", s))
}

// ImportOptions controls Import.
type ImportOptions struct {
	Mode     Mode
	Progress ProgressFunc
}

// SkipReason records one payload record that was not imported.
type SkipReason struct {
	Kind   string `json:"kind"`
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// Result summarizes an import.
type Result struct {
	Mode         Mode         `json:"mode"`
	Customers    int          `json:"customers"`
	Appointments int          `json:"appointments"`
	Images       int          `json:"images"`
	Notes        int          `json:"notes"`
	Skipped      int          `json:"skipped"`
	Skips        []SkipReason `json:"skips"`
	Warnings     []string     `json:"warnings"`
}

func (r *Result) skip(kind string, id int64, reason string) {
	r.Skipped++
	r.Skips = append(r.Skips, SkipReason{Kind: kind, ID: id, Reason: reason})
}

// Importer writes backup payloads into a store. Primary keys in the payload
// are preserved.
type Importer struct {
	st   *store.Store
	fb   *fallback.Store
	opts options
}

// NewImporter returns an Importer. fb is wiped by replace-mode imports and
// receives notes when the store has no notes collection.
func NewImporter(st *store.Store, fb *fallback.Store, opts ...Option) *Importer {
	return &Importer{st: st, fb: fb, opts: buildOptions(opts)}
}

// Import writes p into the store. Each chunk of records is one unit of work
// and is checked against ctx before it starts. Records that cannot be
// written are skipped and counted; a failed unit aborts the import, leaving
// earlier chunks in place.
func (im *Importer) Import(ctx context.Context, p *Payload, opts ImportOptions) (Result, error) {
	if p == nil {
		return Result{}, store.ValidationError("import", errors.New("no payload"))
	}
	if opts.Mode == "" {
		opts.Mode = ModeMerge
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return Result{}, err
	}

	res := Result{Mode: opts.Mode, Skips: []SkipReason{}, Warnings: []string{}}
	log := im.opts.log.With().Str("mode", string(opts.Mode)).Logger()

	if p.Meta.App != AppTag {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unexpected app tag %q; importing anyway", p.Meta.App))
	}
	if p.Meta.Version > im.st.SchemaVersion() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("backup schema version %d is newer than store version %d",
			p.Meta.Version, im.st.SchemaVersion()))
	}

	noteList := flattenNotes(p.CustomerNotes)
	t := &tracker{
		progress: opts.Progress,
		total:    len(p.Customers) + len(p.Appointments) + len(p.Images) + len(noteList),
	}

	if opts.Mode == ModeReplace {
		t.progress.report(0, "clearing existing data")
		if err := im.st.ClearAll(ctx); err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		if err := im.fb.Clear(); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("fallback store not cleared: %v", err))
		}
	}

	steps := []func() error{
		func() error { return im.customers(ctx, p.Customers, &res, t) },
		func() error { return im.appointments(ctx, p.Appointments, &res, t) },
		func() error { return im.images(ctx, p.Images, &res, t) },
		func() error { return im.notes(ctx, noteList, &res, t) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
	}

	t.progress.report(100, "import complete")
	for _, w := range res.Warnings {
		log.Warn().Msg(w)
	}
	log.Info().
		Int("customers", res.Customers).
		Int("appointments", res.Appointments).
		Int("images", res.Images).
		Int("notes", res.Notes).
		Int("skipped", res.Skipped).
		Msg("import finished")
	return res, nil
}

// tracker turns record counts into progress reports.
type tracker struct {
	progress ProgressFunc
	total    int
	done     int
}

func (t *tracker) advance(n int, stage string) {
	t.done += n
	t.progress.report(100*t.done/max(t.total, 1), stage)
}

// chunks calls fn for each consecutive slice of at most size items,
// checking ctx and yielding between them.
func chunks[T any](ctx context.Context, items []T, size int, fn func([]T) error) error {
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(items))
		if err := fn(items[start:end]); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func (im *Importer) customers(ctx context.Context, customers []store.Customer, res *Result, t *tracker) error {
	return chunks(ctx, customers, im.opts.importChunkSize, func(chunk []store.Customer) error {
		written, err := store.Run(ctx, im.st, []store.Collection{store.Customers}, store.ReadWrite,
			func(tx *store.Tx) (int, error) {
				n := 0
				for _, c := range chunk {
					if c.ID == 0 {
						res.skip("customer", 0, "missing id")
						continue
					}
					if _, err := tx.PutCustomer(c); err != nil {
						if store.IsValidation(err) {
							res.skip("customer", c.ID, err.Error())
							continue
						}
						return 0, err
					}
					n++
				}
				return n, nil
			})
		if err != nil {
			return err
		}
		res.Customers += written
		t.advance(len(chunk), "importing customers")
		return nil
	})
}

func (im *Importer) appointments(ctx context.Context, appts []store.Appointment, res *Result, t *tracker) error {
	scope := []store.Collection{store.Customers, store.Appointments}
	return chunks(ctx, appts, im.opts.importChunkSize, func(chunk []store.Appointment) error {
		written, err := store.Run(ctx, im.st, scope, store.ReadWrite, func(tx *store.Tx) (int, error) {
			n := 0
			for _, a := range chunk {
				ok, err := tx.CustomerExists(a.CustomerID)
				if err != nil {
					return 0, err
				}
				if !ok {
					res.skip("appointment", a.ID, "customer not found")
					continue
				}
				if _, err := tx.PutAppointment(a); err != nil {
					if store.IsValidation(err) {
						res.skip("appointment", a.ID, err.Error())
						continue
					}
					return 0, err
				}
				n++
			}
			return n, nil
		})
		if err != nil {
			return err
		}
		res.Appointments += written
		t.advance(len(chunk), "importing appointments")
		return nil
	})
}

func (im *Importer) images(ctx context.Context, images []store.Image, res *Result, t *tracker) error {
	scope := []store.Collection{store.Customers, store.Images}
	return chunks(ctx, images, im.opts.importChunkSize, func(chunk []store.Image) error {
		written, err := store.Run(ctx, im.st, scope, store.ReadWrite, func(tx *store.Tx) (int, error) {
			n := 0
			for _, img := range chunk {
				ok, err := tx.CustomerExists(img.CustomerID)
				if err != nil {
					return 0, err
				}
				if !ok {
					res.skip("image", img.ID, "customer not found")
					continue
				}
				_, typ, err := img.Content()
				if err != nil {
					res.skip("image", img.ID, err.Error())
					continue
				}
				if img.Type == "" {
					img.Type = typ
				}
				if _, err := tx.PutImage(img); err != nil {
					if store.IsValidation(err) {
						res.skip("image", img.ID, err.Error())
						continue
					}
					return 0, err
				}
				n++
			}
			return n, nil
		})
		if err != nil {
			return err
		}
		res.Images += written
		t.advance(len(chunk), "importing images")
		return nil
	})
}

func (im *Importer) notes(ctx context.Context, list []store.Note, res *Result, t *tracker) error {
	if len(list) == 0 {
		return nil
	}
	now := im.opts.now()
	prepared := make([]store.Note, 0, len(list))
	for _, n := range list {
		if n.ID == 0 && n.SVG == "" {
			res.skip("note", 0, "no content and no id")
			t.advance(1, "importing notes")
			continue
		}
		n.Date = datenorm.OrNow(n.Date, now)
		prepared = append(prepared, n)
	}

	if !im.st.HasCollection(store.Notes) {
		res.Warnings = append(res.Warnings, "notes collection unavailable; notes written to the fallback store")
		if err := im.fb.PutAll(prepared); err != nil {
			for _, n := range prepared {
				res.skip("note", n.ID, err.Error())
			}
		} else {
			res.Notes += len(prepared)
		}
		t.advance(len(prepared), "importing notes")
		return nil
	}

	scope := []store.Collection{store.Customers, store.Notes}
	return chunks(ctx, prepared, im.opts.noteChunkSize, func(chunk []store.Note) error {
		written, err := store.Run(ctx, im.st, scope, store.ReadWrite, func(tx *store.Tx) (int, error) {
			n := 0
			for _, note := range chunk {
				ok, err := tx.CustomerExists(note.CustomerID)
				if err != nil {
					return 0, err
				}
				if !ok {
					res.skip("note", note.ID, "customer not found")
					continue
				}
				if _, err := tx.PutNote(note); err != nil {
					if store.IsValidation(err) {
						res.skip("note", note.ID, err.Error())
						continue
					}
					return 0, err
				}
				n++
			}
			return n, nil
		})
		if err != nil {
			return err
		}
		res.Notes += written
		t.advance(len(chunk), "importing notes")
		return nil
	})
}

// flattenNotes lists notes in customer id order, backfilling each note's
// customer id from its map key.
func flattenNotes(m map[int64][]store.Note) []store.Note {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var out []store.Note
	for _, k := range keys {
		for _, n := range m[k] {
			if n.CustomerID == 0 {
				n.CustomerID = k
			}
			out = append(out, n)
		}
	}
	return out
}
