package backup

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/roach88/clientbook/internal/notes"
	"github.com/roach88/clientbook/internal/store"
)

// ExportOptions selects the export variant.
type ExportOptions struct {
	// IncludeImages adds every image. Without it the export is lightweight.
	IncludeImages bool
	// Chunked reads images in batches with a checkpoint between batches.
	Chunked bool
	// Progress receives updates. Optional.
	Progress ProgressFunc
}

// Stats counts what an export wrote and skipped.
type Stats struct {
	Customers     int `json:"customers"`
	Appointments  int `json:"appointments"`
	Notes         int `json:"notes"`
	Images        int `json:"images"`
	SkippedImages int `json:"skippedImages"`
}

// Exporter builds backup payloads from a store and its notes service.
type Exporter struct {
	st    *store.Store
	notes *notes.Service
	opts  options
}

// NewExporter returns an Exporter. notesSvc supplies notes merged from both
// locations.
func NewExporter(st *store.Store, notesSvc *notes.Service, opts ...Option) *Exporter {
	return &Exporter{st: st, notes: notesSvc, opts: buildOptions(opts)}
}

// ExportAll returns a full payload, reading all images in one pass.
func (e *Exporter) ExportAll(ctx context.Context) (*Payload, Stats, error) {
	return e.Export(ctx, ExportOptions{IncludeImages: true})
}

// ExportChunked returns a full payload, reading images in fixed-size
// batches and reporting progress between them.
func (e *Exporter) ExportChunked(ctx context.Context, progress ProgressFunc) (*Payload, Stats, error) {
	return e.Export(ctx, ExportOptions{IncludeImages: true, Chunked: true, Progress: progress})
}

// ExportLightweight returns a payload without images.
func (e *Exporter) ExportLightweight(ctx context.Context) (*Payload, Stats, error) {
	return e.Export(ctx, ExportOptions{})
}

type records struct {
	customers    []store.Customer
	appointments []store.Appointment
}

// Export builds a payload according to opts.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*Payload, Stats, error) {
	var stats Stats
	p := newPayload()
	p.Meta = Meta{
		App:         AppTag,
		Version:     e.st.SchemaVersion(),
		ExportedAt:  e.opts.now().UTC().Truncate(time.Millisecond),
		ExportID:    e.opts.ids.Generate(),
		Lightweight: !opts.IncludeImages,
	}
	log := e.opts.log.With().Str("export_id", p.Meta.ExportID).Logger()

	opts.Progress.report(0, "reading customers")
	recs, err := store.Run(ctx, e.st, []store.Collection{store.Customers, store.Appointments}, store.ReadOnly,
		func(tx *store.Tx) (records, error) {
			customers, err := tx.ListCustomers()
			if err != nil {
				return records{}, err
			}
			appts, err := tx.ListAppointments()
			if err != nil {
				return records{}, err
			}
			return records{customers: customers, appointments: appts}, nil
		})
	if err != nil {
		return nil, stats, fmt.Errorf("export: %w", err)
	}
	p.Customers, p.Appointments = recs.customers, recs.appointments
	stats.Customers, stats.Appointments = len(p.Customers), len(p.Appointments)

	opts.Progress.report(10, "reading notes")
	if p.CustomerNotes, err = e.notes.ExportNotes(ctx); err != nil {
		return nil, stats, fmt.Errorf("export: %w", err)
	}
	stats.Notes = p.NoteCount()

	if opts.IncludeImages {
		opts.Progress.report(20, "reading images")
		if opts.Chunked {
			err = e.chunkedImages(ctx, p, &stats, opts.Progress)
		} else {
			err = e.allImages(ctx, p, &stats)
		}
		if err != nil {
			return nil, stats, fmt.Errorf("export: %w", err)
		}
	}

	opts.Progress.report(100, "export complete")
	log.Info().
		Int("customers", stats.Customers).
		Int("appointments", stats.Appointments).
		Int("notes", stats.Notes).
		Int("images", stats.Images).
		Int("skipped_images", stats.SkippedImages).
		Bool("lightweight", p.Meta.Lightweight).
		Msg("export finished")
	return p, stats, nil
}

func (e *Exporter) allImages(ctx context.Context, p *Payload, stats *Stats) error {
	images, err := e.st.ListImages(ctx)
	if err != nil {
		return err
	}
	for _, img := range images {
		e.addImage(p, stats, img)
	}
	return nil
}

func (e *Exporter) chunkedImages(ctx context.Context, p *Payload, stats *Stats, progress ProgressFunc) error {
	total, err := e.st.CountImages(ctx)
	if err != nil {
		return err
	}

	var after int64
	done := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := e.st.ImagesAfter(ctx, after, e.opts.imageBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, img := range batch {
			e.addImage(p, stats, img)
		}
		after = batch[len(batch)-1].ID
		done += len(batch)

		progress.report(20+75*done/max(total, 1), fmt.Sprintf("exported %d of %d images", done, total))
		runtime.Gosched()
	}
}

// addImage appends img unless its content cannot be decoded.
func (e *Exporter) addImage(p *Payload, stats *Stats, img store.Image) {
	if _, _, err := img.Content(); err != nil {
		e.opts.log.Warn().Err(err).Int64("image_id", img.ID).Msg("skipping undecodable image")
		stats.SkippedImages++
		return
	}
	p.Images = append(p.Images, img)
	stats.Images++
}
