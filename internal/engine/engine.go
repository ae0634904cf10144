package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/clientbook/internal/backup"
	"github.com/roach88/clientbook/internal/config"
	"github.com/roach88/clientbook/internal/fallback"
	"github.com/roach88/clientbook/internal/ids"
	"github.com/roach88/clientbook/internal/notes"
	"github.com/roach88/clientbook/internal/store"
)

// Options configures Open. Zero values fall back to config.Default().
type Options struct {
	DBPath              string
	FallbackPath        string
	BusyTimeoutMS       int
	SchemaVersion       int // target schema version; 0 means current
	MaxNotesPerCustomer int
	BackupDir           string
	ImageBatchSize      int
	NoteChunkSize       int
	ImportChunkSize     int
	ReconcileSpec       string
	DailyBackupSpec     string

	Logger zerolog.Logger
	Now    func() time.Time
	IDs    ids.Generator
}

// OptionsFromConfig maps loaded configuration onto Options.
func OptionsFromConfig(cfg config.Config, log zerolog.Logger) Options {
	return Options{
		DBPath:              cfg.Database.Path,
		FallbackPath:        cfg.Fallback.Path,
		BusyTimeoutMS:       cfg.Database.BusyTimeoutMS,
		MaxNotesPerCustomer: cfg.Fallback.MaxNotesPerCustomer,
		BackupDir:           cfg.Backup.Dir,
		ImageBatchSize:      cfg.Backup.ImageBatchSize,
		NoteChunkSize:       cfg.Backup.NoteChunkSize,
		ImportChunkSize:     cfg.Backup.ImportChunkSize,
		ReconcileSpec:       cfg.Schedule.Reconcile,
		DailyBackupSpec:     cfg.Schedule.DailyBackup,
		Logger:              log,
	}
}

func (o *Options) applyDefaults() {
	def := config.Default()
	if o.DBPath == "" {
		o.DBPath = def.Database.Path
	}
	if o.BusyTimeoutMS == 0 {
		o.BusyTimeoutMS = def.Database.BusyTimeoutMS
	}
	if o.BackupDir == "" {
		o.BackupDir = def.Backup.Dir
	}
	if o.ImageBatchSize == 0 {
		o.ImageBatchSize = def.Backup.ImageBatchSize
	}
	if o.NoteChunkSize == 0 {
		o.NoteChunkSize = def.Backup.NoteChunkSize
	}
	if o.ImportChunkSize == 0 {
		o.ImportChunkSize = def.Backup.ImportChunkSize
	}
	if o.ReconcileSpec == "" {
		o.ReconcileSpec = def.Schedule.Reconcile
	}
	if o.DailyBackupSpec == "" {
		o.DailyBackupSpec = def.Schedule.DailyBackup
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.IDs == nil {
		o.IDs = ids.UUIDv7Generator{}
	}
}

// Engine is an open clientbook store. Methods are safe to call from
// multiple goroutines; the underlying store serializes writes.
type Engine struct {
	opts Options
	log  zerolog.Logger

	st         *store.Store
	fb         *fallback.Store
	notes      *notes.Service
	reconciler *notes.Reconciler
	exporter   *backup.Exporter
	importer   *backup.Importer
}

// Open opens (creating and migrating as needed) the store at opts.DBPath.
// An empty FallbackPath runs without a fallback note store.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	opts.applyDefaults()
	log := opts.Logger

	storeOpts := []store.Option{
		store.WithLogger(log),
		store.WithClock(opts.Now),
		store.WithBusyTimeout(opts.BusyTimeoutMS),
	}
	if opts.SchemaVersion > 0 {
		storeOpts = append(storeOpts, store.WithSchemaVersion(opts.SchemaVersion))
	}
	st, err := store.Open(ctx, opts.DBPath, storeOpts...)
	if err != nil {
		return nil, err
	}

	fb := fallback.New(opts.FallbackPath, fallback.WithLogger(log))
	svc := notes.New(st, fb,
		notes.WithLogger(log),
		notes.WithClock(opts.Now),
		notes.WithIDGenerator(opts.IDs),
	)
	backupOpts := []backup.Option{
		backup.WithLogger(log),
		backup.WithClock(opts.Now),
		backup.WithIDGenerator(opts.IDs),
		backup.WithImageBatchSize(opts.ImageBatchSize),
		backup.WithNoteChunkSize(opts.NoteChunkSize),
		backup.WithImportChunkSize(opts.ImportChunkSize),
	}

	return &Engine{
		opts:       opts,
		log:        log.With().Str("component", "engine").Logger(),
		st:         st,
		fb:         fb,
		notes:      svc,
		reconciler: notes.NewReconciler(svc, opts.MaxNotesPerCustomer),
		exporter:   backup.NewExporter(st, svc, backupOpts...),
		importer:   backup.NewImporter(st, fb, backupOpts...),
	}, nil
}

// Close releases the store. Calling Close twice is safe.
func (e *Engine) Close() error {
	return e.st.Close()
}

// Store returns the primary store for repository operations that need no
// coordination with the fallback store.
func (e *Engine) Store() *store.Store { return e.st }

// Fallback returns the fallback note store.
func (e *Engine) Fallback() *fallback.Store { return e.fb }

// Notes returns the notes service.
func (e *Engine) Notes() *notes.Service { return e.notes }

// SchemaVersion reports the version the store was opened at.
func (e *Engine) SchemaVersion() int { return e.st.SchemaVersion() }

// CreateCustomer stores a new customer and returns its id.
func (e *Engine) CreateCustomer(ctx context.Context, c store.Customer) (int64, error) {
	return e.st.CreateCustomer(ctx, c)
}

// UpdateCustomer replaces an existing customer.
func (e *Engine) UpdateCustomer(ctx context.Context, c store.Customer) (store.Customer, error) {
	return e.st.UpdateCustomer(ctx, c)
}

// GetCustomer returns one customer.
func (e *Engine) GetCustomer(ctx context.Context, id int64) (store.Customer, error) {
	return e.st.GetCustomer(ctx, id)
}

// SearchCustomers matches query against names, contact number and social
// media name.
func (e *Engine) SearchCustomers(ctx context.Context, query string) ([]store.Customer, error) {
	return e.st.SearchCustomers(ctx, query)
}

// DeleteCustomer removes a customer with all of its appointments, images and
// notes in one unit, then drops the customer's fallback notes. The fallback
// step is best effort.
func (e *Engine) DeleteCustomer(ctx context.Context, id int64) error {
	if err := e.st.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	if err := e.fb.DeleteCustomer(id); err != nil {
		e.log.Warn().Err(err).Int64("customer_id", id).Msg("fallback notes not removed")
	}
	return nil
}

// CreateNote stores a new note. The reconcile job mirrors it into the
// fallback store.
func (e *Engine) CreateNote(ctx context.Context, n store.Note) (store.Note, error) {
	return e.st.CreateNote(ctx, n)
}

// UpdateNote replaces a note's content, retaining the previous content for
// one-step undo.
func (e *Engine) UpdateNote(ctx context.Context, n store.Note) (store.Note, error) {
	return e.st.UpdateNote(ctx, n)
}

// DeleteNote removes a note from both locations so the reconcile job does
// not bring it back.
func (e *Engine) DeleteNote(ctx context.Context, id int64) error {
	n, err := e.st.GetNote(ctx, id)
	if err != nil && !store.IsNotFound(err) {
		return err
	}
	if err == nil {
		if err := e.st.DeleteNote(ctx, id); err != nil {
			return err
		}
	}

	custID := n.CustomerID
	if custID == 0 {
		custID = e.fallbackOwner(id)
	}
	if custID == 0 {
		return nil
	}
	if err := e.fb.DeleteNote(custID, id); err != nil {
		e.log.Warn().Err(err).Int64("note_id", id).Msg("fallback note not removed")
	}
	return nil
}

func (e *Engine) fallbackOwner(noteID int64) int64 {
	all, err := e.fb.All()
	if err != nil {
		return 0
	}
	for custID, list := range all {
		for _, n := range list {
			if n.ID == noteID {
				return custID
			}
		}
	}
	return 0
}

// UndoNote restores a note's retained previous version. It returns nil when
// no version is retained.
func (e *Engine) UndoNote(ctx context.Context, id int64) (*store.Note, error) {
	return e.st.RestorePreviousVersion(ctx, id)
}

// ClearAll wipes every collection and the fallback store.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := e.st.ClearAll(ctx); err != nil {
		return err
	}
	if err := e.fb.Clear(); err != nil {
		e.log.Warn().Err(err).Msg("fallback store not cleared")
	}
	e.log.Info().Msg("all data cleared")
	return nil
}

// Export builds a backup payload.
func (e *Engine) Export(ctx context.Context, opts backup.ExportOptions) (*backup.Payload, backup.Stats, error) {
	return e.exporter.Export(ctx, opts)
}

// WriteBackup exports and writes the payload to path atomically.
func (e *Engine) WriteBackup(ctx context.Context, path string, opts backup.ExportOptions) (backup.Stats, error) {
	p, stats, err := e.exporter.Export(ctx, opts)
	if err != nil {
		return stats, err
	}
	if err := backup.WriteFile(path, p); err != nil {
		return stats, err
	}
	e.log.Info().Str("path", path).Int("customers", stats.Customers).Int("notes", stats.Notes).
		Int("images", stats.Images).Msg("backup written")
	return stats, nil
}

// Import writes a decoded payload into the store.
func (e *Engine) Import(ctx context.Context, p *backup.Payload, opts backup.ImportOptions) (backup.Result, error) {
	return e.importer.Import(ctx, p, opts)
}

// ImportFileOptions controls ImportFile.
type ImportFileOptions struct {
	Mode backup.Mode
	// Customers restricts the import to these customer ids when non-empty.
	Customers []int64
	// Related selects the related records kept for Customers. The zero
	// value keeps everything.
	Related  *backup.FilterOptions
	Progress backup.ProgressFunc
}

// ImportFile reads the backup at path and imports it. Decode warnings are
// returned in Result.Warnings ahead of import warnings.
func (e *Engine) ImportFile(ctx context.Context, path string, opts ImportFileOptions) (backup.Result, error) {
	p, warnings, err := backup.ReadFile(path)
	if err != nil {
		return backup.Result{}, err
	}
	if len(opts.Customers) > 0 {
		related := backup.AllRelated
		if opts.Related != nil {
			related = *opts.Related
		}
		p = backup.FilterCustomers(p, opts.Customers, related)
	}

	res, err := e.importer.Import(ctx, p, backup.ImportOptions{Mode: opts.Mode, Progress: opts.Progress})
	res.Warnings = append(warnings, res.Warnings...)
	if err != nil {
		return res, err
	}
	for _, w := range warnings {
		e.log.Warn().Str("path", path).Msg(w)
	}
	return res, nil
}

// ScanNotes classifies every note across both locations.
func (e *Engine) ScanNotes(ctx context.Context) (notes.Report, error) {
	return e.notes.Scan(ctx)
}

// RecoverNotes scans and then repairs corrupted copies. With dryRun set,
// nothing is written.
func (e *Engine) RecoverNotes(ctx context.Context, dryRun bool) (notes.Report, notes.RecoverResult, error) {
	report, err := e.notes.Scan(ctx)
	if err != nil {
		return notes.Report{}, notes.RecoverResult{}, err
	}
	res, err := e.notes.Recover(ctx, report, notes.RecoverOptions{DryRun: dryRun})
	return report, res, err
}

// RestoreNotesFromFile restores absent or corrupted notes from the backup
// at path.
func (e *Engine) RestoreNotesFromFile(ctx context.Context, path string) (notes.RestoreResult, error) {
	p, _, err := backup.ReadFile(path)
	if err != nil {
		return notes.RestoreResult{}, err
	}
	return e.notes.RestoreFromBackup(ctx, p.CustomerNotes)
}

// ResolveConflict keeps one copy of a conflicting note.
func (e *Engine) ResolveConflict(ctx context.Context, noteID int64, keep notes.Location) (store.Note, error) {
	return e.notes.ResolveConflict(ctx, noteID, keep)
}

// MigrateLegacyNotes converts inline rich-text customer notes into notes.
func (e *Engine) MigrateLegacyNotes(ctx context.Context) (notes.LegacyResult, error) {
	return e.notes.MigrateLegacyNotes(ctx)
}

// Reconcile runs one pass of the reconcile job.
func (e *Engine) Reconcile(ctx context.Context) (store.ReconcileRun, error) {
	return e.reconciler.Run(ctx)
}

// ReconcileRuns returns the most recent recorded runs, newest first.
func (e *Engine) ReconcileRuns(ctx context.Context, limit int) ([]store.ReconcileRun, error) {
	if !e.st.HasCollection(store.ReconcileRuns) {
		return []store.ReconcileRun{}, nil
	}
	return e.st.ReconcileRuns(ctx, limit)
}

// lastBackupAt returns the recorded time of the last daily backup.
func (e *Engine) lastBackupAt(ctx context.Context) (time.Time, bool, error) {
	if !e.st.HasCollection(store.Settings) {
		return time.Time{}, false, nil
	}
	v, ok, err := e.st.Setting(ctx, store.SettingLastBackupAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		e.log.Warn().Str("value", v).Msg("unreadable last backup time; treating as never")
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// NeedsDailyBackup reports whether no backup has been recorded on now's
// calendar day (in now's location).
func (e *Engine) NeedsDailyBackup(ctx context.Context, now time.Time) (bool, error) {
	last, ok, err := e.lastBackupAt(ctx)
	if err != nil {
		return false, fmt.Errorf("needs daily backup: %w", err)
	}
	if !ok {
		return true, nil
	}
	last = last.In(now.Location())
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	return ly != ny || lm != nm || ld != nd, nil
}
