package notes

import (
	"context"
	"fmt"

	"github.com/roach88/clientbook/internal/store"
)

// ReconcilerVersion is stamped on every recorded run. Bump it when the
// reconciliation rules change so old and new runs can be told apart.
const ReconcilerVersion = 1

// Reconciler is the scheduled job that keeps both note locations in step.
// Running it again on an unchanged store writes nothing but its run record.
type Reconciler struct {
	svc            *Service
	maxPerCustomer int
}

// NewReconciler returns a Reconciler that keeps at most maxPerCustomer
// notes per customer in the fallback store. Zero or less disables trimming.
func NewReconciler(svc *Service, maxPerCustomer int) *Reconciler {
	return &Reconciler{svc: svc, maxPerCustomer: maxPerCustomer}
}

// Run performs one pass: scan, recover corrupted copies, mirror notes held
// in a single location into the other, trim the fallback store, and record
// the run. Conflicts are reported but never resolved here.
func (r *Reconciler) Run(ctx context.Context) (store.ReconcileRun, error) {
	s := r.svc
	run := store.ReconcileRun{
		RunID:     s.ids.Generate(),
		Version:   ReconcilerVersion,
		StartedAt: s.now().UTC(),
	}
	log := s.log.With().Str("run_id", run.RunID).Logger()

	report, err := s.Scan(ctx)
	if err != nil {
		return run, fmt.Errorf("reconcile: %w", err)
	}
	run.Scanned = report.Scanned
	run.Corrupted = len(report.Corrupted)
	run.Conflicts = len(report.Conflicting)

	rec, err := s.Recover(ctx, report, RecoverOptions{})
	if err != nil {
		return run, fmt.Errorf("reconcile: %w", err)
	}
	run.Recovered = rec.Applied

	if report.FallbackAvailable {
		mirrored, err := r.mirror(ctx, report)
		if err != nil {
			return run, fmt.Errorf("reconcile: %w", err)
		}
		run.Mirrored = mirrored

		trimmed, err := s.fb.Trim(r.maxPerCustomer)
		if err != nil {
			log.Warn().Err(err).Msg("fallback trim failed")
		}
		run.Trimmed = trimmed
	} else {
		log.Warn().Msg("fallback store unavailable; skipping mirror and trim")
	}

	run.FinishedAt = s.now().UTC()
	if !s.st.HasCollection(store.ReconcileRuns) {
		log.Warn().Int("schema_version", s.st.SchemaVersion()).Msg("run ledger unavailable; run not recorded")
	} else {
		id, err := s.st.RecordReconcileRun(ctx, run)
		if err != nil {
			return run, fmt.Errorf("reconcile: %w", err)
		}
		run.ID = id
	}

	log.Info().
		Int("scanned", run.Scanned).
		Int("corrupted", run.Corrupted).
		Int("conflicts", run.Conflicts).
		Int("recovered", run.Recovered).
		Int("mirrored", run.Mirrored).
		Int("trimmed", run.Trimmed).
		Msg("reconcile run finished")
	return run, nil
}

// mirror copies healthy single-location notes into the other location.
// Primary notes are only mirrored when they would survive the fallback trim,
// otherwise every run would add and then drop them again.
func (r *Reconciler) mirror(ctx context.Context, report Report) (int, error) {
	s := r.svc
	mirrored := 0

	var toPrimary []store.Note
	for _, e := range report.FallbackOnly {
		if Healthy(*e.Fallback) {
			toPrimary = append(toPrimary, *e.Fallback)
		}
	}
	if len(toPrimary) > 0 && s.st.HasCollection(store.Notes) {
		n, err := s.putPrimary(ctx, toPrimary)
		if err != nil {
			return 0, err
		}
		mirrored += n
	}

	candidates := map[int64][]store.Note{}
	for _, e := range report.PrimaryOnly {
		if Healthy(*e.Primary) {
			candidates[e.CustomerID] = append(candidates[e.CustomerID], *e.Primary)
		}
	}
	if len(candidates) == 0 {
		return mirrored, nil
	}

	fbAll, err := s.fb.All()
	if err != nil {
		s.log.Warn().Err(err).Msg("fallback store unavailable; primary notes not mirrored")
		return mirrored, nil
	}

	var toFallback []store.Note
	for _, custID := range sortedKeys(candidates) {
		toFallback = append(toFallback, r.surviving(fbAll[custID], candidates[custID])...)
	}
	if len(toFallback) == 0 {
		return mirrored, nil
	}
	if err := s.fb.PutAll(toFallback); err != nil {
		s.log.Warn().Err(err).Int("notes", len(toFallback)).Msg("mirroring into fallback store failed")
		return mirrored, nil
	}
	return mirrored + len(toFallback), nil
}

// surviving returns the candidates that a trim to maxPerCustomer would keep
// once added to existing.
func (r *Reconciler) surviving(existing, candidates []store.Note) []store.Note {
	if r.maxPerCustomer <= 0 {
		return candidates
	}

	all := make([]store.Note, 0, len(existing)+len(candidates))
	all = append(all, existing...)
	all = append(all, candidates...)
	sortNotes(all)

	keep := all
	if len(keep) > r.maxPerCustomer {
		keep = keep[len(keep)-r.maxPerCustomer:]
	}
	kept := map[int64]bool{}
	for _, n := range keep {
		kept[n.ID] = true
	}

	out := []store.Note{}
	for _, n := range candidates {
		if kept[n.ID] {
			out = append(out, n)
		}
	}
	return out
}
