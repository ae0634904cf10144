package store

import (
	"context"
	"database/sql"
	"fmt"
)

const reconcileRunColumns = `id, run_id, version, started_at, finished_at,
	scanned, corrupted, conflicts, recovered, mirrored, trimmed`

func scanReconcileRun(rows *sql.Rows) (ReconcileRun, error) {
	var r ReconcileRun
	var started, finished string
	if err := rows.Scan(&r.ID, &r.RunID, &r.Version, &started, &finished,
		&r.Scanned, &r.Corrupted, &r.Conflicts, &r.Recovered, &r.Mirrored, &r.Trimmed); err != nil {
		return ReconcileRun{}, fmt.Errorf("scan reconcile run: %w", err)
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return ReconcileRun{}, fmt.Errorf("reconcile run %d started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return ReconcileRun{}, fmt.Errorf("reconcile run %d finished_at: %w", r.ID, err)
	}
	return r, nil
}

// RecordReconcileRun appends a run to the reconcile ledger.
func (s *Store) RecordReconcileRun(ctx context.Context, r ReconcileRun) (int64, error) {
	return Run(ctx, s, []Collection{ReconcileRuns}, ReadWrite, func(tx *Tx) (int64, error) {
		res, err := tx.exec(ReconcileRuns, `
			INSERT INTO reconcile_runs (run_id, version, started_at, finished_at,
				scanned, corrupted, conflicts, recovered, mirrored, trimmed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.RunID, r.Version, formatTime(r.StartedAt), formatTime(r.FinishedAt),
			r.Scanned, r.Corrupted, r.Conflicts, r.Recovered, r.Mirrored, r.Trimmed)
		if err != nil {
			return 0, fmt.Errorf("record reconcile run: %w", err)
		}
		return res.LastInsertId()
	})
}

// ReconcileRuns returns up to limit runs, newest first.
func (s *Store) ReconcileRuns(ctx context.Context, limit int) ([]ReconcileRun, error) {
	return Run(ctx, s, []Collection{ReconcileRuns}, ReadOnly, func(tx *Tx) ([]ReconcileRun, error) {
		rows, err := tx.query(ReconcileRuns, `
			SELECT `+reconcileRunColumns+` FROM reconcile_runs
			ORDER BY started_at DESC, id DESC LIMIT ?
		`, limit)
		if err != nil {
			return nil, fmt.Errorf("list reconcile runs: %w", err)
		}
		return collect(rows, scanReconcileRun)
	})
}
