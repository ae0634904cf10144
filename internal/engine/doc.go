// Package engine owns an open clientbook store and everything layered on
// it: the fallback note store, the notes service, backup export and import,
// and the scheduled jobs.
//
// An Engine is an explicit handle. Open one per process (or per test), pass
// it to whatever needs storage, and Close it when done. There is no package
// level state.
//
// Scheduled work:
//
//   - reconcile: notes.Reconciler.Run on Options.ReconcileSpec
//   - daily backup: a lightweight export into Options.BackupDir on
//     Options.DailyBackupSpec, skipped when today's backup already exists
//
// Both jobs run from Engine.Run, which blocks until its context is done.
// A job that is still running when its next tick fires is skipped.
package engine
