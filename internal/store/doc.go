// Package store provides the SQLite-backed primary store for clientbook
// records: customers, appointments, images, notes and note versions.
//
// # Schema versions
//
// The schema version lives in PRAGMA user_version. Open upgrades a store in
// increasing version order inside one transaction:
//   - missing tables are created, existing ones are never altered
//   - notes, note_versions and settings are dropped and recreated when the
//     stored version is below 3 (their early shapes have no migration path)
//   - missing indexes on existing tables are added in place
//
// user_version is only stamped after every table and index expected at the
// target version has been verified.
//
// # Units of work
//
// All access goes through Run, which opens one SQL transaction over a
// declared set of collections in ReadOnly or ReadWrite mode. Touching an
// undeclared collection, writing in a read-only unit, or calling Run again
// from inside a body fails the unit.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - one open connection: units of work serialize
//   - "<path>.lock" flock: a second handle fails with ErrBlocked
//
// Timestamps are stored as fixed-width UTC text with millisecond precision
// so lexical order matches time order.
package store
