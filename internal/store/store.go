package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is an open handle on the primary store. It is owned by whoever
// opened it and must be closed; there is no package-level connection.
type Store struct {
	db          *sql.DB
	path        string
	lock        *fileLock
	version     int
	collections map[Collection]bool

	busyTimeout int
	now         func() time.Time
	log         zerolog.Logger
	validate    *validator.Validate
	upgradeHook func(version int) error
}

// Option configures Open.
type Option func(*Store)

// WithSchemaVersion opens the store at a specific schema version instead of
// CurrentSchemaVersion.
func WithSchemaVersion(v int) Option {
	return func(s *Store) { s.version = v }
}

// WithClock overrides the wall clock used for createdAt/updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l.With().Str("component", "store").Logger() }
}

// WithBusyTimeout sets how long SQLite waits on a locked database, in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(s *Store) { s.busyTimeout = ms }
}

// withUpgradeHook runs after each applied schema step. Tests use it to
// inject upgrade failures.
func withUpgradeHook(fn func(version int) error) Option {
	return func(s *Store) { s.upgradeHook = fn }
}

// Open opens (creating if needed) the store at path and upgrades it to the
// requested schema version.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - busy timeout for lock contention (5s default)
//   - a single connection, so units of work serialize
//
// Open is idempotent. It fails with a KindOpen error if the file cannot be
// opened, another handle holds it (wrapping ErrBlocked), or the upgrade
// cannot complete.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, newError(KindOpen, "open store", errors.New("path is empty"))
	}

	s := &Store{
		path:        path,
		version:     CurrentSchemaVersion,
		busyTimeout: 5000,
		now:         time.Now,
		log:         zerolog.Nop(),
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != ":memory:" {
		lock, err := acquireLock(path + ".lock")
		if err != nil {
			return nil, newError(KindOpen, "open store", err)
		}
		s.lock = lock
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		_ = s.lock.release()
		return nil, newError(KindOpen, "open store", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		_ = s.lock.release()
		return nil, newError(KindOpen, "open store", fmt.Errorf("connect: %w", err))
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.applyPragmas(ctx); err != nil {
		s.Close()
		return nil, newError(KindOpen, "open store", err)
	}

	if err := s.migrate(ctx, s.version); err != nil {
		s.Close()
		return nil, newError(KindOpen, "open store", err)
	}

	cols, _ := expectedStructures(s.version)
	s.collections = make(map[Collection]bool, len(cols))
	for _, c := range cols {
		s.collections[c] = true
	}

	s.log.Debug().Str("path", path).Int("schema_version", s.version).Msg("store ready")
	return s, nil
}

// Close closes the database and releases the lock file. Safe to call twice.
func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	if lockErr := s.lock.release(); err == nil {
		err = lockErr
	}
	return err
}

// DB returns the underlying sql.DB for diagnostics.
// Use with caution - all data access should go through Run.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion returns the schema version this handle was opened at.
func (s *Store) SchemaVersion() int {
	return s.version
}

// HasCollection reports whether the collection exists at this handle's
// schema version.
func (s *Store) HasCollection(c Collection) bool {
	return s.collections[c]
}

// Now returns the store clock's current time, truncated to milliseconds.
func (s *Store) Now() time.Time {
	return truncate(s.now())
}

func (s *Store) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func (s *Store) check(op string, v any) error {
	if err := s.validate.Struct(v); err != nil {
		return ValidationError(op, err)
	}
	return nil
}
