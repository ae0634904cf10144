// Package notes reconciles notes held in the primary store with copies in
// the fallback store: it detects corruption, conflicts and duplicates,
// recovers healthier copies, merges both locations for export, and runs the
// scheduled reconciliation job.
package notes

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/clientbook/internal/fallback"
	"github.com/roach88/clientbook/internal/ids"
	"github.com/roach88/clientbook/internal/store"
)

// Service operates on one primary store and one fallback store. Both are
// owned by the caller.
type Service struct {
	st  *store.Store
	fb  *fallback.Store
	log zerolog.Logger
	now func() time.Time
	ids ids.Generator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "notes").Logger() }
}

// WithClock overrides the wall clock used for restoration stamps and runs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the run id generator. Defaults to UUIDv7.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// New returns a Service over st and fb.
func New(st *store.Store, fb *fallback.Store, opts ...Option) *Service {
	s := &Service{
		st:  st,
		fb:  fb,
		log: zerolog.Nop(),
		now: time.Now,
		ids: ids.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fallbackNotes reads the fallback store, degrading to empty when it is
// unavailable.
func (s *Service) fallbackNotes() (map[int64][]store.Note, bool) {
	all, err := s.fb.All()
	if err != nil {
		s.log.Warn().Err(err).Msg("fallback store unavailable; continuing with primary only")
		return map[int64][]store.Note{}, false
	}
	return all, true
}

// primaryNotes returns every primary note, or nothing when the handle has
// no notes collection.
func (s *Service) primaryNotes(ctx context.Context) ([]store.Note, error) {
	if !s.st.HasCollection(store.Notes) {
		s.log.Warn().Int("schema_version", s.st.SchemaVersion()).Msg("notes collection unavailable")
		return []store.Note{}, nil
	}
	return s.st.ListNotes(ctx)
}
