package backup

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/clientbook/internal/ids"
)

// Default batch sizes. Each batch is one unit of work followed by a
// checkpoint, which bounds memory held per step.
const (
	DefaultImageBatchSize  = 5
	DefaultNoteChunkSize   = 50
	DefaultImportChunkSize = 5
)

type options struct {
	log             zerolog.Logger
	now             func() time.Time
	ids             ids.Generator
	imageBatchSize  int
	noteChunkSize   int
	importChunkSize int
}

func defaultOptions() options {
	return options{
		log:             zerolog.Nop(),
		now:             time.Now,
		ids:             ids.UUIDv7Generator{},
		imageBatchSize:  DefaultImageBatchSize,
		noteChunkSize:   DefaultNoteChunkSize,
		importChunkSize: DefaultImportChunkSize,
	}
}

// Option configures an Exporter or Importer.
type Option func(*options)

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l.With().Str("component", "backup").Logger() }
}

// WithClock overrides the wall clock used for export stamps and note dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides the export id generator. Defaults to UUIDv7.
func WithIDGenerator(g ids.Generator) Option {
	return func(o *options) { o.ids = g }
}

// WithImageBatchSize sets how many images a chunked export reads per step.
func WithImageBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.imageBatchSize = n
		}
	}
}

// WithNoteChunkSize sets how many notes an import writes per unit.
func WithNoteChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.noteChunkSize = n
		}
	}
}

// WithImportChunkSize sets how many customers, appointments or images an
// import writes per unit.
func WithImportChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.importChunkSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
