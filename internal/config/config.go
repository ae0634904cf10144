// Package config loads clientbook settings from defaults, an optional YAML
// file, an optional .env file and CLIENTBOOK_* environment variables, in
// that order of precedence (later wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CLIENTBOOK_"

// Config holds every setting.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Fallback FallbackConfig `yaml:"fallback"`
	Backup   BackupConfig   `yaml:"backup"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type FallbackConfig struct {
	Path                string `yaml:"path"`
	MaxNotesPerCustomer int    `yaml:"max_notes_per_customer"`
}

type BackupConfig struct {
	Dir             string `yaml:"dir"`
	ImageBatchSize  int    `yaml:"image_batch_size"`
	NoteChunkSize   int    `yaml:"note_chunk_size"`
	ImportChunkSize int    `yaml:"import_chunk_size"`
}

type ScheduleConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Reconcile   string `yaml:"reconcile"`
	DailyBackup string `yaml:"daily_backup"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "clientbook.db", BusyTimeoutMS: 5000},
		Fallback: FallbackConfig{Path: "clientbook-notes.json", MaxNotesPerCustomer: 50},
		Backup: BackupConfig{
			Dir:             "backups",
			ImageBatchSize:  5,
			NoteChunkSize:   50,
			ImportChunkSize: 5,
		},
		Schedule: ScheduleConfig{
			Enabled:     true,
			Reconcile:   "@every 1h",
			DailyBackup: "0 21 * * *",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it, a named file that does not exist is an error. A .env file
// in the working directory is read when present and never overrides
// variables already set in the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyEnv overrides cfg from variables found by lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DB_PATH":               &cfg.Database.Path,
		"FALLBACK_PATH":         &cfg.Fallback.Path,
		"BACKUP_DIR":            &cfg.Backup.Dir,
		"SCHEDULE_RECONCILE":    &cfg.Schedule.Reconcile,
		"SCHEDULE_DAILY_BACKUP": &cfg.Schedule.DailyBackup,
		"LOG_LEVEL":             &cfg.Log.Level,
		"LOG_FORMAT":            &cfg.Log.Format,
	}
	ints := map[string]*int{
		"DB_BUSY_TIMEOUT_MS":              &cfg.Database.BusyTimeoutMS,
		"FALLBACK_MAX_NOTES_PER_CUSTOMER": &cfg.Fallback.MaxNotesPerCustomer,
		"BACKUP_IMAGE_BATCH_SIZE":         &cfg.Backup.ImageBatchSize,
		"BACKUP_NOTE_CHUNK_SIZE":          &cfg.Backup.NoteChunkSize,
		"BACKUP_IMPORT_CHUNK_SIZE":        &cfg.Backup.ImportChunkSize,
	}
	bools := map[string]*bool{
		"SCHEDULE_ENABLED": &cfg.Schedule.Enabled,
	}

	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	for key, dst := range bools {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks required paths, batch sizes and schedules.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}
	if c.Fallback.MaxNotesPerCustomer < 0 {
		return fmt.Errorf("fallback.max_notes_per_customer must not be negative")
	}

	sizes := []struct {
		name string
		v    int
	}{
		{"backup.image_batch_size", c.Backup.ImageBatchSize},
		{"backup.note_chunk_size", c.Backup.NoteChunkSize},
		{"backup.import_chunk_size", c.Backup.ImportChunkSize},
	}
	for _, s := range sizes {
		if s.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", s.name, s.v)
		}
	}

	specs := []struct {
		name string
		v    string
	}{
		{"schedule.reconcile", c.Schedule.Reconcile},
		{"schedule.daily_backup", c.Schedule.DailyBackup},
	}
	for _, s := range specs {
		if _, err := cron.ParseStandard(s.v); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
