package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"
)

// WriteFile writes p to path atomically.
func WriteFile(path string, p *Payload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write backup %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the backup at path. See Decode.
func ReadFile(path string) (*Payload, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// FileName returns the conventional file name for a backup taken at now.
// Lightweight backups are named per day so the daily job keeps one file.
func FileName(now time.Time, lightweight bool) string {
	now = now.UTC()
	if lightweight {
		return fmt.Sprintf("%s-daily-backup-%s.json", AppTag, now.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s-backup-%s.json", AppTag, now.Format("2006-01-02T150405Z"))
}
