package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// testClock returns increasing timestamps one second apart.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// createTestStore opens a fresh store in a temp dir at the current schema.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithClock(newTestClock().Now)}, opts...)
	s, err := Open(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestCustomer(t *testing.T, s *Store, first, last string) int64 {
	t.Helper()
	id, err := s.CreateCustomer(context.Background(), Customer{FirstName: first, LastName: last})
	if err != nil {
		t.Fatalf("CreateCustomer() failed: %v", err)
	}
	return id
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

// longSVG returns an SVG document longer than the note health threshold.
func longSVG(label string) string {
	return `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="60"><text x="10" y="20">` +
		label + `</text><path d="M0 0 L10 10 L20 20"/></svg>`
}
