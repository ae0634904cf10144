// Package fallback is the secondary note location: a single JSON document
// mapping customer ids to ordered note lists. It is an independent copy of
// record kept beside the primary store, not a cache of it.
package fallback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"

	"github.com/roach88/clientbook/internal/store"
)

// DocumentVersion is the on-disk document format version.
const DocumentVersion = 1

// Document is the on-disk shape of the fallback store.
type Document struct {
	Version       int                    `json:"version"`
	CustomerNotes map[int64][]store.Note `json:"customerNotes"`
}

// Store reads and writes the fallback document. Every mutation rewrites the
// whole file atomically. Safe for concurrent use within one process.
type Store struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l.With().Str("component", "fallback").Logger() }
}

// New returns a Store backed by the document at path. The file is created
// on first write. An empty path yields a store whose every operation reports
// store.KindRecoveryUnavailable.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// load reads the document. A missing file is an empty document.
func (s *Store) load(op string) (*Document, error) {
	if s.path == "" {
		return nil, store.RecoveryUnavailable(op, errors.New("fallback store not configured"))
	}

	doc := &Document{Version: DocumentVersion, CustomerNotes: map[int64][]store.Note{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, store.RecoveryUnavailable(op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, store.RecoveryUnavailable(op, fmt.Errorf("decode %s: %w", s.path, err))
	}
	if doc.CustomerNotes == nil {
		doc.CustomerNotes = map[int64][]store.Note{}
	}
	return doc, nil
}

func (s *Store) save(op string, doc *Document) error {
	for id, notes := range doc.CustomerNotes {
		if len(notes) == 0 {
			delete(doc.CustomerNotes, id)
		}
	}
	doc.Version = DocumentVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return store.RecoveryUnavailable(op, err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return store.RecoveryUnavailable(op, err)
	}
	return nil
}

// update loads the document, applies fn and writes it back when fn reports
// a change.
func (s *Store) update(op string, fn func(doc *Document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(op)
	if err != nil {
		return err
	}
	if !fn(doc) {
		return nil
	}
	return s.save(op, doc)
}

// All returns every customer's notes as stored, duplicates included.
func (s *Store) All() (map[int64][]store.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load("read fallback")
	if err != nil {
		return nil, err
	}
	return doc.CustomerNotes, nil
}

// CustomerNotes returns one customer's notes in stored order.
func (s *Store) CustomerNotes(customerID int64) ([]store.Note, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	notes := all[customerID]
	if notes == nil {
		notes = []store.Note{}
	}
	return notes, nil
}

// Put upserts n into its customer's list by note id. New notes append.
func (s *Store) Put(n store.Note) error {
	return s.update("put fallback note", func(doc *Document) bool {
		list := doc.CustomerNotes[n.CustomerID]
		for i := range list {
			if list[i].ID == n.ID {
				list[i] = n
				return true
			}
		}
		doc.CustomerNotes[n.CustomerID] = append(list, n)
		return true
	})
}

// PutAll upserts notes in one document rewrite.
func (s *Store) PutAll(notes []store.Note) error {
	if len(notes) == 0 {
		return nil
	}
	return s.update("put fallback notes", func(doc *Document) bool {
		for _, n := range notes {
			list := doc.CustomerNotes[n.CustomerID]
			replaced := false
			for i := range list {
				if list[i].ID == n.ID {
					list[i] = n
					replaced = true
					break
				}
			}
			if !replaced {
				list = append(list, n)
			}
			doc.CustomerNotes[n.CustomerID] = list
		}
		return true
	})
}

// DeleteNote removes every copy of noteID under customerID.
func (s *Store) DeleteNote(customerID, noteID int64) error {
	return s.update("delete fallback note", func(doc *Document) bool {
		list := doc.CustomerNotes[customerID]
		kept := list[:0]
		for _, n := range list {
			if n.ID != noteID {
				kept = append(kept, n)
			}
		}
		if len(kept) == len(list) {
			return false
		}
		doc.CustomerNotes[customerID] = kept
		return true
	})
}

// DeleteCustomer removes a customer's key.
func (s *Store) DeleteCustomer(customerID int64) error {
	return s.update("delete fallback customer", func(doc *Document) bool {
		if _, ok := doc.CustomerNotes[customerID]; !ok {
			return false
		}
		delete(doc.CustomerNotes, customerID)
		return true
	})
}

// Clear empties the document.
func (s *Store) Clear() error {
	return s.update("clear fallback", func(doc *Document) bool {
		doc.CustomerNotes = map[int64][]store.Note{}
		return true
	})
}

// Trim keeps at most max notes per customer, dropping the lowest-numbered
// (oldest) first, and returns how many were dropped.
func (s *Store) Trim(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	trimmed := 0
	err := s.update("trim fallback", func(doc *Document) bool {
		for id, list := range doc.CustomerNotes {
			if len(list) <= max {
				continue
			}
			sort.SliceStable(list, func(i, j int) bool {
				if list[i].NoteNumber != list[j].NoteNumber {
					return list[i].NoteNumber < list[j].NoteNumber
				}
				return list[i].ID < list[j].ID
			})
			drop := len(list) - max
			trimmed += drop
			doc.CustomerNotes[id] = list[drop:]
		}
		return trimmed > 0
	})
	if err != nil {
		return 0, err
	}
	if trimmed > 0 {
		s.log.Info().Int("trimmed", trimmed).Int("max_per_customer", max).Msg("trimmed fallback notes")
	}
	return trimmed, nil
}
