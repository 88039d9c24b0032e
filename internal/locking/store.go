// Package locking holds the read snapshots behind optimistic locking of
// writes: a write is only allowed when the file still hashes to what the
// agent last saw.
package locking

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/triage-ai/palisade/services/intent_guard/internal/contenthash"
)

// Key identifies one snapshot. Snapshots taken under one intent are not
// visible to another intent of the same session.
type Key struct {
	SessionID string
	IntentID  string
	RelPath   string
}

func (k Key) String() string {
	return k.SessionID + "::" + k.IntentID + "::" + k.RelPath
}

// Record is the hash observed when the file was last read.
type Record struct {
	Hash       string
	CapturedAt time.Time
	ToolName   string
}

// Store is an in-memory snapshot map. Entries never expire; they are
// removed only by ClearSession. Nothing is persisted.
type Store struct {
	mu      sync.RWMutex
	records map[Key]Record
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[Key]Record),
		now:     time.Now,
	}
}

// Get returns the snapshot for key.
func (s *Store) Get(key Key) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Set upserts the snapshot for key. Last write wins.
func (s *Store) Set(key Key, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
}

// ClearSession removes every snapshot of sessionID and returns how many
// were dropped.
func (s *Store) ClearSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.records {
		if k.SessionID == sessionID {
			delete(s.records, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Capture hashes the current content of key.RelPath under root and stores
// it. The store is untouched when the file cannot be read.
func (s *Store) Capture(root string, key Key, toolName string) error {
	hash, err := contenthash.File(AbsPath(root, key.RelPath))
	if err != nil {
		return err
	}
	s.Set(key, Record{Hash: hash, CapturedAt: s.now(), ToolName: toolName})
	return nil
}

// Freshness is the outcome of comparing a snapshot with the file on disk.
type Freshness int

const (
	Fresh Freshness = iota
	NoSnapshot
	Changed
	Unverifiable
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case NoSnapshot:
		return "no_snapshot"
	case Changed:
		return "changed"
	case Unverifiable:
		return "unverifiable"
	default:
		return "unknown"
	}
}

// Verify re-hashes the file and compares it with the stored snapshot.
func (s *Store) Verify(root string, key Key) Freshness {
	rec, ok := s.Get(key)
	if !ok {
		return NoSnapshot
	}
	current, err := contenthash.File(AbsPath(root, key.RelPath))
	if err != nil {
		return Unverifiable
	}
	if current != rec.Hash {
		return Changed
	}
	return Fresh
}

// AbsPath joins a workspace-relative slash path onto root.
func AbsPath(root, relPath string) string {
	return filepath.Join(root, filepath.FromSlash(relPath))
}
