package metrics

import (
	"errors"
	"sync"
)

var ErrNoSnapshot = errors.New("no snapshot published yet")

// Store holds the latest Snapshot. One goroutine publishes, any number read.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	ok   bool
}

func NewStore() *Store {
	return &Store{}
}

// Publish replaces the stored snapshot as a whole.
func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.ok = true
	s.mu.Unlock()
}

// Read returns a copy of the latest snapshot.
func (s *Store) Read() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok {
		return Snapshot{}, ErrNoSnapshot
	}
	return s.snap, nil
}
