// Package cache stores resolved secret values for the process lifetime.
//
// The consistency model is deliberately simple: entries are written once on
// first successful resolution and never updated or evicted, so a reference
// resolved twice in one process always observes the same value and the
// second lookup costs no network round trip. There is no TTL and no
// capacity bound, and nothing is ever written to durable storage. Whether
// long-lived processes resolving many distinct references need bounded
// growth is an open question, not an assumed requirement.
package cache

import (
	"sync"
	"time"

	"github.com/systmms/vaultfetch/internal/refs"
	"github.com/systmms/vaultfetch/internal/secure"
)

type entry struct {
	value      *secure.Value
	resolvedAt time.Time
}

// Store is a process-lifetime cache of resolved references. Safe for
// concurrent readers and writers. Values rest encrypted in memory.
type Store struct {
	mu      sync.RWMutex
	entries map[refs.Reference]entry
}

// NewStore creates an empty cache.
func NewStore() *Store {
	return &Store{entries: make(map[refs.Reference]entry)}
}

// Get returns the cached value for a reference, if this store resolved it
// earlier in the process lifetime.
func (s *Store) Get(ref refs.Reference) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[ref]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	value, err := e.value.Reveal()
	if err != nil {
		return "", false
	}
	return value, true
}

// Put stores a resolved value. The first writer wins: a reference already
// present keeps its original value, since resolved values are immutable for
// the process lifetime.
func (s *Store) Put(ref refs.Reference, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[ref]; exists {
		return
	}
	s.entries[ref] = entry{value: secure.NewValue(value), resolvedAt: time.Now()}
}

// Len reports how many references have been resolved so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ResolvedAt returns when a reference was first resolved.
func (s *Store) ResolvedAt(ref refs.Reference) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ref]
	if !ok {
		return time.Time{}, false
	}
	return e.resolvedAt, true
}
