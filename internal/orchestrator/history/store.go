// Package history keeps a bounded log of accepted captures.
package history

import (
	"sync"
	"time"
)

// Entry is one accepted capture.
type Entry struct {
	At          time.Time `json:"at"`
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// Store holds the most recent entries in memory.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

// NewStore creates a store keeping at most maxEntries (minimum 1).
func NewStore(maxEntries int) *Store {
	maxEntries = max(maxEntries, 1)
	return &Store{entries: make([]Entry, 0, maxEntries), maxSize: maxEntries}
}

// Add records an accepted capture, evicting the oldest when full.
func (s *Store) Add(text, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{At: time.Now(), Text: text, Fingerprint: fingerprint})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
