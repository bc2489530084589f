// Package session keeps the validated snapshot owned by each browser session.
package session

import (
	"time"

	"github.com/google/uuid"

	"findash/internal/cache"
	"findash/internal/core"
)

// CookieName is the cookie carrying the session ID.
const CookieName = "findash_session"

// Store maps session IDs to immutable snapshots. Entries expire after the
// idle TTL; the least recently used session is dropped when the store is full.
type Store struct {
	snapshots *cache.LRUCache[*core.Snapshot]
}

// NewStore creates a store and registers it for periodic sweeping.
func NewStore(maxSessions int, idleTTL time.Duration, manager *cache.Manager) *Store {
	s := &Store{snapshots: cache.NewLRUCache[*core.Snapshot](maxSessions, idleTTL)}
	if manager != nil {
		manager.Register(s.snapshots)
	}
	return s
}

// NewID returns a fresh random session ID.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the form produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Put replaces the session's snapshot wholesale.
func (s *Store) Put(id string, snap *core.Snapshot) {
	s.snapshots.Set(id, snap)
}

// Get returns the session's snapshot or core.ErrNoSnapshot.
func (s *Store) Get(id string) (*core.Snapshot, error) {
	snap, ok := s.snapshots.Get(id)
	if !ok || snap == nil {
		return nil, core.ErrNoSnapshot
	}
	return snap, nil
}

// Drop forgets the session.
func (s *Store) Drop(id string) {
	s.snapshots.Delete(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.snapshots.Size()
}
