// Package permission persists the derived citizenship flag. The flag is a
// cache of "latest identity record is still valid"; the citizen service is
// the only writer and always writes a full recompute.
package permission

import (
	"context"
	"sync"
	"time"

	id "agora/pkg/domain"
)

type MemoryStore struct {
	mu      sync.RWMutex
	granted map[id.UserID]bool
}

func NewMemory() *MemoryStore {
	return &MemoryStore{granted: make(map[id.UserID]bool)}
}

// AcquireUser is the per-user serialization point during recompute. The
// memory store relies on the citizen service's keyed mutex instead, so this
// is a no-op.
func (s *MemoryStore) AcquireUser(context.Context, id.UserID) error { return nil }

// Set upserts the flag and reports whether the stored value changed.
func (s *MemoryStore) Set(_ context.Context, userID id.UserID, granted bool, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.granted[userID]
	s.granted[userID] = granted
	return !existed && granted || existed && prev != granted, nil
}

func (s *MemoryStore) IsGranted(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted[userID], nil
}
