// Package identity persists identity validity records.
package identity

import (
	"context"
	"sync"
	"time"

	id "agora/pkg/domain"

	"agora/internal/citizen/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.IdentityID]models.IdentityRecord
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[id.IdentityID]models.IdentityRecord)}
}

func (s *MemoryStore) Create(_ context.Context, rec models.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// LatestValidUntil returns the furthest valid-until across the user's
// records; ok is false when the user has none.
func (s *MemoryStore) LatestValidUntil(_ context.Context, userID id.UserID) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest time.Time
		found  bool
	)
	for _, rec := range s.records {
		if rec.User == userID && (!found || rec.ValidUntil.After(latest)) {
			latest = rec.ValidUntil
			found = true
		}
	}
	return latest, found, nil
}

// OwnersOfExpired lists users holding at least one record expired at now.
func (s *MemoryStore) OwnersOfExpired(_ context.Context, now time.Time) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[id.UserID]bool)
	var out []id.UserID
	for _, rec := range s.records {
		if !rec.ValidUntil.After(now) && !seen[rec.User] {
			seen[rec.User] = true
			out = append(out, rec.User)
		}
	}
	return out, nil
}

// DeleteExpired removes all records expired at now and returns the affected
// owners so callers can recompute their permission.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) ([]id.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[id.UserID]bool)
	var out []id.UserID
	for recID, rec := range s.records {
		if !rec.ValidUntil.After(now) {
			delete(s.records, recID)
			if !seen[rec.User] {
				seen[rec.User] = true
				out = append(out, rec.User)
			}
		}
	}
	return out, nil
}
