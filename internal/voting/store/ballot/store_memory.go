// Package ballot persists anonymous ballots. The store surface is
// append-and-count only: there is no update, no delete, and no query that
// takes a user or token, which is what keeps ballots unlinkable.
package ballot

import (
	"context"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/voting/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	ballots map[id.BallotID]models.Ballot
}

func NewMemory() *MemoryStore {
	return &MemoryStore{ballots: make(map[id.BallotID]models.Ballot)}
}

func (s *MemoryStore) Create(_ context.Context, b models.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ballots[b.ID]; exists {
		return sentinel.ErrConflict
	}
	s.ballots[b.ID] = b
	return nil
}

func (s *MemoryStore) CountByChoice(_ context.Context, choiceID id.ChoiceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.ballots {
		if b.Choice == choiceID {
			n++
		}
	}
	return n, nil
}
