package like

import (
	"context"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/engagement/models"
)

type pairKey struct {
	referendum id.ReferendumID
	user       id.UserID
}

// MemoryStore keeps likes in memory, keyed by the (referendum, user) pair.
type MemoryStore struct {
	mu    sync.RWMutex
	likes map[pairKey]models.Like
}

func NewMemory() *MemoryStore {
	return &MemoryStore{likes: make(map[pairKey]models.Like)}
}

func (s *MemoryStore) Create(_ context.Context, l models.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{referendum: l.Referendum, user: l.User}
	if _, ok := s.likes[key]; ok {
		return sentinel.ErrConflict
	}
	s.likes[key] = l
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, referendumID id.ReferendumID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{referendum: referendumID, user: userID}
	if _, ok := s.likes[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.likes, key)
	return nil
}

func (s *MemoryStore) CountByReferendum(_ context.Context, referendumID id.ReferendumID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.likes {
		if key.referendum == referendumID {
			n++
		}
	}
	return n, nil
}
