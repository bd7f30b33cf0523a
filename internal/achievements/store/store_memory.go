package store

import (
	"context"
	"sort"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/achievements/models"
)

// MemoryStore keeps unlocked achievements in memory. It enforces the same
// (user, badge) uniqueness the relational schema does.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.AchievementID]models.Achievement
	byPair map[pairKey]id.AchievementID
}

type pairKey struct {
	user  id.UserID
	badge models.Badge
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[id.AchievementID]models.Achievement),
		byPair: make(map[pairKey]id.AchievementID),
	}
}

func (s *MemoryStore) Create(_ context.Context, a models.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{user: a.User, badge: a.Badge}
	if _, ok := s.byPair[key]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byID[a.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[a.ID] = a
	s.byPair[key] = a.ID
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]models.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Achievement
	for _, a := range s.byID {
		if a.User == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out, nil
}
