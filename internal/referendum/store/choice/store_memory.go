// Package choice persists the votable options of a referendum.
package choice

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/referendum/models"
)

// MemoryStore enforces the (referendum, title) uniqueness the schema
// guarantees, so the default-choice bootstrap behaves identically in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.ChoiceID]models.Choice
	pairs map[string]id.ChoiceID // referendum|lower(title)
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[id.ChoiceID]models.Choice),
		pairs: make(map[string]id.ChoiceID),
	}
}

func pairKey(refID id.ReferendumID, title string) string {
	return refID.String() + "|" + strings.ToLower(strings.TrimSpace(title))
}

func (s *MemoryStore) Create(_ context.Context, c models.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(c.Referendum, c.Title)
	if _, taken := s.pairs[key]; taken {
		return sentinel.ErrConflict
	}
	s.byID[c.ID] = c
	s.pairs[key] = c.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, choiceID id.ChoiceID) (models.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[choiceID]
	if !ok {
		return models.Choice{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListByReferendum(_ context.Context, refID id.ReferendumID) ([]models.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Choice
	for _, c := range s.byID {
		if c.Referendum == refID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
