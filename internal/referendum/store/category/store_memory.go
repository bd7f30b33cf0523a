// Package category persists referendum categories. Titles are unique, same
// as the postgres schema.
package category

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/referendum/models"
)

type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.CategoryID]models.Category
	titles map[string]id.CategoryID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[id.CategoryID]models.Category),
		titles: make(map[string]id.CategoryID),
	}
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (s *MemoryStore) Create(_ context.Context, c models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := titleKey(c.Title)
	if _, taken := s.titles[key]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.byID[c.ID]; taken {
		return sentinel.ErrConflict
	}
	s.byID[c.ID] = c
	s.titles[key] = c.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, catID id.CategoryID) (models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[catID]
	if !ok {
		return models.Category{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
