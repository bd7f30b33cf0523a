// Package referendum provides referendum persistence. The memory store backs
// unit tests and single-process deployments; PostgresStore is the production
// implementation.
package referendum

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/referendum/models"
)

// MemoryStore is an in-memory referendum store guarded by a RWMutex. It
// enforces the same title uniqueness the postgres schema does.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.ReferendumID]*models.Referendum
	titles map[string]id.ReferendumID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[id.ReferendumID]*models.Referendum),
		titles: make(map[string]id.ReferendumID),
	}
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func clone(r *models.Referendum) *models.Referendum {
	cp := *r
	cp.Categories = append([]id.CategoryID(nil), r.Categories...)
	if r.PublicationDate != nil {
		d := *r.PublicationDate
		cp.PublicationDate = &d
	}
	if r.EventStart != nil {
		d := *r.EventStart
		cp.EventStart = &d
	}
	return &cp
}

func (s *MemoryStore) Create(_ context.Context, r *models.Referendum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := titleKey(r.Title)
	if _, taken := s.titles[key]; taken {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = clone(r)
	s.titles[key] = r.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, r *models.Referendum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	newKey := titleKey(r.Title)
	oldKey := titleKey(existing.Title)
	if newKey != oldKey {
		if _, taken := s.titles[newKey]; taken {
			return sentinel.ErrConflict
		}
		delete(s.titles, oldKey)
		s.titles[newKey] = r.ID
	}
	s.byID[r.ID] = clone(r)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, refID id.ReferendumID) (*models.Referendum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[refID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *MemoryStore) FindBySlug(_ context.Context, slug string) (*models.Referendum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.byID {
		if r.Slug == slug {
			return clone(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns all referendums, most recently created first.
func (s *MemoryStore) List(_ context.Context) ([]*models.Referendum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Referendum, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
