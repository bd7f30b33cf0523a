package comment

import (
	"context"
	"sort"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/engagement/models"
)

// MemoryStore keeps comments and their reports in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	comments map[id.CommentID]models.Comment
	reports  map[id.ReportID]models.Report
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		comments: make(map[id.CommentID]models.Comment),
		reports:  make(map[id.ReportID]models.Report),
	}
}

func (s *MemoryStore) Create(_ context.Context, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.comments[c.ID] = c
	return nil
}

func (s *MemoryStore) Update(_ context.Context, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.comments[c.ID] = c
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, commentID id.CommentID) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[commentID]
	if !ok {
		return models.Comment{}, sentinel.ErrNotFound
	}
	return c, nil
}

// ListVisibleByReferendum returns visible comments, oldest first.
func (s *MemoryStore) ListVisibleByReferendum(_ context.Context, referendumID id.ReferendumID) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Comment
	for _, c := range s.comments {
		if c.Referendum == referendumID && c.Visible {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateReport(_ context.Context, r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[r.Comment]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.reports[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.reports[r.ID] = r
	return nil
}
