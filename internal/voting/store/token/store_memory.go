// Package token persists vote tokens. Both implementations refuse to move
// the redeemed flag backwards: MarkRedeemed is a strict false-to-true
// compare-and-set, so concurrent redemptions of one token admit one winner.
package token

import (
	"context"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"

	"agora/internal/voting/models"
)

type MemoryStore struct {
	mu           sync.RWMutex
	byID         map[id.TokenID]*models.VoteToken
	byCredential map[string]id.TokenID
	byPair       map[string]id.TokenID // referendum|user
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:         make(map[id.TokenID]*models.VoteToken),
		byCredential: make(map[string]id.TokenID),
		byPair:       make(map[string]id.TokenID),
	}
}

func pairKey(refID id.ReferendumID, userID id.UserID) string {
	return refID.String() + "|" + userID.String()
}

func (s *MemoryStore) Create(_ context.Context, t *models.VoteToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byCredential[t.Credential]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.byPair[pairKey(t.Referendum, t.User)]; taken {
		return sentinel.ErrConflict
	}
	cp := *t
	s.byID[t.ID] = &cp
	s.byCredential[t.Credential] = t.ID
	s.byPair[pairKey(t.Referendum, t.User)] = t.ID
	return nil
}

func (s *MemoryStore) FindByPair(_ context.Context, refID id.ReferendumID, userID id.UserID) (*models.VoteToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokenID, ok := s.byPair[pairKey(refID, userID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[tokenID]
	return &cp, nil
}

// FindByCredential looks a token up by its secret. The postgres variant
// locks the row when called inside a transaction; here the CAS in
// MarkRedeemed provides the equivalent guarantee.
func (s *MemoryStore) FindByCredential(_ context.Context, credential string) (*models.VoteToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokenID, ok := s.byCredential[credential]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[tokenID]
	return &cp, nil
}

// MarkRedeemed flips redeemed false→true. Returns ErrAlreadyUsed when the
// token was already spent — the downgrade path does not exist at all.
func (s *MemoryStore) MarkRedeemed(_ context.Context, tokenID id.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[tokenID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if t.Redeemed {
		return sentinel.ErrAlreadyUsed
	}
	t.Redeemed = true
	return nil
}
