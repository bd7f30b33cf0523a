//go:build integration

package token_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
	"agora/pkg/testutil/containers"

	"agora/internal/voting/models"
	"agora/internal/voting/store/token"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *token.PostgresStore
	refID    id.ReferendumID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = token.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "referendums"))

	// Tokens reference a referendum row.
	s.refID = id.ReferendumID(uuid.New())
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO referendums (id, title, slug, description, question,
			duration_seconds, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, '', '', 86399, $4, now(), now())`,
		uuid.UUID(s.refID), "Integration "+uuid.NewString(), "integration",
		uuid.New())
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newToken() *models.VoteToken {
	credential, err := models.NewCredential()
	s.Require().NoError(err)
	return &models.VoteToken{
		ID:         id.TokenID(uuid.New()),
		Referendum: s.refID,
		User:       id.UserID(uuid.New()),
		Credential: credential,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	tok := s.newToken()
	s.Require().NoError(s.store.Create(ctx, tok))

	byPair, err := s.store.FindByPair(ctx, tok.Referendum, tok.User)
	s.Require().NoError(err)
	s.Equal(tok.ID, byPair.ID)
	s.Equal(tok.Credential, byPair.Credential)
	s.False(byPair.Redeemed)

	byCredential, err := s.store.FindByCredential(ctx, tok.Credential)
	s.Require().NoError(err)
	s.Equal(tok.ID, byCredential.ID)

	_, err = s.store.FindByCredential(ctx, "no-such-credential")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPairUniqueness() {
	ctx := context.Background()
	tok := s.newToken()
	s.Require().NoError(s.store.Create(ctx, tok))

	dup := s.newToken()
	dup.User = tok.User
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestCredentialUniqueness() {
	ctx := context.Background()
	tok := s.newToken()
	s.Require().NoError(s.store.Create(ctx, tok))

	dup := s.newToken()
	dup.Credential = tok.Credential
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
}

// TestConcurrentMarkRedeemed verifies the compare-and-set: many concurrent
// redeemers of one token, exactly one winner.
func (s *PostgresStoreSuite) TestConcurrentMarkRedeemed() {
	ctx := context.Background()
	tok := s.newToken()
	s.Require().NoError(s.store.Create(ctx, tok))

	const goroutines = 20
	var wg sync.WaitGroup
	var won, lost atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.MarkRedeemed(ctx, tok.ID)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				lost.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), won.Load(), "exactly one redeem should win")
	s.Equal(int32(goroutines-1), lost.Load())

	after, err := s.store.FindByCredential(ctx, tok.Credential)
	s.Require().NoError(err)
	s.True(after.Redeemed)
}
