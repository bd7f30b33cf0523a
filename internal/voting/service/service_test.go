package service

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"

	"agora/internal/events"
	refmodels "agora/internal/referendum/models"
	choicestore "agora/internal/referendum/store/choice"
	referendumstore "agora/internal/referendum/store/referendum"
	"agora/internal/voting/models"
	ballotstore "agora/internal/voting/store/ballot"
	tokenstore "agora/internal/voting/store/token"
)

// stubCitizens answers citizenship from a fixed set.
type stubCitizens struct {
	mu      sync.Mutex
	granted map[id.UserID]bool
}

func (c *stubCitizens) IsCitizen(_ context.Context, userID id.UserID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granted[userID], nil
}

func (c *stubCitizens) grant(userID id.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.granted == nil {
		c.granted = make(map[id.UserID]bool)
	}
	c.granted[userID] = true
}

type busRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *busRecorder) Notify(_ context.Context, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *busRecorder) last() (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return events.Event{}, false
	}
	return b.events[len(b.events)-1], true
}

type VotingServiceSuite struct {
	suite.Suite
	tokens      *tokenstore.MemoryStore
	ballots     *ballotstore.MemoryStore
	referendums *referendumstore.MemoryStore
	choices     *choicestore.MemoryStore
	citizens    *stubCitizens
	bus         *busRecorder
	service     *Service

	now    time.Time
	ctx    context.Context
	ref    *refmodels.Referendum
	choice refmodels.Choice
}

func TestVotingServiceSuite(t *testing.T) {
	suite.Run(t, new(VotingServiceSuite))
}

func (s *VotingServiceSuite) SetupTest() {
	s.tokens = tokenstore.NewMemory()
	s.ballots = ballotstore.NewMemory()
	s.referendums = referendumstore.NewMemory()
	s.choices = choicestore.NewMemory()
	s.citizens = &stubCitizens{}
	s.bus = &busRecorder{}
	s.service = New(s.tokens, s.ballots, s.referendums, s.choices, s.citizens,
		WithNotifier(s.bus))

	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	// A referendum whose vote window is open at s.now.
	pub := s.now.Add(-30 * 24 * time.Hour)
	start := s.now.Add(-time.Hour)
	s.ref = &refmodels.Referendum{
		ID:              id.ReferendumID(uuid.New()),
		Title:           "Ouvert au vote",
		Slug:            "ouvert-au-vote",
		Duration:        refmodels.Duration24h,
		Creator:         id.UserID(uuid.New()),
		CreatedAt:       pub,
		UpdatedAt:       pub,
		PublicationDate: &pub,
		EventStart:      &start,
	}
	s.Require().NoError(s.referendums.Create(s.ctx, s.ref))

	s.choice = refmodels.Choice{
		ID:         id.ChoiceID(uuid.New()),
		Referendum: s.ref.ID,
		Title:      "Oui",
	}
	s.Require().NoError(s.choices.Create(s.ctx, s.choice))
}

func (s *VotingServiceSuite) issueFor(userID id.UserID) string {
	s.citizens.grant(userID)
	credential, err := s.service.IssueToken(s.ctx, s.ref.ID, userID)
	s.Require().NoError(err)
	return credential
}

func (s *VotingServiceSuite) TestIssueToken() {
	s.Run("issues a credential to a citizen while voting is open", func() {
		user := id.UserID(uuid.New())
		credential := s.issueFor(user)
		s.NotEmpty(credential)

		ev, ok := s.bus.last()
		s.Require().True(ok)
		s.Equal(events.KindTokenSaved, ev.Kind)
		s.Require().NotNil(ev.Token)
		s.Equal(user, ev.Token.User)
		s.False(ev.Token.Redeemed)
	})

	s.Run("second issue returns the same credential", func() {
		user := id.UserID(uuid.New())
		first := s.issueFor(user)
		second, err := s.service.IssueToken(s.ctx, s.ref.ID, user)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("refuses a non-citizen", func() {
		_, err := s.service.IssueToken(s.ctx, s.ref.ID, id.UserID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("refuses before the vote window opens", func() {
		user := id.UserID(uuid.New())
		s.citizens.grant(user)
		early := requestcontext.WithTime(context.Background(), s.ref.EventStart.Add(-2*time.Hour))
		_, err := s.service.IssueToken(early, s.ref.ID, user)
		s.True(dErrors.HasCode(err, dErrors.CodeVotingClosed))
	})

	s.Run("refuses after the vote window closes", func() {
		user := id.UserID(uuid.New())
		s.citizens.grant(user)
		late := requestcontext.WithTime(context.Background(), s.now.Add(48*time.Hour))
		_, err := s.service.IssueToken(late, s.ref.ID, user)
		s.True(dErrors.HasCode(err, dErrors.CodeVotingClosed))
	})

	s.Run("unknown referendum", func() {
		user := id.UserID(uuid.New())
		s.citizens.grant(user)
		_, err := s.service.IssueToken(s.ctx, id.ReferendumID(uuid.New()), user)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *VotingServiceSuite) TestRedeem() {
	s.Run("exchanges the credential for one anonymous ballot", func() {
		credential := s.issueFor(id.UserID(uuid.New()))

		ballot, err := s.service.Redeem(s.ctx, credential, s.choice.ID)
		s.Require().NoError(err)
		s.Equal(s.choice.ID, ballot.Choice)

		n, err := s.ballots.CountByChoice(s.ctx, s.choice.ID)
		s.Require().NoError(err)
		s.Equal(1, n)

		ev, ok := s.bus.last()
		s.Require().True(ok)
		s.Equal(events.KindTokenSaved, ev.Kind)
		s.True(ev.Token.Redeemed)
	})

	s.Run("second redemption is rejected without a second ballot", func() {
		credential := s.issueFor(id.UserID(uuid.New()))
		_, err := s.service.Redeem(s.ctx, credential, s.choice.ID)
		s.Require().NoError(err)

		before, _ := s.ballots.CountByChoice(s.ctx, s.choice.ID)
		_, err = s.service.Redeem(s.ctx, credential, s.choice.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVoted))
		after, _ := s.ballots.CountByChoice(s.ctx, s.choice.ID)
		s.Equal(before, after)
	})

	s.Run("unknown credential", func() {
		_, err := s.service.Redeem(s.ctx, "no-such-credential", s.choice.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("choice from another referendum is rejected", func() {
		otherRef := &refmodels.Referendum{
			ID:       id.ReferendumID(uuid.New()),
			Title:    "Autre sujet",
			Slug:     "autre-sujet",
			Duration: refmodels.Duration24h,
			Creator:  id.UserID(uuid.New()),
		}
		s.Require().NoError(s.referendums.Create(s.ctx, otherRef))
		otherChoice := refmodels.Choice{
			ID:         id.ChoiceID(uuid.New()),
			Referendum: otherRef.ID,
			Title:      "Non",
		}
		s.Require().NoError(s.choices.Create(s.ctx, otherChoice))

		credential := s.issueFor(id.UserID(uuid.New()))
		_, err := s.service.Redeem(s.ctx, credential, otherChoice.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejected after the window closes even with a live token", func() {
		credential := s.issueFor(id.UserID(uuid.New()))
		late := requestcontext.WithTime(context.Background(), s.now.Add(48*time.Hour))
		_, err := s.service.Redeem(late, credential, s.choice.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeVotingClosed))
	})
}

// TestRedeemConcurrent hammers one credential from many goroutines: exactly
// one ballot must come out, everyone else gets already-voted.
func (s *VotingServiceSuite) TestRedeemConcurrent() {
	credential := s.issueFor(id.UserID(uuid.New()))

	const goroutines = 50
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Redeem(s.ctx, credential, s.choice.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVoted))
		}
	}
	s.Equal(1, succeeded)

	n, err := s.ballots.CountByChoice(s.ctx, s.choice.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

// TestBallotCarriesNoVoterLink pins the anonymity boundary at the type
// level: a ballot must never grow a user or token reference.
func (s *VotingServiceSuite) TestBallotCarriesNoVoterLink() {
	typ := reflect.TypeOf(models.Ballot{})
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		s.NotEqual(reflect.TypeOf(id.UserID{}), field.Type, "ballot field %s references a user", field.Name)
		s.NotEqual(reflect.TypeOf(id.TokenID{}), field.Type, "ballot field %s references a token", field.Name)
	}
}
