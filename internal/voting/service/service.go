// Package service implements the anonymous single-use voting protocol:
// token issuance gated on citizenship, and the atomic exchange of a token
// credential for an anonymous ballot.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"

	"agora/internal/events"
	"agora/internal/platform/metrics"
	refmodels "agora/internal/referendum/models"
	"agora/internal/voting/models"
)

// credentialRetries bounds the generate-on-conflict loop. Collisions on 240
// bits of entropy mean the RNG is broken, not that we were unlucky.
const credentialRetries = 3

type TokenStore interface {
	Create(ctx context.Context, t *models.VoteToken) error
	FindByPair(ctx context.Context, refID id.ReferendumID, userID id.UserID) (*models.VoteToken, error)
	FindByCredential(ctx context.Context, credential string) (*models.VoteToken, error)
	MarkRedeemed(ctx context.Context, tokenID id.TokenID) error
}

type BallotStore interface {
	Create(ctx context.Context, b models.Ballot) error
}

type ReferendumStore interface {
	FindByID(ctx context.Context, refID id.ReferendumID) (*refmodels.Referendum, error)
}

type ChoiceStore interface {
	FindByID(ctx context.Context, choiceID id.ChoiceID) (refmodels.Choice, error)
}

// CitizenChecker answers whether a user currently holds the citizenship
// permission maintained by the citizen module.
type CitizenChecker interface {
	IsCitizen(ctx context.Context, userID id.UserID) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev events.Event)
}

type Service struct {
	tokens      TokenStore
	ballots     BallotStore
	referendums ReferendumStore
	choices     ChoiceStore
	citizens    CitizenChecker
	runner      tx.Runner
	bus         Notifier
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithNotifier(bus Notifier) Option {
	return func(s *Service) { s.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner sets the transaction boundary for redemption. Postgres
// deployments pass a SQLRunner; the default passthrough pairs with the
// memory stores, whose compare-and-set provides the same guarantee.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.runner = r }
}

func New(tokens TokenStore, ballots BallotStore, referendums ReferendumStore,
	choices ChoiceStore, citizens CitizenChecker, opts ...Option) *Service {
	s := &Service{
		tokens:      tokens,
		ballots:     ballots,
		referendums: referendums,
		choices:     choices,
		citizens:    citizens,
		runner:      tx.PassthroughRunner{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken hands out the voter card for (referendum, user). Requires the
// referendum to be in progress and the user to hold citizenship. Idempotent:
// a second call returns the already-issued credential.
func (s *Service) IssueToken(ctx context.Context, refID id.ReferendumID, userID id.UserID) (string, error) {
	now := requestcontext.Now(ctx)

	ref, err := s.referendums.FindByID(ctx, refID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "referendum not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referendum")
	}
	if !ref.IsInProgress(now) {
		return "", dErrors.New(dErrors.CodeVotingClosed, "voting is not open for this referendum")
	}

	citizen, err := s.citizens.IsCitizen(ctx, userID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check citizenship")
	}
	if !citizen {
		return "", dErrors.New(dErrors.CodeForbidden, "user does not hold the citizen permission")
	}

	if existing, err := s.tokens.FindByPair(ctx, refID, userID); err == nil {
		return existing.Credential, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up vote token")
	}

	tok, err := s.createWithFreshCredential(ctx, refID, userID)
	if err != nil {
		return "", err
	}

	s.metrics.IncTokensIssued()
	s.notifyToken(ctx, tok)
	return tok.Credential, nil
}

// createWithFreshCredential inserts a new token, relying on the store's
// unique constraints rather than a check-then-insert loop. A conflict is
// disambiguated by re-reading the pair: if another caller issued the pair's
// token concurrently we return theirs, otherwise the credential collided
// and we retry with a new draw.
func (s *Service) createWithFreshCredential(ctx context.Context, refID id.ReferendumID, userID id.UserID) (*models.VoteToken, error) {
	for attempt := 0; attempt < credentialRetries; attempt++ {
		credential, err := models.NewCredential()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate credential")
		}
		tok := &models.VoteToken{
			ID:         id.TokenID(uuid.New()),
			Referendum: refID,
			User:       userID,
			Credential: credential,
			CreatedAt:  requestcontext.Now(ctx),
		}
		err = s.tokens.Create(ctx, tok)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create vote token")
		}
		if existing, pairErr := s.tokens.FindByPair(ctx, refID, userID); pairErr == nil {
			return existing, nil
		}
		s.logger.Warn("credential collision, retrying", "attempt", attempt+1)
	}
	return nil, dErrors.New(dErrors.CodeInternal, "could not generate a unique credential")
}

// Redeem exchanges a credential for an anonymous ballot. The token read,
// the redeemed flip, and the ballot insert happen in one transaction with
// the token row locked; the flip is a compare-and-set, so concurrent
// redemptions of the same credential produce exactly one ballot. The ballot
// references only the choice — the (token, ballot) pairing exists solely in
// this call frame.
func (s *Service) Redeem(ctx context.Context, credential string, choiceID id.ChoiceID) (*models.Ballot, error) {
	now := requestcontext.Now(ctx)

	var (
		ballot *models.Ballot
		tok    *models.VoteToken
	)
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		tok, err = s.tokens.FindByCredential(ctx, credential)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeInvalidToken, "unknown vote token")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up vote token")
		}
		if tok.Redeemed {
			return dErrors.New(dErrors.CodeAlreadyVoted, "this token has already been used")
		}

		choice, err := s.choices.FindByID(ctx, choiceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "choice not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load choice")
		}
		if choice.Referendum != tok.Referendum {
			return dErrors.New(dErrors.CodeInvalidInput, "choice does not belong to the token's referendum")
		}

		ref, err := s.referendums.FindByID(ctx, tok.Referendum)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referendum")
		}
		if !ref.IsInProgress(now) {
			return dErrors.New(dErrors.CodeVotingClosed, "voting is not open for this referendum")
		}

		// CAS first: if we lose the race the ballot is never created.
		if err := s.tokens.MarkRedeemed(ctx, tok.ID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyVoted, "this token has already been used")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem token")
		}

		ballot = &models.Ballot{
			ID:     id.BallotID(uuid.New()),
			Choice: choiceID,
			CastAt: now,
		}
		if err := s.ballots.Create(ctx, *ballot); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record ballot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tok.Redeemed = true
	s.metrics.IncBallotsCast()
	s.notifyToken(ctx, tok)
	return ballot, nil
}

func (s *Service) notifyToken(ctx context.Context, tok *models.VoteToken) {
	if s.bus == nil {
		return
	}
	s.bus.Notify(ctx, events.Event{
		Kind: events.KindTokenSaved,
		At:   requestcontext.Now(ctx),
		Token: &events.TokenEvent{
			Referendum: tok.Referendum,
			User:       tok.User,
			Redeemed:   tok.Redeemed,
		},
	})
}
