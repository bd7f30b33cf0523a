// Package service maintains the derived citizenship permission. The
// invariant:
//
//	granted(user) == exists(identity record for user with valid_until > now)
//
// Recompute is always eager and total — load the user's records, take the
// latest validity, grant or revoke — never an incremental patch, so
// re-running it is always safe. Event-driven recomputes (record created or
// deleted) keep the flag fresh under writes; the periodic sweeps cover pure
// time passage.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"

	"agora/internal/citizen/models"
	"agora/internal/citizen/permcache"
	"agora/internal/platform/metrics"
)

// DefaultIdentityValidity mirrors the ten-year validity of the identity
// documents the external checker accepts.
const DefaultIdentityValidity = 3653 * 24 * time.Hour

type IdentityStore interface {
	Create(ctx context.Context, rec models.IdentityRecord) error
	LatestValidUntil(ctx context.Context, userID id.UserID) (time.Time, bool, error)
	OwnersOfExpired(ctx context.Context, now time.Time) ([]id.UserID, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]id.UserID, error)
}

type PermissionStore interface {
	// AcquireUser serializes concurrent recomputes for one user inside the
	// surrounding transaction (postgres row lock; no-op in memory).
	AcquireUser(ctx context.Context, userID id.UserID) error
	// Set upserts the flag, reporting whether the stored value changed.
	Set(ctx context.Context, userID id.UserID, granted bool, at time.Time) (bool, error)
	IsGranted(ctx context.Context, userID id.UserID) (bool, error)
}

type Service struct {
	identities IdentityStore
	perms      PermissionStore
	runner     tx.Runner
	cache      *permcache.Cache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	validity   time.Duration

	// userLocks serializes in-process recomputes per user; the postgres row
	// lock covers cross-process races.
	userLocks sync.Map // id.UserID → *sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.runner = r }
}

func WithCache(c *permcache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithIdentityValidity overrides the default validity granted when the
// checker does not supply an expiry.
func WithIdentityValidity(d time.Duration) Option {
	return func(s *Service) { s.validity = d }
}

func New(identities IdentityStore, perms PermissionStore, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		perms:      perms,
		runner:     tx.PassthroughRunner{},
		logger:     slog.Default(),
		validity:   DefaultIdentityValidity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConfirmIdentity records a verified identity for the user and recomputes
// the permission. validUntil zero means "use the configured validity length
// from now" — the checker knows the document's delivery date, the platform
// knows how long documents stay acceptable.
func (s *Service) ConfirmIdentity(ctx context.Context, userID id.UserID, validUntil time.Time) (*models.IdentityRecord, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	now := requestcontext.Now(ctx)
	if validUntil.IsZero() {
		validUntil = now.Add(s.validity)
	}

	rec := models.IdentityRecord{
		ID:         id.IdentityID(uuid.New()),
		User:       userID,
		ValidUntil: validUntil,
		CreatedAt:  now,
	}
	if err := s.identities.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record identity")
	}
	if err := s.Recompute(ctx, userID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsCitizen answers the permission check, consulting the cache first.
func (s *Service) IsCitizen(ctx context.Context, userID id.UserID) (bool, error) {
	if granted, known, err := s.cache.Check(ctx, userID); err == nil && known {
		return granted, nil
	} else if err != nil {
		s.logger.Warn("permission cache check failed", "user", userID.String(), "error", err)
	}
	granted, err := s.perms.IsGranted(ctx, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read permission")
	}
	return granted, nil
}

// Recompute rebuilds the user's flag from their current identity records.
func (s *Service) Recompute(ctx context.Context, userID id.UserID) error {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	now := requestcontext.Now(ctx)
	var (
		latestValid time.Time
		granted     bool
		changed     bool
	)
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.perms.AcquireUser(ctx, userID); err != nil {
			return err
		}
		latest, found, err := s.identities.LatestValidUntil(ctx, userID)
		if err != nil {
			return err
		}
		latestValid = latest
		granted = found && latest.After(now)
		changed, err = s.perms.Set(ctx, userID, granted, now)
		return err
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to recompute citizenship")
	}

	s.syncCache(ctx, userID, granted, latestValid.Sub(now))
	if changed {
		if granted {
			s.metrics.IncPermissionsGranted()
			s.logger.Info("citizen permission granted", "user", userID.String())
		} else {
			s.metrics.IncPermissionsRevoked()
			s.logger.Info("citizen permission revoked", "user", userID.String())
		}
	}
	return nil
}

func (s *Service) syncCache(ctx context.Context, userID id.UserID, granted bool, remaining time.Duration) {
	var err error
	if granted {
		err = s.cache.Grant(ctx, userID, remaining)
	} else {
		err = s.cache.Revoke(ctx, userID)
	}
	if err != nil {
		s.logger.Warn("permission cache sync failed", "user", userID.String(), "error", err)
	}
}

// SweepExpiredPermissions recomputes the flag for every user holding an
// expired record. Covers revocations caused purely by time passing.
// Idempotent and safe to run concurrently with event-driven recomputes.
func (s *Service) SweepExpiredPermissions(ctx context.Context) error {
	now := requestcontext.Now(ctx)
	owners, err := s.identities.OwnersOfExpired(ctx, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired identities")
	}
	for _, userID := range owners {
		if err := s.Recompute(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpiredIdentities deletes expired records and recomputes the owners'
// flags. The recompute is defensive — a deleted record was already expired,
// so removal must never end up granting permission.
func (s *Service) PurgeExpiredIdentities(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	owners, err := s.identities.DeleteExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge identities")
	}
	for _, userID := range owners {
		if err := s.Recompute(ctx, userID); err != nil {
			return 0, err
		}
	}
	s.metrics.AddIdentitiesPurged(len(owners))
	return len(owners), nil
}

func (s *Service) lockFor(userID id.UserID) *sync.Mutex {
	mu, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
