// Package achievements evaluates badge rules against domain events and
// records first-time unlocks. The (user, badge) uniqueness constraint is
// what makes unlocks idempotent; a conflict means "already unlocked" and is
// never an error.
package achievements

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"

	"agora/internal/achievements/models"
	"agora/internal/events"
	"agora/internal/platform/metrics"
)

type Store interface {
	Create(ctx context.Context, a models.Achievement) error
	ListByUser(ctx context.Context, userID id.UserID) ([]models.Achievement, error)
}

// Engine is the achievements observer.
type Engine struct {
	store   Store
	rules   map[events.Kind][]Rule
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRules overrides the default badge catalog (used by tests).
func WithRules(rules map[events.Kind][]Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		rules:  Catalog(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "achievements" }

// Update evaluates every rule declared for the event's kind and records
// the unlocks whose predicates hold.
func (e *Engine) Update(ctx context.Context, ev events.Event) error {
	for _, rule := range e.rules[ev.Kind] {
		user, achieved := rule.Predicate(ev)
		if !achieved || user.IsZero() {
			continue
		}
		err := e.store.Create(ctx, models.Achievement{
			ID:         id.AchievementID(uuid.New()),
			User:       user,
			Badge:      rule.Badge,
			UnlockedAt: ev.At,
		})
		if errors.Is(err, sentinel.ErrConflict) {
			e.logger.Info("badge already unlocked",
				"user", user.String(), "badge", string(rule.Badge))
			continue
		}
		if err != nil {
			return err
		}
		e.metrics.IncAchievementsUnlocked()
		e.logger.Info("badge unlocked", "user", user.String(), "badge", string(rule.Badge))
	}
	return nil
}

// ListByUser exposes a user's unlocked badges to the transport layer.
func (e *Engine) ListByUser(ctx context.Context, userID id.UserID) ([]models.Achievement, error) {
	out, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list achievements")
	}
	return out, nil
}
