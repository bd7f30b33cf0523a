// Package service implements the referendum lifecycle: creation with
// default-choice bootstrap, state-gated updates, and vote tallying.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
	"agora/pkg/platform/tx"
	"agora/pkg/requestcontext"

	"agora/internal/events"
	"agora/internal/platform/metrics"
	"agora/internal/referendum/models"
)

// DefaultMinEventStartDelay is the minimum gap between publication and vote
// start when not configured otherwise.
const DefaultMinEventStartDelay = 15 * 24 * time.Hour

type ReferendumStore interface {
	Create(ctx context.Context, r *models.Referendum) error
	Update(ctx context.Context, r *models.Referendum) error
	FindByID(ctx context.Context, refID id.ReferendumID) (*models.Referendum, error)
	FindBySlug(ctx context.Context, slug string) (*models.Referendum, error)
	List(ctx context.Context) ([]*models.Referendum, error)
}

type CategoryStore interface {
	Create(ctx context.Context, c models.Category) error
	FindByID(ctx context.Context, catID id.CategoryID) (models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
}

type ChoiceStore interface {
	Create(ctx context.Context, c models.Choice) error
	FindByID(ctx context.Context, choiceID id.ChoiceID) (models.Choice, error)
	ListByReferendum(ctx context.Context, refID id.ReferendumID) ([]models.Choice, error)
}

// BallotCounter is the slice of the ballot store tallying needs.
type BallotCounter interface {
	CountByChoice(ctx context.Context, choiceID id.ChoiceID) (int, error)
}

// Notifier publishes domain events after a mutation commits.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event)
}

type Service struct {
	referendums ReferendumStore
	categories  CategoryStore
	choices     ChoiceStore
	ballots     BallotCounter
	bus         Notifier
	logger      *slog.Logger
	metrics     *metrics.Metrics
	runner      tx.Runner
	minDelay    time.Duration
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

// WithMinEventStartDelay overrides the minimum publication-to-start delay.
func WithMinEventStartDelay(d time.Duration) Option {
	return func(s *Service) { s.minDelay = d }
}

// WithTxRunner makes the referendum row and its category links commit as
// one transaction on stores that join a ctx transaction.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.runner = r }
}

func New(referendums ReferendumStore, categories CategoryStore, choices ChoiceStore, ballots BallotCounter, opts ...Option) *Service {
	s := &Service{
		referendums: referendums,
		categories:  categories,
		choices:     choices,
		ballots:     ballots,
		logger:      slog.Default(),
		runner:      tx.PassthroughRunner{},
		minDelay:    DefaultMinEventStartDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the caller-editable attributes of a new referendum.
type CreateRequest struct {
	Title       string
	Description string
	Question    string
	Categories  []id.CategoryID
	Creator     id.UserID
}

// Create persists a draft referendum and bootstraps its default choice set.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Referendum, error) {
	now := requestcontext.Now(ctx)
	r := &models.Referendum{
		ID:          id.ReferendumID(uuid.New()),
		Title:       req.Title,
		Slug:        models.Slugify(req.Title),
		Description: req.Description,
		Question:    req.Question,
		Categories:  req.Categories,
		Duration:    models.Duration24h,
		Creator:     req.Creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Creator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "creator is required")
	}
	if err := r.Validate(now, s.minDelay); err != nil {
		return nil, err
	}
	if err := s.resolveCategories(ctx, r.Categories); err != nil {
		return nil, err
	}

	// The referendum row and its category links land in one transaction so
	// a failed link insert never strands a half-created referendum.
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.referendums.Create(ctx, r)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "referendum title must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create referendum")
	}

	s.bootstrapDefaultChoices(ctx, r.ID)
	s.metrics.IncReferendumsCreated()
	s.notifySaved(ctx, r)
	return r, nil
}

// bootstrapDefaultChoices creates the configured default choice set.
// Idempotent: a concurrent or repeated bootstrap hits the (referendum,
// title) constraint and the conflict is treated as already-done.
func (s *Service) bootstrapDefaultChoices(ctx context.Context, refID id.ReferendumID) {
	for _, title := range models.DefaultChoiceTitles {
		err := s.choices.Create(ctx, models.Choice{
			ID:         id.ChoiceID(uuid.New()),
			Referendum: refID,
			Title:      title,
		})
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.Info("default choice already exists",
				"referendum", refID.String(), "choice", title)
			continue
		}
		if err != nil {
			s.logger.Error("failed to create default choice",
				"referendum", refID.String(), "choice", title, "error", err)
		}
	}
}

// UpdateRequest carries a partial update; nil fields were not supplied.
// CategoriesSet distinguishes "replace with empty set" from "not supplied".
type UpdateRequest struct {
	Title           *string
	Description     *string
	Question        *string
	Categories      []id.CategoryID
	CategoriesSet   bool
	PublicationDate *time.Time
	EventStart      *time.Time
	Duration        *models.Duration
}

// Update applies req under the lifecycle rules. The permitted-field set is
// computed from the persisted row as it was before this write, so a single
// request cannot combine the permissions of two states. Fields outside the
// set are discarded with a warning; an in-progress or finished referendum
// rejects the write outright.
func (s *Service) Update(ctx context.Context, refID id.ReferendumID, req UpdateRequest) (*models.Referendum, error) {
	now := requestcontext.Now(ctx)

	snapshot, err := s.referendums.FindByID(ctx, refID)
	if err != nil {
		return nil, translateNotFound(err, "referendum")
	}

	state := snapshot.StateAt(now)
	if state == models.StateInProgress || state == models.StateOver {
		return nil, dErrors.Newf(dErrors.CodeInvalidState,
			"referendum is %s and can no longer be updated", state)
	}

	permitted := make(map[models.Field]bool)
	for _, f := range snapshot.UpdatableFields(now) {
		permitted[f] = true
	}

	updated := *snapshot
	updated.Categories = append([]id.CategoryID(nil), snapshot.Categories...)

	apply := func(field models.Field, supplied bool, fn func()) {
		if !supplied {
			return
		}
		if !permitted[field] {
			s.logger.Warn("discarding field not updatable in current state",
				"referendum", refID.String(), "state", string(state), "field", string(field))
			return
		}
		fn()
	}

	apply(models.FieldTitle, req.Title != nil, func() { updated.Title = *req.Title })
	apply(models.FieldDescription, req.Description != nil, func() { updated.Description = *req.Description })
	apply(models.FieldQuestion, req.Question != nil, func() { updated.Question = *req.Question })
	apply(models.FieldCategories, req.CategoriesSet, func() { updated.Categories = req.Categories })
	apply(models.FieldPublicationDate, req.PublicationDate != nil, func() { updated.PublicationDate = req.PublicationDate })
	apply(models.FieldEventStart, req.EventStart != nil, func() { updated.EventStart = req.EventStart })
	apply(models.FieldDuration, req.Duration != nil, func() { updated.Duration = *req.Duration })

	updated.UpdatedAt = now
	if err := updated.Validate(now, s.minDelay); err != nil {
		return nil, err
	}
	if err := s.resolveCategories(ctx, updated.Categories); err != nil {
		return nil, err
	}

	// Same transaction boundary as Create: the category links are replaced
	// wholesale, so a partial failure must roll the row write back too.
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.referendums.Update(ctx, &updated)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "referendum title must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update referendum")
	}

	s.notifySaved(ctx, &updated)
	return &updated, nil
}

func (s *Service) Get(ctx context.Context, refID id.ReferendumID) (*models.Referendum, error) {
	r, err := s.referendums.FindByID(ctx, refID)
	if err != nil {
		return nil, translateNotFound(err, "referendum")
	}
	return r, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Referendum, error) {
	r, err := s.referendums.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateNotFound(err, "referendum")
	}
	return r, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Referendum, error) {
	out, err := s.referendums.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list referendums")
	}
	return out, nil
}

// CreateCategory registers a theme referendums can be filed under.
func (s *Service) CreateCategory(ctx context.Context, title string) (models.Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Category{}, dErrors.New(dErrors.CodeInvalidInput, "category title is required")
	}
	c := models.Category{
		ID:    id.CategoryID(uuid.New()),
		Title: title,
		Slug:  models.Slugify(title),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Category{}, dErrors.New(dErrors.CodeConflict, "category title must be unique")
		}
		return models.Category{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create category")
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	out, err := s.categories.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	return out, nil
}

// resolveCategories rejects references to categories that do not exist,
// before any write. The postgres join table enforces the same thing with a
// foreign key; checking here keeps the memory store honest and turns the
// violation into an input error instead of a failed transaction.
func (s *Service) resolveCategories(ctx context.Context, cats []id.CategoryID) error {
	for _, cat := range cats {
		if _, err := s.categories.FindByID(ctx, cat); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeInvalidInput, "unknown category %s", cat)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category")
		}
	}
	return nil
}

// ChoiceResult is one line of a tally.
type ChoiceResult struct {
	Choice     models.Choice
	Count      int
	Percentage float64
}

// TallyResult is the full result sheet of a referendum.
type TallyResult struct {
	Referendum id.ReferendumID
	Total      int
	Choices    []ChoiceResult
}

// Tally counts ballots per choice. Percentages are 0 when no ballot was
// cast at all.
func (s *Service) Tally(ctx context.Context, refID id.ReferendumID) (*TallyResult, error) {
	if _, err := s.referendums.FindByID(ctx, refID); err != nil {
		return nil, translateNotFound(err, "referendum")
	}
	choices, err := s.choices.ListByReferendum(ctx, refID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list choices")
	}

	result := &TallyResult{Referendum: refID}
	for _, c := range choices {
		n, err := s.ballots.CountByChoice(ctx, c.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count ballots")
		}
		result.Total += n
		result.Choices = append(result.Choices, ChoiceResult{Choice: c, Count: n})
	}
	if result.Total > 0 {
		for i := range result.Choices {
			result.Choices[i].Percentage =
				float64(result.Choices[i].Count) / float64(result.Total) * 100
		}
	}
	return result, nil
}

func (s *Service) notifySaved(ctx context.Context, r *models.Referendum) {
	if s.bus == nil {
		return
	}
	s.bus.Notify(ctx, events.Event{
		Kind: events.KindReferendumSaved,
		At:   requestcontext.Now(ctx),
		Referendum: &events.ReferendumEvent{
			ID:        r.ID,
			Creator:   r.Creator,
			Published: r.PublicationDate != nil,
			Planned:   r.EventStart != nil,
		},
	})
}

func translateNotFound(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
}
