// Package service implements referendum engagement: like toggling, comments
// and comment moderation. Likes and comments require a published referendum
// but otherwise stay out of the lifecycle's way.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/platform/sentinel"
	"agora/pkg/requestcontext"

	"agora/internal/engagement/models"
	"agora/internal/events"
	refmodels "agora/internal/referendum/models"
)

// MaxCommentLength bounds comment bodies.
const MaxCommentLength = 4000

type LikeStore interface {
	Create(ctx context.Context, l models.Like) error
	Delete(ctx context.Context, referendumID id.ReferendumID, userID id.UserID) error
	CountByReferendum(ctx context.Context, referendumID id.ReferendumID) (int, error)
}

type CommentStore interface {
	Create(ctx context.Context, c models.Comment) error
	Update(ctx context.Context, c models.Comment) error
	FindByID(ctx context.Context, commentID id.CommentID) (models.Comment, error)
	ListVisibleByReferendum(ctx context.Context, referendumID id.ReferendumID) ([]models.Comment, error)
	CreateReport(ctx context.Context, r models.Report) error
}

// ReferendumFinder is the slice of the referendum store engagement needs.
type ReferendumFinder interface {
	FindByID(ctx context.Context, refID id.ReferendumID) (*refmodels.Referendum, error)
}

// Notifier publishes domain events after a mutation commits.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event)
}

type Service struct {
	likes       LikeStore
	comments    CommentStore
	referendums ReferendumFinder
	bus         Notifier
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithNotifier(bus Notifier) Option {
	return func(s *Service) { s.bus = bus }
}

func New(likes LikeStore, comments CommentStore, referendums ReferendumFinder, opts ...Option) *Service {
	s := &Service{
		likes:       likes,
		comments:    comments,
		referendums: referendums,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ToggleLike likes the referendum for the user, or removes the like when it
// already exists. Returns whether the referendum is liked after the call.
func (s *Service) ToggleLike(ctx context.Context, refID id.ReferendumID, userID id.UserID) (bool, error) {
	now := requestcontext.Now(ctx)
	if err := s.requirePublished(ctx, refID); err != nil {
		return false, err
	}

	err := s.likes.Create(ctx, models.Like{Referendum: refID, User: userID, CreatedAt: now})
	if errors.Is(err, sentinel.ErrConflict) {
		if err := s.likes.Delete(ctx, refID, userID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove like")
		}
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save like")
	}

	if s.bus != nil {
		s.bus.Notify(ctx, events.Event{
			Kind: events.KindLikeSaved,
			At:   now,
			Like: &events.LikeEvent{Referendum: refID, User: userID},
		})
	}
	return true, nil
}

func (s *Service) CountLikes(ctx context.Context, refID id.ReferendumID) (int, error) {
	n, err := s.likes.CountByReferendum(ctx, refID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count likes")
	}
	return n, nil
}

// CreateComment posts a comment on a published referendum.
func (s *Service) CreateComment(ctx context.Context, refID id.ReferendumID, userID id.UserID, body string) (models.Comment, error) {
	now := requestcontext.Now(ctx)
	body = strings.TrimSpace(body)
	if err := validateBody(body); err != nil {
		return models.Comment{}, err
	}
	if err := s.requirePublished(ctx, refID); err != nil {
		return models.Comment{}, err
	}

	c := models.Comment{
		ID:         id.CommentID(uuid.New()),
		Referendum: refID,
		User:       userID,
		Body:       body,
		Visible:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return models.Comment{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save comment")
	}

	if s.bus != nil {
		s.bus.Notify(ctx, events.Event{
			Kind:    events.KindCommentSaved,
			At:      now,
			Comment: &events.CommentEvent{ID: c.ID, Referendum: refID, User: userID},
		})
	}
	return c, nil
}

// EditComment rewrites the comment body. Only the author may edit.
func (s *Service) EditComment(ctx context.Context, commentID id.CommentID, userID id.UserID, body string) (models.Comment, error) {
	now := requestcontext.Now(ctx)
	body = strings.TrimSpace(body)
	if err := validateBody(body); err != nil {
		return models.Comment{}, err
	}

	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return models.Comment{}, translateNotFound(err, "comment")
	}
	if c.User != userID {
		return models.Comment{}, dErrors.New(dErrors.CodeForbidden, "only the author can edit a comment")
	}

	c.Body = body
	c.UpdatedAt = now
	if err := s.comments.Update(ctx, c); err != nil {
		return models.Comment{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update comment")
	}
	return c, nil
}

// HideComment withdraws a comment from listings. Comments are never deleted,
// so reports keep a target.
func (s *Service) HideComment(ctx context.Context, commentID id.CommentID) error {
	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return translateNotFound(err, "comment")
	}
	if !c.Visible {
		return nil
	}
	c.Visible = false
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.comments.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hide comment")
	}
	s.logger.Info("comment hidden", "comment", commentID.String())
	return nil
}

// ReportComment files a moderation report against a comment.
func (s *Service) ReportComment(ctx context.Context, commentID id.CommentID, userID id.UserID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "report reason is required")
	}
	if _, err := s.comments.FindByID(ctx, commentID); err != nil {
		return translateNotFound(err, "comment")
	}

	err := s.comments.CreateReport(ctx, models.Report{
		ID:        id.ReportID(uuid.New()),
		Comment:   commentID,
		User:      userID,
		Reason:    reason,
		CreatedAt: requestcontext.Now(ctx),
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "comment not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save report")
	}
	return nil
}

func (s *Service) ListComments(ctx context.Context, refID id.ReferendumID) ([]models.Comment, error) {
	out, err := s.comments.ListVisibleByReferendum(ctx, refID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list comments")
	}
	return out, nil
}

func (s *Service) requirePublished(ctx context.Context, refID id.ReferendumID) error {
	r, err := s.referendums.FindByID(ctx, refID)
	if err != nil {
		return translateNotFound(err, "referendum")
	}
	if !r.IsPublished(requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodeInvalidState, "referendum is not published")
	}
	return nil
}

func validateBody(body string) error {
	if body == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "comment body is required")
	}
	if len(body) > MaxCommentLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "comment body exceeds %d characters", MaxCommentLength)
	}
	return nil
}

func translateNotFound(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
}
