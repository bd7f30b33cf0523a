package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"

	commentstore "agora/internal/engagement/store/comment"
	likestore "agora/internal/engagement/store/like"
	"agora/internal/events"
	refmodels "agora/internal/referendum/models"
	referendumstore "agora/internal/referendum/store/referendum"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Notify(_ context.Context, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) kinds() []events.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Kind, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Kind)
	}
	return out
}

type EngagementServiceSuite struct {
	suite.Suite
	likes       *likestore.MemoryStore
	comments    *commentstore.MemoryStore
	referendums *referendumstore.MemoryStore
	bus         *recordingBus
	service     *Service

	now       time.Time
	ctx       context.Context
	published *refmodels.Referendum
	draft     *refmodels.Referendum
}

func TestEngagementServiceSuite(t *testing.T) {
	suite.Run(t, new(EngagementServiceSuite))
}

func (s *EngagementServiceSuite) SetupTest() {
	s.likes = likestore.NewMemory()
	s.comments = commentstore.NewMemory()
	s.referendums = referendumstore.NewMemory()
	s.bus = &recordingBus{}
	s.service = New(s.likes, s.comments, s.referendums, WithNotifier(s.bus))

	s.now = time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	pub := s.now.Add(-24 * time.Hour)
	s.published = &refmodels.Referendum{
		ID:              id.ReferendumID(uuid.New()),
		Title:           "Publié",
		Slug:            "publie",
		Duration:        refmodels.Duration24h,
		Creator:         id.UserID(uuid.New()),
		PublicationDate: &pub,
	}
	s.Require().NoError(s.referendums.Create(s.ctx, s.published))

	s.draft = &refmodels.Referendum{
		ID:       id.ReferendumID(uuid.New()),
		Title:    "Brouillon",
		Slug:     "brouillon",
		Duration: refmodels.Duration24h,
		Creator:  id.UserID(uuid.New()),
	}
	s.Require().NoError(s.referendums.Create(s.ctx, s.draft))
}

func (s *EngagementServiceSuite) TestToggleLike() {
	user := id.UserID(uuid.New())

	s.Run("first toggle likes", func() {
		liked, err := s.service.ToggleLike(s.ctx, s.published.ID, user)
		s.Require().NoError(err)
		s.True(liked)

		n, err := s.service.CountLikes(s.ctx, s.published.ID)
		s.Require().NoError(err)
		s.Equal(1, n)
		s.Contains(s.bus.kinds(), events.KindLikeSaved)
	})

	s.Run("second toggle unlikes", func() {
		liked, err := s.service.ToggleLike(s.ctx, s.published.ID, user)
		s.Require().NoError(err)
		s.False(liked)

		n, err := s.service.CountLikes(s.ctx, s.published.ID)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("draft referendum cannot be liked", func() {
		_, err := s.service.ToggleLike(s.ctx, s.draft.ID, user)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown referendum", func() {
		_, err := s.service.ToggleLike(s.ctx, id.ReferendumID(uuid.New()), user)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngagementServiceSuite) TestCreateComment() {
	author := id.UserID(uuid.New())

	s.Run("posts on a published referendum", func() {
		c, err := s.service.CreateComment(s.ctx, s.published.ID, author, "  Très bonne initiative.  ")
		s.Require().NoError(err)
		s.Equal("Très bonne initiative.", c.Body)
		s.True(c.Visible)
		s.Contains(s.bus.kinds(), events.KindCommentSaved)
	})

	s.Run("rejects an empty body", func() {
		_, err := s.service.CreateComment(s.ctx, s.published.ID, author, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects an oversized body", func() {
		_, err := s.service.CreateComment(s.ctx, s.published.ID, author, strings.Repeat("a", MaxCommentLength+1))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects a draft referendum", func() {
		_, err := s.service.CreateComment(s.ctx, s.draft.ID, author, "Trop tôt.")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *EngagementServiceSuite) TestEditComment() {
	author := id.UserID(uuid.New())
	c, err := s.service.CreateComment(s.ctx, s.published.ID, author, "Premier jet.")
	s.Require().NoError(err)

	s.Run("author edits the body", func() {
		edited, err := s.service.EditComment(s.ctx, c.ID, author, "Version finale.")
		s.Require().NoError(err)
		s.Equal("Version finale.", edited.Body)
	})

	s.Run("someone else is refused", func() {
		_, err := s.service.EditComment(s.ctx, c.ID, id.UserID(uuid.New()), "Vandalisme.")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown comment", func() {
		_, err := s.service.EditComment(s.ctx, id.CommentID(uuid.New()), author, "Perdu.")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngagementServiceSuite) TestHideComment() {
	author := id.UserID(uuid.New())
	c, err := s.service.CreateComment(s.ctx, s.published.ID, author, "À modérer.")
	s.Require().NoError(err)

	s.Require().NoError(s.service.HideComment(s.ctx, c.ID))

	listed, err := s.service.ListComments(s.ctx, s.published.ID)
	s.Require().NoError(err)
	for _, lc := range listed {
		s.NotEqual(c.ID, lc.ID)
	}

	// Hiding twice is a no-op, not an error.
	s.NoError(s.service.HideComment(s.ctx, c.ID))
}

func (s *EngagementServiceSuite) TestReportComment() {
	author := id.UserID(uuid.New())
	reporter := id.UserID(uuid.New())
	c, err := s.service.CreateComment(s.ctx, s.published.ID, author, "Contenu discutable.")
	s.Require().NoError(err)

	s.Run("files a report", func() {
		s.NoError(s.service.ReportComment(s.ctx, c.ID, reporter, "Propos déplacés"))
	})

	s.Run("rejects an empty reason", func() {
		err := s.service.ReportComment(s.ctx, c.ID, reporter, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown comment", func() {
		err := s.service.ReportComment(s.ctx, id.CommentID(uuid.New()), reporter, "Cible disparue")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a hidden comment can still be reported", func() {
		s.Require().NoError(s.service.HideComment(s.ctx, c.ID))
		s.NoError(s.service.ReportComment(s.ctx, c.ID, reporter, "Toujours visible en cache"))
	})
}

func (s *EngagementServiceSuite) TestListCommentsOrderedByCreation() {
	author := id.UserID(uuid.New())
	first, err := s.service.CreateComment(s.ctx, s.published.ID, author, "Premier.")
	s.Require().NoError(err)

	laterCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	second, err := s.service.CreateComment(laterCtx, s.published.ID, author, "Deuxième.")
	s.Require().NoError(err)

	listed, err := s.service.ListComments(s.ctx, s.published.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(first.ID, listed[0].ID)
	s.Equal(second.ID, listed[1].ID)
}
