package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"

	"agora/internal/engagement/models"
)

// EngagementService is the slice of the engagement service the handler uses.
type EngagementService interface {
	ToggleLike(ctx context.Context, refID id.ReferendumID, userID id.UserID) (bool, error)
	CountLikes(ctx context.Context, refID id.ReferendumID) (int, error)
	CreateComment(ctx context.Context, refID id.ReferendumID, userID id.UserID, body string) (models.Comment, error)
	EditComment(ctx context.Context, commentID id.CommentID, userID id.UserID, body string) (models.Comment, error)
	ReportComment(ctx context.Context, commentID id.CommentID, userID id.UserID, reason string) error
	ListComments(ctx context.Context, refID id.ReferendumID) ([]models.Comment, error)
}

type EngagementHandler struct {
	engagement EngagementService
	logger     *slog.Logger
}

func NewEngagementHandler(engagement EngagementService, logger *slog.Logger) *EngagementHandler {
	return &EngagementHandler{engagement: engagement, logger: logger}
}

func (h *EngagementHandler) Register(r chi.Router) {
	r.Post("/referendums/{id}/like", h.handleToggleLike)
	r.Get("/referendums/{id}/likes", h.handleCountLikes)
	r.Post("/referendums/{id}/comments", h.handleCreateComment)
	r.Get("/referendums/{id}/comments", h.handleListComments)
	r.Patch("/comments/{id}", h.handleEditComment)
	r.Post("/comments/{id}/report", h.handleReportComment)
}

func (h *EngagementHandler) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	liked, err := h.engagement.ToggleLike(ctx, refID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *EngagementHandler) handleCountLikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.engagement.CountLikes(ctx, refID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": n})
}

type commentRequest struct {
	Body string `json:"body"`
}

type commentResponse struct {
	ID           string    `json:"id"`
	ReferendumID string    `json:"referendum_id"`
	UserID       string    `json:"user_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toCommentResponse(c models.Comment) commentResponse {
	return commentResponse{
		ID:           c.ID.String(),
		ReferendumID: c.Referendum.String(),
		UserID:       c.User.String(),
		Body:         c.Body,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (h *EngagementHandler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	c, err := h.engagement.CreateComment(ctx, refID, userID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

func (h *EngagementHandler) handleListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	comments, err := h.engagement.ListComments(ctx, refID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EngagementHandler) handleEditComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	commentID, err := id.ParseCommentID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	c, err := h.engagement.EditComment(ctx, commentID, userID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(c))
}

type reportRequest struct {
	Reason string `json:"reason"`
}

func (h *EngagementHandler) handleReportComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	commentID, err := id.ParseCommentID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.engagement.ReportComment(ctx, commentID, userID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
