package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "agora/pkg/domain"

	"agora/internal/achievements/models"
)

// AchievementLister exposes unlocked badges per user.
type AchievementLister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]models.Achievement, error)
}

type AchievementHandler struct {
	achievements AchievementLister
	logger       *slog.Logger
}

func NewAchievementHandler(achievements AchievementLister, logger *slog.Logger) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, logger: logger}
}

func (h *AchievementHandler) Register(r chi.Router) {
	r.Get("/achievements", h.handleList)
}

type achievementResponse struct {
	Badge      string    `json:"badge"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// handleList returns the caller's unlocked badges.
func (h *AchievementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	unlocked, err := h.achievements.ListByUser(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]achievementResponse, 0, len(unlocked))
	for _, a := range unlocked {
		out = append(out, achievementResponse{
			Badge:      string(a.Badge),
			UnlockedAt: a.UnlockedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
