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
	"agora/pkg/requestcontext"

	"agora/internal/events"
)

// CitizenService is the slice of the citizen service the handler uses.
type CitizenService interface {
	IsCitizen(ctx context.Context, userID id.UserID) (bool, error)
}

// Notifier publishes domain events onto the bus.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event)
}

type CitizenHandler struct {
	citizens CitizenService
	bus      Notifier
	logger   *slog.Logger
}

func NewCitizenHandler(citizens CitizenService, bus Notifier, logger *slog.Logger) *CitizenHandler {
	return &CitizenHandler{citizens: citizens, bus: bus, logger: logger}
}

func (h *CitizenHandler) Register(r chi.Router) {
	r.Post("/identities/confirm", h.handleConfirm)
	r.Get("/citizenship", h.handleCitizenship)
}

type confirmIdentityRequest struct {
	UserID     string     `json:"user_id"`
	ValidUntil *time.Time `json:"valid_until"`
}

// handleConfirm is the callback endpoint for the external document checker.
// It only publishes the confirmation event; recording and permission
// recompute happen in the identity observer.
func (h *CitizenHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req confirmIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	var validUntil time.Time
	if req.ValidUntil != nil {
		validUntil = *req.ValidUntil
	}
	h.bus.Notify(ctx, events.Event{
		Kind:     events.KindIdentityConfirmed,
		At:       requestcontext.Now(ctx),
		Identity: &events.IdentityEvent{User: userID, ValidUntil: validUntil},
	})
	w.WriteHeader(http.StatusAccepted)
}

// handleCitizenship reports whether the caller currently holds voting rights.
func (h *CitizenHandler) handleCitizenship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	granted, err := h.citizens.IsCitizen(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"citizen": granted})
}
