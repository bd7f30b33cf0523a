package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "agora/pkg/domain"
	dErrors "agora/pkg/domain-errors"

	"agora/internal/voting/models"
)

// VotingService is the slice of the voting service the handler uses.
type VotingService interface {
	IssueToken(ctx context.Context, refID id.ReferendumID, userID id.UserID) (string, error)
	Redeem(ctx context.Context, credential string, choiceID id.ChoiceID) (*models.Ballot, error)
}

type VotingHandler struct {
	voting VotingService
	logger *slog.Logger
}

func NewVotingHandler(voting VotingService, logger *slog.Logger) *VotingHandler {
	return &VotingHandler{voting: voting, logger: logger}
}

func (h *VotingHandler) Register(r chi.Router) {
	r.Post("/referendums/{id}/token", h.handleIssueToken)
	r.Post("/votes", h.handleRedeem)
}

func (h *VotingHandler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
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

	credential, err := h.voting.IssueToken(ctx, refID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	// The credential is returned exactly once and never logged.
	writeJSON(w, http.StatusCreated, map[string]string{"credential": credential})
}

type redeemRequest struct {
	Credential string `json:"credential"`
	ChoiceID   string `json:"choice_id"`
}

// handleRedeem casts the ballot. Deliberately no caller-identity check: the
// credential is the whole authorization, and tying the request to a user
// would undo the anonymity the token protocol buys.
func (h *VotingHandler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.Credential == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "credential is required"))
		return
	}
	choiceID, err := id.ParseChoiceID(req.ChoiceID)
	if err != nil {
		writeError(w, err)
		return
	}

	ballot, err := h.voting.Redeem(ctx, req.Credential, choiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"ballot_id": ballot.ID.String(),
	})
}
