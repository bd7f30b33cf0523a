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

	"agora/internal/referendum/models"
	"agora/internal/referendum/service"
)

// ReferendumService is the slice of the referendum service the handler uses.
type ReferendumService interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Referendum, error)
	Update(ctx context.Context, refID id.ReferendumID, req service.UpdateRequest) (*models.Referendum, error)
	Get(ctx context.Context, refID id.ReferendumID) (*models.Referendum, error)
	List(ctx context.Context) ([]*models.Referendum, error)
	Tally(ctx context.Context, refID id.ReferendumID) (*service.TallyResult, error)
	CreateCategory(ctx context.Context, title string) (models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type ReferendumHandler struct {
	referendums ReferendumService
	logger      *slog.Logger
}

func NewReferendumHandler(referendums ReferendumService, logger *slog.Logger) *ReferendumHandler {
	return &ReferendumHandler{referendums: referendums, logger: logger}
}

func (h *ReferendumHandler) Register(r chi.Router) {
	r.Post("/referendums", h.handleCreate)
	r.Get("/referendums", h.handleList)
	r.Get("/referendums/{id}", h.handleGet)
	r.Patch("/referendums/{id}", h.handleUpdate)
	r.Get("/referendums/{id}/results", h.handleResults)
	r.Post("/categories", h.handleCreateCategory)
	r.Get("/categories", h.handleListCategories)
}

type createReferendumRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Question    string   `json:"question"`
	Categories  []string `json:"categories"`
}

type updateReferendumRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	Question        *string    `json:"question"`
	Categories      []string   `json:"categories"`
	PublicationDate *time.Time `json:"publication_date"`
	EventStart      *time.Time `json:"event_start"`
	Duration        *int       `json:"duration_seconds"`
}

type referendumResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Description     string     `json:"description"`
	Question        string     `json:"question"`
	Categories      []string   `json:"categories"`
	State           string     `json:"state"`
	DurationSeconds int        `json:"duration_seconds"`
	DurationLabel   string     `json:"duration_label"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	EventStart      *time.Time `json:"event_start,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toReferendumResponse(r *models.Referendum, now time.Time) referendumResponse {
	cats := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		cats = append(cats, c.String())
	}
	return referendumResponse{
		ID:              r.ID.String(),
		Title:           r.Title,
		Slug:            r.Slug,
		Description:     r.Description,
		Question:        r.Question,
		Categories:      cats,
		State:           string(r.StateAt(now)),
		DurationSeconds: int(r.Duration),
		DurationLabel:   r.Duration.Label(),
		PublicationDate: r.PublicationDate,
		EventStart:      r.EventStart,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (h *ReferendumHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	creator, err := requireUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createReferendumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	categories, err := parseCategoryIDs(req.Categories)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.referendums.Create(ctx, service.CreateRequest{
		Title:       req.Title,
		Description: req.Description,
		Question:    req.Question,
		Categories:  categories,
		Creator:     creator,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReferendumResponse(created, requestcontext.Now(ctx)))
}

func (h *ReferendumHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateReferendumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	update := service.UpdateRequest{
		Title:           req.Title,
		Description:     req.Description,
		Question:        req.Question,
		PublicationDate: req.PublicationDate,
		EventStart:      req.EventStart,
	}
	if req.Categories != nil {
		categories, err := parseCategoryIDs(req.Categories)
		if err != nil {
			writeError(w, err)
			return
		}
		update.Categories = categories
		update.CategoriesSet = true
	}
	if req.Duration != nil {
		d := models.Duration(*req.Duration)
		update.Duration = &d
	}

	updated, err := h.referendums.Update(ctx, refID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReferendumResponse(updated, requestcontext.Now(ctx)))
}

func (h *ReferendumHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	ref, err := h.referendums.Get(ctx, refID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReferendumResponse(ref, requestcontext.Now(ctx)))
}

func (h *ReferendumHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refs, err := h.referendums.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	now := requestcontext.Now(ctx)
	out := make([]referendumResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, toReferendumResponse(ref, now))
	}
	writeJSON(w, http.StatusOK, out)
}

type choiceResultResponse struct {
	ChoiceID   string  `json:"choice_id"`
	Title      string  `json:"title"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type tallyResponse struct {
	ReferendumID string                 `json:"referendum_id"`
	Total        int                    `json:"total"`
	Choices      []choiceResultResponse `json:"choices"`
}

func (h *ReferendumHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refID, err := id.ParseReferendumID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	tally, err := h.referendums.Tally(ctx, refID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := tallyResponse{ReferendumID: tally.Referendum.String(), Total: tally.Total}
	for _, c := range tally.Choices {
		resp.Choices = append(resp.Choices, choiceResultResponse{
			ChoiceID:   c.Choice.ID.String(),
			Title:      c.Choice.Title,
			Count:      c.Count,
			Percentage: c.Percentage,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type createCategoryRequest struct {
	Title string `json:"title"`
}

type categoryResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

func toCategoryResponse(c models.Category) categoryResponse {
	return categoryResponse{ID: c.ID.String(), Title: c.Title, Slug: c.Slug}
}

func (h *ReferendumHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := requireUser(ctx); err != nil {
		writeError(w, err)
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	created, err := h.referendums.CreateCategory(ctx, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(created))
}

func (h *ReferendumHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.referendums.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseCategoryIDs(raw []string) ([]id.CategoryID, error) {
	out := make([]id.CategoryID, 0, len(raw))
	for _, s := range raw {
		catID, err := id.ParseCategoryID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, catID)
	}
	return out, nil
}

// requireUser reads the caller identity set by the X-User-ID middleware.
func requireUser(ctx context.Context) (id.UserID, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		return id.UserID{}, dErrors.New(dErrors.CodeForbidden, "caller identity is required")
	}
	return userID, nil
}
