package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// SuggestionHandler handles content suggestion requests.
type SuggestionHandler struct {
	suggestions services.SuggestionService
	lifecycle   services.LifecycleService
	logger      *zap.Logger
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(suggestions services.SuggestionService, lifecycle services.LifecycleService, logger *zap.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		suggestions: suggestions,
		lifecycle:   lifecycle,
		logger:      logger,
	}
}

// RegisterRoutes registers the suggestion handler's routes on the given mux.
func (h *SuggestionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/suggestions"

	mux.HandleFunc("GET /api/ideas/{iid}/suggestions", authMiddleware.RequireAuth(scope(h.ListByIdea)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Discard)))
	mux.HandleFunc("POST "+base+"/{id}/retry", authMiddleware.RequireAuth(scope(h.Retry)))
	mux.HandleFunc("POST "+base+"/{id}/brief", authMiddleware.RequireAuth(scope(h.CreateBrief)))
}

// ListByIdea handles GET /api/ideas/{iid}/suggestions
func (h *SuggestionHandler) ListByIdea(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	ideaID, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	suggestions, err := h.suggestions.ListByIdea(r.Context(), userID, ideaID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list suggestions", zap.String("idea_id", ideaID.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, suggestions)
}

// Get handles GET /api/suggestions/{id}
func (h *SuggestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	suggestion, err := h.suggestions.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get suggestion", zap.String("suggestion_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, suggestion)
}

// Discard handles DELETE /api/suggestions/{id}
func (h *SuggestionHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	suggestion, err := h.suggestions.Discard(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to discard suggestion", zap.String("suggestion_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, suggestion)
}

// Retry handles POST /api/suggestions/{id}/retry
func (h *SuggestionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	suggestion, err := h.lifecycle.RetrySuggestion(r.Context(), userID, id)
	if err != nil {
		writeDispatchError(w, h.logger, err, orNil(suggestion), "Failed to retry suggestion", zap.String("suggestion_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, suggestion)
}

// CreateBrief handles POST /api/suggestions/{id}/brief
func (h *SuggestionHandler) CreateBrief(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CreateBriefRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}

	brief, err := h.suggestions.CreateBrief(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create brief from suggestion", zap.String("suggestion_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusCreated, brief)
}
