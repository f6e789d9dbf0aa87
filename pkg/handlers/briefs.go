package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// BriefHandler handles content brief requests.
type BriefHandler struct {
	briefs services.BriefService
	logger *zap.Logger
}

// NewBriefHandler creates a new brief handler.
func NewBriefHandler(briefs services.BriefService, logger *zap.Logger) *BriefHandler {
	return &BriefHandler{briefs: briefs, logger: logger}
}

// RegisterRoutes registers the brief handler's routes on the given mux.
func (h *BriefHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/briefs"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("PATCH "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Discard)))
	mux.HandleFunc("POST "+base+"/{id}/generate", authMiddleware.RequireAuth(scope(h.Generate)))
}

// List handles GET /api/briefs
func (h *BriefHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := parsePaging(r)
	filters := models.BriefFilters{
		Status: models.BriefStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	page, err := h.briefs.List(r.Context(), userID, filters)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list briefs", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, page)
}

// Get handles GET /api/briefs/{id}
func (h *BriefHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	brief, err := h.briefs.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get brief", zap.String("brief_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, brief)
}

// Update handles PATCH /api/briefs/{id}
func (h *BriefHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.UpdateBriefRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	brief, err := h.briefs.Update(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update brief", zap.String("brief_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, brief)
}

// Discard handles DELETE /api/briefs/{id}
func (h *BriefHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	brief, err := h.briefs.Discard(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to discard brief", zap.String("brief_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, brief)
}

// Generate handles POST /api/briefs/{id}/generate
// The brief is returned in its reverted state when the dispatch fails.
func (h *BriefHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	brief, err := h.briefs.GenerateContentItem(r.Context(), userID, id)
	if err != nil {
		writeDispatchError(w, h.logger, err, orNil(brief), "Failed to generate content item", zap.String("brief_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusAccepted, brief)
}
