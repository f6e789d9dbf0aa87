package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// GeneralContentHandler handles standalone content generation requests.
type GeneralContentHandler struct {
	content   services.GeneralContentService
	lifecycle services.LifecycleService
	timeouts  services.TimeoutService
	logger    *zap.Logger
}

// NewGeneralContentHandler creates a new general content handler.
func NewGeneralContentHandler(content services.GeneralContentService, lifecycle services.LifecycleService, timeouts services.TimeoutService, logger *zap.Logger) *GeneralContentHandler {
	return &GeneralContentHandler{
		content:   content,
		lifecycle: lifecycle,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// RegisterRoutes registers the general content handler's routes on the given mux.
func (h *GeneralContentHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/general-content"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scope(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("POST "+base+"/timeouts/check", authMiddleware.RequireAuth(scope(h.CheckTimeouts)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Discard)))
	mux.HandleFunc("POST "+base+"/{id}/retry", authMiddleware.RequireAuth(scope(h.Retry)))
}

// Create handles POST /api/general-content
func (h *GeneralContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CreateGeneralContentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	item, err := h.content.Create(r.Context(), userID, &req)
	if err != nil {
		writeDispatchError(w, h.logger, err, orNil(item), "Failed to create general content", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusCreated, item)
}

// List handles GET /api/general-content
func (h *GeneralContentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, offset := parsePaging(r)
	filters := models.GeneralContentFilters{
		Status:   models.GeneralContentStatus(q.Get("status")),
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	}

	page, err := h.content.List(r.Context(), userID, filters)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list general content", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, page)
}

// Get handles GET /api/general-content/{id}
func (h *GeneralContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	item, err := h.content.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get general content", zap.String("general_content_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// Discard handles DELETE /api/general-content/{id}
func (h *GeneralContentHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	item, err := h.content.Discard(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to discard general content", zap.String("general_content_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// Retry handles POST /api/general-content/{id}/retry
func (h *GeneralContentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	item, err := h.lifecycle.RetryGeneralContent(r.Context(), userID, id)
	if err != nil {
		writeDispatchError(w, h.logger, err, orNil(item), "Failed to retry general content", zap.String("general_content_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// CheckTimeouts handles POST /api/general-content/timeouts/check
func (h *GeneralContentHandler) CheckTimeouts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.timeouts.ForceTimeoutCheck(r.Context(), userID, models.EntityKindGeneralContent)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to check general content timeouts", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, result)
}
