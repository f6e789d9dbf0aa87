package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// IdeaHandler handles content idea requests.
type IdeaHandler struct {
	ideas     services.IdeaService
	lifecycle services.LifecycleService
	timeouts  services.TimeoutService
	logger    *zap.Logger
}

// NewIdeaHandler creates a new idea handler.
func NewIdeaHandler(ideas services.IdeaService, lifecycle services.LifecycleService, timeouts services.TimeoutService, logger *zap.Logger) *IdeaHandler {
	return &IdeaHandler{
		ideas:     ideas,
		lifecycle: lifecycle,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// RegisterRoutes registers the idea handler's routes on the given mux.
func (h *IdeaHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/ideas"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scope(h.Submit)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("POST "+base+"/timeouts/check", authMiddleware.RequireAuth(scope(h.CheckTimeouts)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("PATCH "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Discard)))
	mux.HandleFunc("POST "+base+"/{id}/retry", authMiddleware.RequireAuth(scope(h.Retry)))
	mux.HandleFunc("POST "+base+"/{id}/brief", authMiddleware.RequireAuth(scope(h.CreateBrief)))
}

// Submit handles POST /api/ideas
func (h *IdeaHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CreateIdeaRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	idea, err := h.ideas.Submit(r.Context(), userID, &req)
	if err != nil {
		writeDispatchError(w, h.logger, err, orNil(idea), "Failed to submit idea", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusCreated, idea)
}

// List handles GET /api/ideas
func (h *IdeaHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, offset := parsePaging(r)
	filters := models.IdeaFilters{
		Status:         models.IdeaStatus(q.Get("status")),
		ContentType:    q.Get("content_type"),
		TargetAudience: q.Get("target_audience"),
		Search:         q.Get("search"),
		Limit:          limit,
		Offset:         offset,
	}

	page, err := h.ideas.List(r.Context(), userID, filters)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list ideas", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, page)
}

// Get handles GET /api/ideas/{id}
func (h *IdeaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	idea, err := h.ideas.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get idea", zap.String("idea_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, idea)
}

// Update handles PATCH /api/ideas/{id}
func (h *IdeaHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.UpdateIdeaRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	idea, err := h.ideas.Update(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update idea", zap.String("idea_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, idea)
}

// Discard handles DELETE /api/ideas/{id}
func (h *IdeaHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	idea, err := h.ideas.Discard(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to discard idea", zap.String("idea_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, idea)
}

// Retry handles POST /api/ideas/{id}/retry
func (h *IdeaHandler) Retry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	idea, err := h.lifecycle.RetryIdea(r.Context(), userID, id)
	if err != nil {
		writeDispatchError(w, h.logger, err, orNil(idea), "Failed to retry idea", zap.String("idea_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, idea)
}

// CheckTimeouts handles POST /api/ideas/timeouts/check
func (h *IdeaHandler) CheckTimeouts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.timeouts.ForceTimeoutCheck(r.Context(), userID, models.EntityKindIdea)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to check idea timeouts", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, result)
}

// CreateBrief handles POST /api/ideas/{id}/brief
func (h *IdeaHandler) CreateBrief(w http.ResponseWriter, r *http.Request) {
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

	brief, err := h.ideas.CreateBrief(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create brief from idea", zap.String("idea_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusCreated, brief)
}
