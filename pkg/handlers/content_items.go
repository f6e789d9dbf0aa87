package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// ContentItemHandler handles content item and derivative requests.
type ContentItemHandler struct {
	items       services.ContentItemService
	derivatives services.DerivativeService
	logger      *zap.Logger
}

// NewContentItemHandler creates a new content item handler.
func NewContentItemHandler(items services.ContentItemService, derivatives services.DerivativeService, logger *zap.Logger) *ContentItemHandler {
	return &ContentItemHandler{
		items:       items,
		derivatives: derivatives,
		logger:      logger,
	}
}

// RegisterRoutes registers the content item handler's routes on the given mux.
func (h *ContentItemHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/content-items"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("GET "+base+"/derivative-counts", authMiddleware.RequireAuth(scope(h.DerivativeCounts)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("PATCH "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Discard)))
	mux.HandleFunc("POST "+base+"/{id}/publish", authMiddleware.RequireAuth(scope(h.Publish)))
	mux.HandleFunc("GET "+base+"/{cid}/derivatives", authMiddleware.RequireAuth(scope(h.ListDerivatives)))
	mux.HandleFunc("POST "+base+"/{cid}/derivatives", authMiddleware.RequireAuth(scope(h.RequestDerivatives)))
	mux.HandleFunc("PATCH /api/derivatives/{id}", authMiddleware.RequireAuth(scope(h.UpdateDerivative)))
}

type requestDerivativesRequest struct {
	DerivativeTypes []string `json:"derivative_types"`
}

// List handles GET /api/content-items
func (h *ContentItemHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := parsePaging(r)
	filters := models.ContentItemFilters{
		Status: models.ContentItemStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	page, err := h.items.List(r.Context(), userID, filters)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list content items", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, page)
}

// Get handles GET /api/content-items/{id}
func (h *ContentItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	item, err := h.items.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get content item", zap.String("content_item_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// Update handles PATCH /api/content-items/{id}
func (h *ContentItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.UpdateContentItemRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	item, err := h.items.Update(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update content item", zap.String("content_item_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// Discard handles DELETE /api/content-items/{id}
func (h *ContentItemHandler) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	item, err := h.items.Discard(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to discard content item", zap.String("content_item_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// Publish handles POST /api/content-items/{id}/publish
func (h *ContentItemHandler) Publish(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	item, err := h.items.Publish(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to publish content item", zap.String("content_item_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, item)
}

// DerivativeCounts handles GET /api/content-items/derivative-counts?item_ids=a,b
func (h *ContentItemHandler) DerivativeCounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	ids, ok := ParseIDList(w, r, "item_ids", h.logger)
	if !ok {
		return
	}

	counts, err := h.items.DerivativeCounts(r.Context(), userID, ids)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get derivative counts", zap.Int("item_count", len(ids)))
		return
	}

	writeData(w, h.logger, http.StatusOK, counts)
}

// ListDerivatives handles GET /api/content-items/{cid}/derivatives
func (h *ContentItemHandler) ListDerivatives(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	itemID, ok := ParseContentItemID(w, r, h.logger)
	if !ok {
		return
	}

	derivatives, err := h.derivatives.ListByItem(r.Context(), userID, itemID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list derivatives", zap.String("content_item_id", itemID.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, derivatives)
}

// RequestDerivatives handles POST /api/content-items/{cid}/derivatives
// An empty body requests every derivative type.
func (h *ContentItemHandler) RequestDerivatives(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	itemID, ok := ParseContentItemID(w, r, h.logger)
	if !ok {
		return
	}

	var req requestDerivativesRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := h.items.RequestDerivatives(r.Context(), userID, itemID, req.DerivativeTypes); err != nil {
		writeServiceError(w, h.logger, err, "Failed to request derivatives", zap.String("content_item_id", itemID.String()))
		return
	}

	writeData(w, h.logger, http.StatusAccepted, map[string]any{
		"content_item_id": itemID,
		"status":          "requested",
	})
}

// UpdateDerivative handles PATCH /api/derivatives/{id}
func (h *ContentItemHandler) UpdateDerivative(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.UpdateDerivativeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	d, err := h.derivatives.Update(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update derivative", zap.String("derivative_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, d)
}
