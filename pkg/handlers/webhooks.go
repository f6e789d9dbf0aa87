package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// WebhookHandler manages webhook configurations. All routes require the admin role.
type WebhookHandler struct {
	webhooks services.WebhookConfigService
	logger   *zap.Logger
}

// NewWebhookHandler creates a new webhook configuration handler.
func NewWebhookHandler(webhooks services.WebhookConfigService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// RegisterRoutes registers the webhook handler's routes on the given mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, systemScope ScopeMiddleware) {
	base := "/api/webhooks"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAdmin(systemScope(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAdmin(systemScope(h.Create)))
	mux.HandleFunc("PATCH "+base+"/{id}", authMiddleware.RequireAdmin(systemScope(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAdmin(systemScope(h.Delete)))
}

// List handles GET /api/webhooks
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.webhooks.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list webhooks")
		return
	}

	writeData(w, h.logger, http.StatusOK, configs)
}

// Create handles POST /api/webhooks
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CreateWebhookRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	cfg, err := h.webhooks.Create(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create webhook", zap.String("webhook_type", req.WebhookType))
		return
	}

	writeData(w, h.logger, http.StatusCreated, cfg)
}

// Update handles PATCH /api/webhooks/{id}
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.UpdateWebhookRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	cfg, err := h.webhooks.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update webhook", zap.String("webhook_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, cfg)
}

// Delete handles DELETE /api/webhooks/{id}
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.webhooks.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete webhook", zap.String("webhook_id", id.String()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
