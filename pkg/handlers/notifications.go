package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// NotificationHandler handles user notification requests.
type NotificationHandler struct {
	notifications services.NotificationService
	logger        *zap.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// RegisterRoutes registers the notification handler's routes on the given mux.
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/notifications"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("GET "+base+"/unread-count", authMiddleware.RequireAuth(scope(h.UnreadCount)))
	mux.HandleFunc("POST "+base+"/read-all", authMiddleware.RequireAuth(scope(h.MarkAllRead)))
	mux.HandleFunc("POST "+base+"/{id}/read", authMiddleware.RequireAuth(scope(h.MarkRead)))
}

// List handles GET /api/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	limit, offset := parsePaging(r)
	filters := models.NotificationFilters{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	notifications, err := h.notifications.List(r.Context(), userID, filters)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list notifications", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, notifications)
}

// UnreadCount handles GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to count notifications", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), userID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to mark notification read", zap.String("notification_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, map[string]any{"id": id, "is_read": true})
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to mark notifications read", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, map[string]int{"updated": n})
}
