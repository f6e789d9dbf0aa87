package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/audit"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

const maxCallbackBodyBytes = 10 << 20

// CallbackHandler receives results from the external processing worker.
// Callbacks carry no user token; the echoed callback_data identifies the
// user and the service opens its own scope.
type CallbackHandler struct {
	callbacks services.CallbackService
	security  *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewCallbackHandler creates a new callback handler.
func NewCallbackHandler(callbacks services.CallbackService, security *audit.SecurityAuditor, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbacks: callbacks,
		security:  security,
		logger:    logger,
	}
}

// RegisterRoutes registers the callback route behind the shared-secret check.
func (h *CallbackHandler) RegisterRoutes(mux *http.ServeMux, requireSecret func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/callbacks/{route}", requireSecret(h.Handle))
}

// Handle handles POST /api/callbacks/{route}
func (h *CallbackHandler) Handle(w http.ResponseWriter, r *http.Request) {
	route := r.PathValue("route")
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)

	var req services.CallbackRequest
	if !decodeJSON(w, r, &req, h.logger) {
		h.security.LogCallbackRejected(r.Context(), route, "malformed body", clientIP(r))
		return
	}

	outcome, err := h.callbacks.Handle(r.Context(), route, &req)
	if err != nil {
		if rejected(err) {
			h.security.LogCallbackRejected(r.Context(), route, err.Error(), clientIP(r))
		}
		writeServiceError(w, h.logger, err, "Failed to apply callback",
			zap.String("route", route),
			zap.String("entity_type", string(req.CallbackData.EntityType)),
			zap.String("entity_id", req.CallbackData.EntityID.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, outcome)
}

// rejected reports whether err means the callback itself was unacceptable,
// as opposed to a failure applying it.
func rejected(err error) bool {
	return apperrors.IsValidation(err) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrInvalidStatus)
}
