package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// serviceError is the HTTP rendering of a service-layer error.
type serviceError struct {
	Status  int
	Code    string
	Message string
}

// classifyError maps service errors onto HTTP statuses. Unknown errors are
// internal and their text is not exposed.
func classifyError(err error, fallback string) serviceError {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		return serviceError{http.StatusBadRequest, "validation_error", ve.Error()}
	case errors.Is(err, apperrors.ErrNotFound):
		return serviceError{http.StatusNotFound, "not_found", "Resource not found"}
	case errors.Is(err, apperrors.ErrForbidden):
		return serviceError{http.StatusForbidden, "forbidden", "Access denied"}
	case errors.Is(err, apperrors.ErrRetryLimitExceeded):
		return serviceError{http.StatusConflict, "retry_limit_exceeded",
			"Maximum retry attempts reached. Please create a new idea instead."}
	case errors.Is(err, apperrors.ErrInvalidStatus):
		return serviceError{http.StatusConflict, "invalid_status", err.Error()}
	case errors.Is(err, apperrors.ErrConflict):
		return serviceError{http.StatusConflict, "conflict", "The resource was modified concurrently"}
	case errors.Is(err, apperrors.ErrNoWebhookConfigured):
		return serviceError{http.StatusFailedDependency, "no_webhook_configured",
			"No active webhook is configured for this operation. Please configure a webhook."}
	case errors.Is(err, apperrors.ErrWebhookDeliveryFailed):
		return serviceError{http.StatusBadGateway, "webhook_delivery_failed",
			"The processing service could not be reached. You can retry later."}
	case errors.Is(err, apperrors.ErrNotConfigured):
		return serviceError{http.StatusServiceUnavailable, "not_configured", "This integration is not configured"}
	default:
		return serviceError{http.StatusInternalServerError, "internal_error", fallback}
	}
}

// writeServiceError logs err and writes the mapped error response. Internal
// errors are logged at ERROR, client errors at DEBUG.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string, fields ...zap.Field) {
	se := classifyError(err, fallback)
	fields = append(fields, zap.Error(err))
	if se.Status >= http.StatusInternalServerError {
		logger.Error(fallback, fields...)
	} else {
		logger.Debug(fallback, fields...)
	}
	if err := ErrorResponse(w, se.Status, se.Code, se.Message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeDispatchError handles operations that persist an entity before the
// webhook dispatch fails. The entity is returned alongside the error so the
// caller can show it and offer a retry.
func writeDispatchError(w http.ResponseWriter, logger *zap.Logger, err error, entity any, fallback string, fields ...zap.Field) {
	if entity == nil {
		writeServiceError(w, logger, err, fallback, fields...)
		return
	}
	se := classifyError(err, fallback)
	logger.Warn(fallback, append(fields, zap.Error(err))...)
	resp := ApiResponse{Success: false, Data: entity, Error: se.Code, Message: se.Message}
	if err := WriteJSON(w, se.Status, resp); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// orNil keeps a nil pointer from becoming a non-nil interface.
func orNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}

// writeData writes a successful ApiResponse.
func writeData(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeBadRequest writes a 400 with the given code and message.
func writeBadRequest(w http.ResponseWriter, logger *zap.Logger, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, logger, "invalid_request", "Invalid request body")
		return false
	}
	return true
}
