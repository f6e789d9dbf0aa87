package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidStatus = errors.New("invalid status for this operation")

	// ErrRetryLimitExceeded is returned before any mutation when an entity has
	// already used all of its retries.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")

	// ErrNoWebhookConfigured is returned when no active webhook configuration
	// exists for a webhook type. No network call is made in that case.
	ErrNoWebhookConfigured = errors.New("no active webhook configured")

	// ErrWebhookDeliveryFailed is returned when every configured target failed.
	ErrWebhookDeliveryFailed = errors.New("webhook delivery failed")

	// ErrNotConfigured is returned when an optional integration (WordPress,
	// object storage, signing secrets) is used without configuration.
	ErrNotConfigured = errors.New("integration not configured")
)

// ValidationError describes a request that failed local validation.
// It is never retried and never reaches the data store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
