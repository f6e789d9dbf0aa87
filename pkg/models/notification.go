package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	NotificationProcessingCompleted = "processing_completed"
	NotificationProcessingFailed    = "processing_failed"
	NotificationProcessingTimedOut  = "processing_timed_out"
	NotificationWebhookFailed       = "webhook_failed"
	NotificationPublished           = "published"
)

// Notification is a message for a user about one of their entities.
// RelatedEntityID/RelatedEntityType are weak references.
type Notification struct {
	ID                uuid.UUID   `json:"id"`
	UserID            string      `json:"user_id"`
	Type              string      `json:"type"`
	Title             string      `json:"title"`
	Message           string      `json:"message"`
	RelatedEntityID   *uuid.UUID  `json:"related_entity_id,omitempty"`
	RelatedEntityType *EntityKind `json:"related_entity_type,omitempty"`
	IsRead            bool        `json:"is_read"`
	CreatedAt         time.Time   `json:"created_at"`
}

// NotificationFilters contains filters for listing notifications.
type NotificationFilters struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
