package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook types select which entity-event a configuration services.
const (
	WebhookTypeIdeaSubmission         = "content_idea"
	WebhookTypeIdeaRetry              = "content_idea_retry"
	WebhookTypeSuggestionRetry        = "content_suggestion_retry"
	WebhookTypeBriefContent           = "content_brief"
	WebhookTypeContentItemDerivatives = "content_item_derivatives"
	WebhookTypeGeneralContent         = "general_content"
	WebhookTypeGeneralContentRetry    = "general_content_retry"
)

// ValidWebhookType returns true if t is a known webhook type.
func ValidWebhookType(t string) bool {
	switch t {
	case WebhookTypeIdeaSubmission, WebhookTypeIdeaRetry, WebhookTypeSuggestionRetry,
		WebhookTypeBriefContent, WebhookTypeContentItemDerivatives,
		WebhookTypeGeneralContent, WebhookTypeGeneralContentRetry:
		return true
	default:
		return false
	}
}

// WebhookConfiguration is a registered external endpoint invoked for one webhook type.
// SigningSecret is stored encrypted and never serialized.
type WebhookConfiguration struct {
	ID            uuid.UUID `json:"id"`
	WebhookType   string    `json:"webhook_type"`
	WebhookURL    string    `json:"webhook_url"`
	IsActive      bool      `json:"is_active"`
	SigningSecret string    `json:"-"`
	HasSecret     bool      `json:"has_secret"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateWebhookRequest registers a webhook endpoint.
type CreateWebhookRequest struct {
	WebhookType   string `json:"webhook_type" validate:"required"`
	WebhookURL    string `json:"webhook_url" validate:"required,http_url"`
	IsActive      *bool  `json:"is_active,omitempty"`
	SigningSecret string `json:"signing_secret,omitempty" validate:"omitempty,min=16"`
}

// UpdateWebhookRequest toggles or repoints a webhook endpoint.
type UpdateWebhookRequest struct {
	WebhookURL *string `json:"webhook_url,omitempty" validate:"omitempty,http_url"`
	IsActive   *bool   `json:"is_active,omitempty"`
}
