// Package models contains domain types for content-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies a workflow entity type. It is used in webhook payloads,
// notifications, audit entries and cache keys.
type EntityKind string

const (
	EntityKindIdea           EntityKind = "content_idea"
	EntityKindSuggestion     EntityKind = "content_suggestion"
	EntityKindBrief          EntityKind = "content_brief"
	EntityKindContentItem    EntityKind = "content_item"
	EntityKindDerivative     EntityKind = "content_derivative"
	EntityKindGeneralContent EntityKind = "general_content"
)

// String returns the string representation of an EntityKind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known entity kind.
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindIdea, EntityKindSuggestion, EntityKindBrief,
		EntityKindContentItem, EntityKindDerivative, EntityKindGeneralContent:
		return true
	default:
		return false
	}
}

// StatusProcessing is shared by every entity that is driven through the external pipeline.
const StatusProcessing = "processing"

// StatusFailed is written by the timeout checker and by failure callbacks.
const StatusFailed = "failed"

const (
	// MaxRetries is the number of retries an entity may use.
	MaxRetries = 3
	// DefaultProcessingTimeout is the window the external worker has before an
	// entity in processing is considered timed out.
	DefaultProcessingTimeout = 30 * time.Minute
)

// ProcessingFields holds the retry and timeout bookkeeping for an entity.
type ProcessingFields struct {
	RetryCount          int        `json:"retry_count"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	ProcessingTimeoutAt *time.Time `json:"processing_timeout_at,omitempty"`
	LastErrorMessage    *string    `json:"last_error_message,omitempty"`
}

// Begin returns the fields for an entity entering processing at now.
// The timeout is exactly now + timeout. now is truncated to microseconds so the
// values survive a round trip through PostgreSQL timestamptz unchanged.
func (p ProcessingFields) Begin(now time.Time, timeout time.Duration) ProcessingFields {
	started := now.UTC().Truncate(time.Microsecond)
	deadline := started.Add(timeout)
	return ProcessingFields{
		RetryCount:          p.RetryCount,
		ProcessingStartedAt: &started,
		ProcessingTimeoutAt: &deadline,
		LastErrorMessage:    nil,
	}
}

// BeginRetry is Begin with the retry counter incremented.
func (p ProcessingFields) BeginRetry(now time.Time, timeout time.Duration) ProcessingFields {
	next := p.Begin(now, timeout)
	next.RetryCount = p.RetryCount + 1
	return next
}

// CanRetry reports whether another retry is allowed.
func (p ProcessingFields) CanRetry() bool {
	return p.RetryCount < MaxRetries
}

// Processable is implemented by entities that are processed asynchronously by
// the external worker and carry retry/timeout bookkeeping.
type Processable interface {
	EntityID() uuid.UUID
	OwnerID() string
	Kind() EntityKind
	CurrentStatus() string
	Processing() ProcessingFields
}

// TimedOut reports whether a processable entity has passed its deadline.
func TimedOut(p Processable, now time.Time) bool {
	if p.CurrentStatus() != StatusProcessing {
		return false
	}
	deadline := p.Processing().ProcessingTimeoutAt
	return deadline != nil && now.After(*deadline)
}

// TimedOutItem describes a row flipped to failed by the timeout checker.
type TimedOutItem struct {
	ID               uuid.UUID  `json:"id"`
	Kind             EntityKind `json:"kind"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	LastErrorMessage string     `json:"last_error_message"`
}

// TimeoutCheckResult is the outcome of a timeout check.
// Zero updated rows is a valid, non-error outcome.
type TimeoutCheckResult struct {
	Kind         EntityKind      `json:"kind"`
	UpdatedCount int             `json:"updated_count"`
	FailedItems  []*TimedOutItem `json:"failed_items"`
}
