package models

import (
	"time"

	"github.com/google/uuid"
)

// BriefStatus is the lifecycle state of a content brief.
type BriefStatus string

const (
	BriefStatusReadyForReview        BriefStatus = "ready_for_review"
	BriefStatusProcessingContentItem BriefStatus = "processing_content_item"
	BriefStatusContentItemCreated    BriefStatus = "content_item_created"
	BriefStatusDiscarded             BriefStatus = "discarded"
)

// BriefSourceType records whether a brief came from an idea or a suggestion.
type BriefSourceType string

const (
	BriefSourceIdea       BriefSourceType = "idea"
	BriefSourceSuggestion BriefSourceType = "suggestion"
)

// ContentBrief is an approved outline ready for full content generation.
// SourceID is a weak reference to the originating idea or suggestion.
type ContentBrief struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	SourceType     BriefSourceType `json:"source_type"`
	SourceID       uuid.UUID       `json:"source_id"`
	Title          string          `json:"title"`
	BriefContent   string          `json:"brief_content"`
	BriefType      string          `json:"brief_type"`
	TargetAudience string          `json:"target_audience"`
	Status         BriefStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateBriefRequest carries optional overrides when approving an idea or suggestion into a brief.
type CreateBriefRequest struct {
	Title        *string `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	BriefContent *string `json:"brief_content,omitempty"`
	BriefType    *string `json:"brief_type,omitempty" validate:"omitempty,max=100"`
}

// UpdateBriefRequest edits a brief that is still under review.
type UpdateBriefRequest struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	BriefContent   *string `json:"brief_content,omitempty"`
	BriefType      *string `json:"brief_type,omitempty" validate:"omitempty,max=100"`
	TargetAudience *string `json:"target_audience,omitempty" validate:"omitempty,oneof='Private Sector' 'Government Sector'"`
}

// BriefFilters contains filters for listing briefs.
type BriefFilters struct {
	Status BriefStatus
	Limit  int
	Offset int
}
