package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdeaStatus is the lifecycle state of a content idea.
type IdeaStatus string

const (
	IdeaStatusSubmitted    IdeaStatus = "submitted"
	IdeaStatusProcessing   IdeaStatus = StatusProcessing
	IdeaStatusProcessed    IdeaStatus = "processed"
	IdeaStatusFailed       IdeaStatus = StatusFailed
	IdeaStatusBriefCreated IdeaStatus = "brief_created"
	IdeaStatusDiscarded    IdeaStatus = "discarded"
)

// IsValid returns true if the status is a known idea status.
func (s IdeaStatus) IsValid() bool {
	switch s {
	case IdeaStatusSubmitted, IdeaStatusProcessing, IdeaStatusProcessed,
		IdeaStatusFailed, IdeaStatusBriefCreated, IdeaStatusDiscarded:
		return true
	default:
		return false
	}
}

// Content types an idea can target.
const (
	ContentTypeBlogPost = "Blog Post"
	ContentTypeGuide    = "Guide"
)

// Target audiences.
const (
	AudiencePrivateSector    = "Private Sector"
	AudienceGovernmentSector = "Government Sector"
)

// ContentIdea is the initial user-submitted content concept.
type ContentIdea struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	ContentType    string     `json:"content_type"`
	TargetAudience string     `json:"target_audience"`
	Status         IdeaStatus `json:"status"`
	SourceType     SourceType `json:"source_type"`
	SourceData     SourceData `json:"source_data"`
	ProcessingFields

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var _ Processable = (*ContentIdea)(nil)

func (i *ContentIdea) EntityID() uuid.UUID          { return i.ID }
func (i *ContentIdea) OwnerID() string              { return i.UserID }
func (i *ContentIdea) Kind() EntityKind             { return EntityKindIdea }
func (i *ContentIdea) CurrentStatus() string        { return string(i.Status) }
func (i *ContentIdea) Processing() ProcessingFields { return i.ProcessingFields }

// CreateIdeaRequest is the payload for submitting an idea.
type CreateIdeaRequest struct {
	Title          string          `json:"title" validate:"required,max=300"`
	Description    *string         `json:"description,omitempty" validate:"omitempty,max=5000"`
	ContentType    string          `json:"content_type" validate:"required,oneof='Blog Post' Guide"`
	TargetAudience string          `json:"target_audience" validate:"required,oneof='Private Sector' 'Government Sector'"`
	SourceType     SourceType      `json:"source_type" validate:"required,oneof=manual file url"`
	SourceData     json.RawMessage `json:"source_data,omitempty"`
}

// UpdateIdeaRequest edits the user-editable fields of an idea.
type UpdateIdeaRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
}

// IdeaFilters contains filters for listing ideas.
type IdeaFilters struct {
	Status         IdeaStatus
	ContentType    string
	TargetAudience string
	Search         string
	Limit          int
	Offset         int
}
