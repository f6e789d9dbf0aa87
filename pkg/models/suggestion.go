package models

import (
	"time"

	"github.com/google/uuid"
)

// SuggestionStatus is the lifecycle state of a content suggestion.
type SuggestionStatus string

const (
	SuggestionStatusPending      SuggestionStatus = "pending"
	SuggestionStatusProcessing   SuggestionStatus = StatusProcessing
	SuggestionStatusProcessed    SuggestionStatus = "processed"
	SuggestionStatusFailed       SuggestionStatus = StatusFailed
	SuggestionStatusBriefCreated SuggestionStatus = "brief_created"
	SuggestionStatusDiscarded    SuggestionStatus = "discarded"
)

// ContentSuggestion is a system-generated concept derived from an idea.
// ContentIdeaID is a reference, not ownership: suggestions are deleted independently.
type ContentSuggestion struct {
	ID             uuid.UUID        `json:"id"`
	UserID         string           `json:"user_id"`
	ContentIdeaID  uuid.UUID        `json:"content_idea_id"`
	Title          string           `json:"title"`
	Description    *string          `json:"description,omitempty"`
	RelevanceScore float64          `json:"relevance_score"`
	Status         SuggestionStatus `json:"status"`
	ProcessingFields

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var _ Processable = (*ContentSuggestion)(nil)

func (s *ContentSuggestion) EntityID() uuid.UUID          { return s.ID }
func (s *ContentSuggestion) OwnerID() string              { return s.UserID }
func (s *ContentSuggestion) Kind() EntityKind             { return EntityKindSuggestion }
func (s *ContentSuggestion) CurrentStatus() string        { return string(s.Status) }
func (s *ContentSuggestion) Processing() ProcessingFields { return s.ProcessingFields }
