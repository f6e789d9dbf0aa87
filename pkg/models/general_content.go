package models

import (
	"time"

	"github.com/google/uuid"
)

// GeneralContentStatus is the lifecycle state of a standalone content item.
type GeneralContentStatus string

const (
	GeneralContentStatusPending    GeneralContentStatus = "pending"
	GeneralContentStatusProcessing GeneralContentStatus = StatusProcessing
	GeneralContentStatusCompleted  GeneralContentStatus = "completed"
	GeneralContentStatusFailed     GeneralContentStatus = StatusFailed
	GeneralContentStatusApproved   GeneralContentStatus = "approved"
	GeneralContentStatusPublished  GeneralContentStatus = "published"
	GeneralContentStatusDiscarded  GeneralContentStatus = "discarded"
)

// GeneralContentItem is created directly by the user rather than from a brief.
// It keeps its own retry/timeout bookkeeping.
type GeneralContentItem struct {
	ID             uuid.UUID            `json:"id"`
	UserID         string               `json:"user_id"`
	Title          string               `json:"title"`
	Prompt         *string              `json:"prompt,omitempty"`
	Content        *string              `json:"content,omitempty"`
	Category       string               `json:"category"`
	DerivativeType string               `json:"derivative_type"`
	Status         GeneralContentStatus `json:"status"`
	ProcessingFields

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var _ Processable = (*GeneralContentItem)(nil)

func (g *GeneralContentItem) EntityID() uuid.UUID          { return g.ID }
func (g *GeneralContentItem) OwnerID() string              { return g.UserID }
func (g *GeneralContentItem) Kind() EntityKind             { return EntityKindGeneralContent }
func (g *GeneralContentItem) CurrentStatus() string        { return string(g.Status) }
func (g *GeneralContentItem) Processing() ProcessingFields { return g.ProcessingFields }

// CreateGeneralContentRequest is the payload for creating standalone content.
type CreateGeneralContentRequest struct {
	Title          string  `json:"title" validate:"required,max=300"`
	Prompt         *string `json:"prompt,omitempty" validate:"omitempty,max=10000"`
	Category       string  `json:"category" validate:"required,max=100"`
	DerivativeType string  `json:"derivative_type" validate:"required,oneof=social_post ad carousel article"`
}

// GeneralContentFilters contains filters for listing general content.
type GeneralContentFilters struct {
	Status   GeneralContentStatus
	Category string
	Limit    int
	Offset   int
}
