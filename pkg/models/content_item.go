package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentItemStatus is the review/approval/publish state of a content item.
type ContentItemStatus string

const (
	ContentItemStatusDraft     ContentItemStatus = "draft"
	ContentItemStatusInReview  ContentItemStatus = "in_review"
	ContentItemStatusApproved  ContentItemStatus = "approved"
	ContentItemStatusPublished ContentItemStatus = "published"
	ContentItemStatusDiscarded ContentItemStatus = "discarded"
)

// IsValid returns true if the status is a known content item status.
func (s ContentItemStatus) IsValid() bool {
	switch s {
	case ContentItemStatusDraft, ContentItemStatusInReview, ContentItemStatusApproved,
		ContentItemStatusPublished, ContentItemStatusDiscarded:
		return true
	default:
		return false
	}
}

// ContentItem is long-form content generated from a brief.
type ContentItem struct {
	ID              uuid.UUID         `json:"id"`
	UserID          string            `json:"user_id"`
	ContentBriefID  uuid.UUID         `json:"content_brief_id"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	WordCount       int               `json:"word_count"`
	Tags            []string          `json:"tags"`
	Resources       []string          `json:"resources"`
	Status          ContentItemStatus `json:"status"`
	WordPressPostID *int64            `json:"wordpress_post_id,omitempty"`
	PublishedURL    *string           `json:"published_url,omitempty"`
	PublishedAt     *time.Time        `json:"published_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// UpdateContentItemRequest edits a content item.
type UpdateContentItemRequest struct {
	Title     *string            `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Content   *string            `json:"content,omitempty"`
	Tags      []string           `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	Resources []string           `json:"resources,omitempty"`
	Status    *ContentItemStatus `json:"status,omitempty" validate:"omitempty,oneof=draft in_review approved"`
}

// ContentItemFilters contains filters for listing content items.
type ContentItemFilters struct {
	Status ContentItemStatus
	Limit  int
	Offset int
}

// CountWords returns the number of whitespace-separated words in content.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// DerivativeCounts summarizes the derivatives of one content item.
type DerivativeCounts struct {
	ContentItemID uuid.UUID                `json:"content_item_id"`
	Total         int                      `json:"total"`
	ByStatus      map[DerivativeStatus]int `json:"by_status"`
}
