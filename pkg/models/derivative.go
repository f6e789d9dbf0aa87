package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DerivativeStatus is the state of a derivative asset.
type DerivativeStatus string

const (
	DerivativeStatusDraft     DerivativeStatus = "draft"
	DerivativeStatusApproved  DerivativeStatus = "approved"
	DerivativeStatusPublished DerivativeStatus = "published"
	DerivativeStatusDiscarded DerivativeStatus = "discarded"
)

// IsValid returns true if the status is a known derivative status.
func (s DerivativeStatus) IsValid() bool {
	switch s {
	case DerivativeStatusDraft, DerivativeStatusApproved, DerivativeStatusPublished, DerivativeStatusDiscarded:
		return true
	default:
		return false
	}
}

// Derivative types.
const (
	DerivativeTypeSocialPost = "social_post"
	DerivativeTypeAd         = "ad"
	DerivativeTypeCarousel   = "carousel"
)

// DerivativeContentType is the tag selecting the DerivativeBody variant.
type DerivativeContentType string

const (
	DerivativeContentText DerivativeContentType = "text"
	DerivativeContentFile DerivativeContentType = "file"
)

// TextBody is an inline text derivative.
type TextBody struct {
	Content string `json:"content"`
}

// FileBody is a file-based derivative stored in object storage.
type FileBody struct {
	FileURL  string `json:"file_url"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// DerivativeBody is a tagged union keyed by DerivativeContentType.
type DerivativeBody struct {
	ContentType DerivativeContentType
	Text        *TextBody
	File        *FileBody
}

// Validate checks that exactly the variant matching ContentType is set.
func (b DerivativeBody) Validate() error {
	switch b.ContentType {
	case DerivativeContentText:
		if b.Text == nil || b.File != nil {
			return fmt.Errorf("derivative body does not match content_type %q", b.ContentType)
		}
	case DerivativeContentFile:
		if b.File == nil || b.Text != nil {
			return fmt.Errorf("derivative body does not match content_type %q", b.ContentType)
		}
		if b.File.FilePath == "" {
			return fmt.Errorf("file derivative requires file_path")
		}
	default:
		return fmt.Errorf("unknown derivative content_type %q", b.ContentType)
	}
	return nil
}

// MarshalJSON flattens the active variant next to the content_type tag.
func (b DerivativeBody) MarshalJSON() ([]byte, error) {
	out := map[string]any{"content_type": b.ContentType}
	switch {
	case b.Text != nil:
		out["content"] = b.Text.Content
	case b.File != nil:
		out["file_url"] = b.File.FileURL
		out["file_path"] = b.File.FilePath
		out["file_size"] = b.File.FileSize
		out["mime_type"] = b.File.MimeType
	}
	return json.Marshal(out)
}

// ContentDerivative is a repurposed short-form asset generated from a content item.
type ContentDerivative struct {
	ID             uuid.UUID        `json:"id"`
	UserID         string           `json:"user_id"`
	ContentItemID  uuid.UUID        `json:"content_item_id"`
	DerivativeType string           `json:"derivative_type"`
	Title          string           `json:"title"`
	Status         DerivativeStatus `json:"status"`
	Body           DerivativeBody   `json:"body"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// UpdateDerivativeRequest changes a derivative's status or text.
type UpdateDerivativeRequest struct {
	Status  *DerivativeStatus `json:"status,omitempty" validate:"omitempty,oneof=draft approved published discarded"`
	Content *string           `json:"content,omitempty"`
}
