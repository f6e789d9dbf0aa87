package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions.
const (
	AuditActionCreate  = "create"
	AuditActionUpdate  = "update"
	AuditActionDelete  = "delete"
	AuditActionRetry   = "retry"
	AuditActionTimeout = "timeout"
	AuditActionCleanup = "cleanup"
)

// AuditLogEntry represents a single entry in the audit_log table.
// EntityID is nil for collection-wide actions such as cleanup.
type AuditLogEntry struct {
	ID         uuid.UUID  `json:"id"`
	EntityType EntityKind `json:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Action     string     `json:"action"`

	Source ProvenanceSource `json:"source"`
	UserID *string          `json:"user_id,omitempty"` // nil for system operations

	ChangedFields map[string]FieldChange `json:"changed_fields,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FieldChange represents the old and new values for a changed field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditFilters contains filters for listing audit entries.
type AuditFilters struct {
	EntityType EntityKind
	EntityID   *uuid.UUID
	Action     string
	Limit      int
}
