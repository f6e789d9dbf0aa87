package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// AuditService records entity changes in the audit log.
// It extracts provenance (source, user) from context. Audit writes never fail
// the operation they describe.
type AuditService interface {
	// Record logs action on an entity. entityID is nil for collection-wide actions.
	Record(ctx context.Context, kind models.EntityKind, entityID *uuid.UUID, action string, changes map[string]models.FieldChange)

	// List returns entries matching filters, newest first.
	List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditLogEntry, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, kind models.EntityKind, entityID *uuid.UUID, action string, changes map[string]models.FieldChange) {
	prov := models.ProvenanceOrSystem(ctx)

	entry := &models.AuditLogEntry{
		EntityType:    kind,
		EntityID:      entityID,
		Action:        action,
		Source:        prov.Source,
		ChangedFields: changes,
	}
	if prov.UserID != "" {
		userID := prov.UserID
		entry.UserID = &userID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		fields := []zap.Field{
			zap.String("entity_type", kind.String()),
			zap.String("action", action),
			zap.Error(err),
		}
		if entityID != nil {
			fields = append(fields, zap.String("entity_id", entityID.String()))
		}
		s.logger.Error("Failed to create audit log entry", fields...)
	}
}

func (s *auditService) List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditLogEntry, error) {
	return s.repo.List(ctx, filters)
}

// statusChange is the changed-fields map for a status transition.
func statusChange(from, to string) map[string]models.FieldChange {
	return map[string]models.FieldChange{"status": {Old: from, New: to}}
}
