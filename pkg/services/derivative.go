package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// DerivativeService manages derivative assets of content items.
type DerivativeService interface {
	ListByItem(ctx context.Context, userID string, itemID uuid.UUID) ([]*models.ContentDerivative, error)
	Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateDerivativeRequest) (*models.ContentDerivative, error)
	// AttachFile uploads r and turns the derivative into a file derivative.
	AttachFile(ctx context.Context, userID string, id uuid.UUID, filename string, r io.Reader) (*models.ContentDerivative, error)
}

type derivativeService struct {
	derivatives repositories.DerivativeRepository
	files       FileService
	cache       *cache.QueryCache
	audit       AuditService
	logger      *zap.Logger
}

// NewDerivativeService creates a new DerivativeService.
func NewDerivativeService(
	derivatives repositories.DerivativeRepository,
	files FileService,
	queryCache *cache.QueryCache,
	auditService AuditService,
	logger *zap.Logger,
) DerivativeService {
	return &derivativeService{
		derivatives: derivatives,
		files:       files,
		cache:       queryCache,
		audit:       auditService,
		logger:      logger.Named("derivative-service"),
	}
}

var _ DerivativeService = (*derivativeService)(nil)

func (s *derivativeService) ListByItem(ctx context.Context, userID string, itemID uuid.UUID) ([]*models.ContentDerivative, error) {
	return cache.Load(ctx, s.cache, cache.NewKey(models.EntityKindDerivative, userID), "item:"+itemID.String(),
		func(ctx context.Context) ([]*models.ContentDerivative, error) {
			items, err := s.derivatives.ListByItem(ctx, userID, itemID)
			if err != nil {
				return nil, fmt.Errorf("list derivatives: %w", err)
			}
			if items == nil {
				items = []*models.ContentDerivative{}
			}
			return items, nil
		})
}

func (s *derivativeService) Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateDerivativeRequest) (*models.ContentDerivative, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	d, err := s.derivatives.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]models.FieldChange{}
	if req.Status != nil && *req.Status != d.Status {
		changes["status"] = models.FieldChange{Old: d.Status, New: *req.Status}
		d.Status = *req.Status
	}
	if req.Content != nil {
		if d.Body.ContentType != models.DerivativeContentText {
			return nil, apperrors.NewValidationError("content", "file derivatives have no inline content")
		}
		if *req.Content != d.Body.Text.Content {
			changes["content"] = models.FieldChange{Old: d.Body.Text.Content, New: *req.Content}
			d.Body.Text = &models.TextBody{Content: *req.Content}
		}
	}
	if len(changes) == 0 {
		return d, nil
	}

	if err := s.derivatives.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update derivative: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindDerivative, &id, models.AuditActionUpdate, changes)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindDerivative, userID))
	return d, nil
}

func (s *derivativeService) AttachFile(ctx context.Context, userID string, id uuid.UUID, filename string, r io.Reader) (*models.ContentDerivative, error) {
	d, err := s.derivatives.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DerivativeStatusDiscarded {
		return nil, fmt.Errorf("derivative %s is discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	uploaded, err := s.files.UploadDerivativeFile(ctx, userID, filename, r)
	if err != nil {
		return nil, err
	}

	previous := d.Body
	d.Body = models.DerivativeBody{
		ContentType: models.DerivativeContentFile,
		File: &models.FileBody{
			FileURL:  uploaded.PublicURL,
			FilePath: uploaded.Path,
			FileSize: uploaded.Size,
			MimeType: uploaded.Type,
		},
	}
	if err := s.derivatives.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("attach file to derivative: %w", err)
	}

	if previous.File != nil && previous.File.FilePath != uploaded.Path {
		if err := s.files.DeleteDerivativeFile(ctx, userID, previous.File.FilePath); err != nil {
			s.logger.Warn("Failed to remove replaced derivative file",
				zap.String("derivative_id", id.String()),
				zap.String("path", previous.File.FilePath),
				zap.Error(err))
		}
	}

	s.audit.Record(ctx, models.EntityKindDerivative, &id, models.AuditActionUpdate, map[string]models.FieldChange{
		"content_type": {Old: previous.ContentType, New: models.DerivativeContentFile},
		"file_path":    {Old: nil, New: uploaded.Path},
	})
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindDerivative, userID))
	return d, nil
}
