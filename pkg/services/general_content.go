package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// GeneralContentService manages standalone content items.
type GeneralContentService interface {
	// Create stores the item and starts processing. When dispatch fails the
	// stored item is returned together with the error.
	Create(ctx context.Context, userID string, req *models.CreateGeneralContentRequest) (*models.GeneralContentItem, error)
	List(ctx context.Context, userID string, filters models.GeneralContentFilters) (*Page[models.GeneralContentItem], error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error)
	Discard(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error)
}

type generalContentService struct {
	repo      repositories.GeneralContentRepository
	lifecycle LifecycleService
	cache     *cache.QueryCache
	audit     AuditService
	logger    *zap.Logger
}

// NewGeneralContentService creates a new GeneralContentService.
func NewGeneralContentService(
	repo repositories.GeneralContentRepository,
	lifecycle LifecycleService,
	queryCache *cache.QueryCache,
	auditService AuditService,
	logger *zap.Logger,
) GeneralContentService {
	return &generalContentService{
		repo:      repo,
		lifecycle: lifecycle,
		cache:     queryCache,
		audit:     auditService,
		logger:    logger.Named("general-content-service"),
	}
}

var _ GeneralContentService = (*generalContentService)(nil)

func (s *generalContentService) Create(ctx context.Context, userID string, req *models.CreateGeneralContentRequest) (*models.GeneralContentItem, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	item := &models.GeneralContentItem{
		UserID:         userID,
		Title:          req.Title,
		Prompt:         req.Prompt,
		Category:       req.Category,
		DerivativeType: req.DerivativeType,
		Status:         models.GeneralContentStatusPending,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create general content: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindGeneralContent, &item.ID, models.AuditActionCreate, nil)

	return s.lifecycle.StartGeneralContentProcessing(ctx, item)
}

func (s *generalContentService) List(ctx context.Context, userID string, filters models.GeneralContentFilters) (*Page[models.GeneralContentItem], error) {
	return cache.Load(ctx, s.cache, cache.NewKey(models.EntityKindGeneralContent, userID),
		listVariant(filters.Status, filters.Category, filters.Limit, filters.Offset),
		func(ctx context.Context) (*Page[models.GeneralContentItem], error) {
			items, total, err := s.repo.List(ctx, userID, filters)
			if err != nil {
				return nil, fmt.Errorf("list general content: %w", err)
			}
			return newPage(items, total, filters.Limit, filters.Offset), nil
		})
}

func (s *generalContentService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *generalContentService) Discard(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error) {
	item, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.GeneralContentStatusDiscarded {
		return nil, fmt.Errorf("general content %s is already discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	updated, err := s.repo.UpdateStatus(ctx, userID, id, models.GeneralContentStatusDiscarded, item.LastErrorMessage)
	if err != nil {
		return nil, fmt.Errorf("discard general content: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindGeneralContent, &id, models.AuditActionUpdate,
		statusChange(string(item.Status), string(updated.Status)))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindGeneralContent, userID))
	return updated, nil
}
