package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

// BriefService manages content briefs.
type BriefService interface {
	List(ctx context.Context, userID string, filters models.BriefFilters) (*Page[models.ContentBrief], error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error)
	Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateBriefRequest) (*models.ContentBrief, error)
	Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error)

	// GenerateContentItem moves a brief to processing_content_item and asks the
	// worker for a content item. Briefs have no deadline, so a failed dispatch
	// puts the brief back to ready_for_review.
	GenerateContentItem(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error)
}

type briefService struct {
	briefs   repositories.BriefRepository
	webhooks webhookNotifier
	cache    *cache.QueryCache
	audit    AuditService
	now      func() time.Time
	logger   *zap.Logger
}

// NewBriefService creates a new BriefService.
func NewBriefService(
	briefs repositories.BriefRepository,
	trigger webhook.Trigger,
	queryCache *cache.QueryCache,
	notifications NotificationService,
	auditService AuditService,
	logger *zap.Logger,
) BriefService {
	named := logger.Named("brief-service")
	return &briefService{
		briefs:   briefs,
		webhooks: webhookNotifier{trigger: trigger, notifications: notifications, logger: named},
		cache:    queryCache,
		audit:    auditService,
		now:      time.Now,
		logger:   named,
	}
}

var _ BriefService = (*briefService)(nil)

func (s *briefService) List(ctx context.Context, userID string, filters models.BriefFilters) (*Page[models.ContentBrief], error) {
	return cache.Load(ctx, s.cache, cache.NewKey(models.EntityKindBrief, userID),
		listVariant(filters.Status, filters.Limit, filters.Offset),
		func(ctx context.Context) (*Page[models.ContentBrief], error) {
			items, total, err := s.briefs.List(ctx, userID, filters)
			if err != nil {
				return nil, fmt.Errorf("list briefs: %w", err)
			}
			return newPage(items, total, filters.Limit, filters.Offset), nil
		})
}

func (s *briefService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error) {
	return s.briefs.GetByID(ctx, userID, id)
}

func (s *briefService) Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateBriefRequest) (*models.ContentBrief, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	brief, err := s.briefs.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if brief.Status != models.BriefStatusReadyForReview {
		return nil, fmt.Errorf("brief %s can only be edited while ready for review: %w", id, apperrors.ErrInvalidStatus)
	}

	changes := map[string]models.FieldChange{}
	apply := func(field string, dst *string, src *string) {
		if src != nil && *src != *dst {
			changes[field] = models.FieldChange{Old: *dst, New: *src}
			*dst = *src
		}
	}
	apply("title", &brief.Title, req.Title)
	apply("brief_content", &brief.BriefContent, req.BriefContent)
	apply("brief_type", &brief.BriefType, req.BriefType)
	apply("target_audience", &brief.TargetAudience, req.TargetAudience)
	if len(changes) == 0 {
		return brief, nil
	}

	if err := s.briefs.Update(ctx, brief); err != nil {
		return nil, fmt.Errorf("update brief: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindBrief, &id, models.AuditActionUpdate, changes)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindBrief, userID))
	return brief, nil
}

func (s *briefService) Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error) {
	brief, err := s.briefs.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if brief.Status == models.BriefStatusDiscarded {
		return nil, fmt.Errorf("brief %s is already discarded: %w", id, apperrors.ErrInvalidStatus)
	}
	return s.transition(ctx, brief, models.BriefStatusDiscarded)
}

func (s *briefService) GenerateContentItem(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error) {
	brief, err := s.briefs.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if brief.Status != models.BriefStatusReadyForReview {
		return nil, fmt.Errorf("brief %s is %s: %w", id, brief.Status, apperrors.ErrInvalidStatus)
	}

	updated, err := s.transition(ctx, brief, models.BriefStatusProcessingContentItem)
	if err != nil {
		return nil, err
	}

	payload := entityPayload(models.WebhookTypeBriefContent, models.EntityKindBrief, updated.ID, userID, 0, updated, s.now())
	if dispatchErr := s.webhooks.dispatch(ctx, payload); dispatchErr != nil {
		reverted, err := s.transition(ctx, updated, models.BriefStatusReadyForReview)
		if err != nil {
			s.logger.Error("Failed to revert brief after dispatch failure",
				zap.String("brief_id", id.String()),
				zap.Error(err))
			return updated, dispatchErr
		}
		return reverted, dispatchErr
	}
	return updated, nil
}

func (s *briefService) transition(ctx context.Context, brief *models.ContentBrief, to models.BriefStatus) (*models.ContentBrief, error) {
	updated, err := s.briefs.UpdateStatus(ctx, brief.UserID, brief.ID, to)
	if err != nil {
		return nil, fmt.Errorf("set brief %s to %s: %w", brief.ID, to, err)
	}
	id := brief.ID
	s.audit.Record(ctx, models.EntityKindBrief, &id, models.AuditActionUpdate, statusChange(string(brief.Status), string(to)))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindBrief, brief.UserID))
	return updated, nil
}
