package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
	"github.com/ekaya-inc/content-engine/pkg/wordpress"
)

// maxDerivativeCountIDs bounds a derivative-counts request.
const maxDerivativeCountIDs = 200

// ContentItemService manages long-form content items.
type ContentItemService interface {
	List(ctx context.Context, userID string, filters models.ContentItemFilters) (*Page[models.ContentItem], error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error)
	// Update edits content and review status. word_count is recomputed from content.
	Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateContentItemRequest) (*models.ContentItem, error)
	Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error)
	// RequestDerivatives asks the worker for derivative assets of the given types.
	RequestDerivatives(ctx context.Context, userID string, id uuid.UUID, derivativeTypes []string) error
	DerivativeCounts(ctx context.Context, userID string, itemIDs []uuid.UUID) ([]*models.DerivativeCounts, error)
	// Publish posts an approved item to WordPress.
	Publish(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error)
}

type contentItemService struct {
	items         repositories.ContentItemRepository
	derivatives   repositories.DerivativeRepository
	publisher     wordpress.Publisher
	webhooks      webhookNotifier
	notifications NotificationService
	cache         *cache.QueryCache
	audit         AuditService
	now           func() time.Time
	logger        *zap.Logger
}

// NewContentItemService creates a new ContentItemService. publisher may be nil
// when WordPress is not configured.
func NewContentItemService(
	items repositories.ContentItemRepository,
	derivatives repositories.DerivativeRepository,
	publisher wordpress.Publisher,
	trigger webhook.Trigger,
	queryCache *cache.QueryCache,
	notifications NotificationService,
	auditService AuditService,
	logger *zap.Logger,
) ContentItemService {
	named := logger.Named("content-item-service")
	return &contentItemService{
		items:         items,
		derivatives:   derivatives,
		publisher:     publisher,
		webhooks:      webhookNotifier{trigger: trigger, notifications: notifications, logger: named},
		notifications: notifications,
		cache:         queryCache,
		audit:         auditService,
		now:           time.Now,
		logger:        named,
	}
}

var _ ContentItemService = (*contentItemService)(nil)

func (s *contentItemService) List(ctx context.Context, userID string, filters models.ContentItemFilters) (*Page[models.ContentItem], error) {
	return cache.Load(ctx, s.cache, cache.NewKey(models.EntityKindContentItem, userID),
		listVariant(filters.Status, filters.Limit, filters.Offset),
		func(ctx context.Context) (*Page[models.ContentItem], error) {
			items, total, err := s.items.List(ctx, userID, filters)
			if err != nil {
				return nil, fmt.Errorf("list content items: %w", err)
			}
			return newPage(items, total, filters.Limit, filters.Offset), nil
		})
}

func (s *contentItemService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error) {
	return s.items.GetByID(ctx, userID, id)
}

func (s *contentItemService) Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateContentItemRequest) (*models.ContentItem, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.ContentItemStatusPublished || item.Status == models.ContentItemStatusDiscarded {
		return nil, fmt.Errorf("content item %s is %s: %w", id, item.Status, apperrors.ErrInvalidStatus)
	}

	changes := map[string]models.FieldChange{}
	if req.Title != nil && *req.Title != item.Title {
		changes["title"] = models.FieldChange{Old: item.Title, New: *req.Title}
		item.Title = *req.Title
	}
	if req.Content != nil && *req.Content != item.Content {
		wordCount := models.CountWords(*req.Content)
		changes["word_count"] = models.FieldChange{Old: item.WordCount, New: wordCount}
		item.Content = *req.Content
		item.WordCount = wordCount
	}
	if req.Tags != nil && !slices.Equal(req.Tags, item.Tags) {
		changes["tags"] = models.FieldChange{Old: item.Tags, New: req.Tags}
		item.Tags = req.Tags
	}
	if req.Resources != nil && !slices.Equal(req.Resources, item.Resources) {
		changes["resources"] = models.FieldChange{Old: item.Resources, New: req.Resources}
		item.Resources = req.Resources
	}
	if req.Status != nil && *req.Status != item.Status {
		changes["status"] = models.FieldChange{Old: item.Status, New: *req.Status}
		item.Status = *req.Status
	}
	if len(changes) == 0 {
		return item, nil
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update content item: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindContentItem, &id, models.AuditActionUpdate, changes)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindContentItem, userID))
	return item, nil
}

func (s *contentItemService) Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error) {
	item, err := s.items.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.ContentItemStatusDiscarded {
		return nil, fmt.Errorf("content item %s is already discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	updated, err := s.items.UpdateStatus(ctx, userID, id, models.ContentItemStatusDiscarded)
	if err != nil {
		return nil, fmt.Errorf("discard content item: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindContentItem, &id, models.AuditActionUpdate,
		statusChange(string(item.Status), string(updated.Status)))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindContentItem, userID))
	return updated, nil
}

func (s *contentItemService) RequestDerivatives(ctx context.Context, userID string, id uuid.UUID, derivativeTypes []string) error {
	if len(derivativeTypes) == 0 {
		derivativeTypes = []string{models.DerivativeTypeSocialPost, models.DerivativeTypeAd, models.DerivativeTypeCarousel}
	}
	for _, t := range derivativeTypes {
		switch t {
		case models.DerivativeTypeSocialPost, models.DerivativeTypeAd, models.DerivativeTypeCarousel:
		default:
			return apperrors.NewValidationError("derivative_types", fmt.Sprintf("unknown derivative type %q", t))
		}
	}

	item, err := s.items.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if item.Status == models.ContentItemStatusDiscarded {
		return fmt.Errorf("content item %s is discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	payload := entityPayload(models.WebhookTypeContentItemDerivatives, models.EntityKindContentItem, item.ID, userID, 0, item, s.now())
	payload.Extra = map[string]any{"derivative_types": derivativeTypes}
	return s.webhooks.dispatch(ctx, payload)
}

func (s *contentItemService) DerivativeCounts(ctx context.Context, userID string, itemIDs []uuid.UUID) ([]*models.DerivativeCounts, error) {
	if len(itemIDs) == 0 {
		return []*models.DerivativeCounts{}, nil
	}
	if len(itemIDs) > maxDerivativeCountIDs {
		return nil, apperrors.NewValidationError("item_ids", fmt.Sprintf("at most %d ids per request", maxDerivativeCountIDs))
	}
	counts, err := s.derivatives.CountsByItem(ctx, userID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("get derivative counts: %w", err)
	}
	return counts, nil
}

func (s *contentItemService) Publish(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("wordpress publishing: %w", apperrors.ErrNotConfigured)
	}
	item, err := s.items.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ContentItemStatusApproved {
		return nil, fmt.Errorf("content item %s must be approved before publishing, it is %s: %w",
			id, item.Status, apperrors.ErrInvalidStatus)
	}

	post, err := s.publisher.Publish(ctx, wordpress.Post{Title: item.Title, Content: item.Content})
	if err != nil {
		return nil, fmt.Errorf("publish content item %s: %w", id, err)
	}

	published, err := s.items.MarkPublished(ctx, userID, id, post.ID, post.Link, s.now())
	if err != nil {
		// The post exists in WordPress; surface its id so it can be reconciled.
		s.logger.Error("Published to WordPress but failed to record it",
			zap.String("content_item_id", id.String()),
			zap.Int64("wordpress_post_id", post.ID),
			zap.Error(err))
		return nil, fmt.Errorf("record publication of %s: %w", id, err)
	}

	s.audit.Record(ctx, models.EntityKindContentItem, &id, models.AuditActionUpdate, map[string]models.FieldChange{
		"status":            {Old: item.Status, New: published.Status},
		"wordpress_post_id": {Old: nil, New: post.ID},
	})
	s.notifications.Notify(ctx, userID, models.NotificationPublished, "Content published",
		fmt.Sprintf("%q is live at %s", item.Title, post.Link), models.EntityKindContentItem, &id)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindContentItem, userID))

	s.logger.Info("Content item published",
		zap.String("content_item_id", id.String()),
		zap.Int64("wordpress_post_id", post.ID))
	return published, nil
}
