package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

// LifecycleOptions bounds retries and processing time.
type LifecycleOptions struct {
	MaxRetries        int
	ProcessingTimeout time.Duration
}

func (o LifecycleOptions) withDefaults() LifecycleOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = models.MaxRetries
	}
	if o.ProcessingTimeout <= 0 {
		o.ProcessingTimeout = models.DefaultProcessingTimeout
	}
	return o
}

// LifecycleService moves processable entities into processing and hands them
// to the external worker.
//
// A retry is rejected before any mutation when the entity has used its retries
// (apperrors.ErrRetryLimitExceeded) or is not in a retryable state
// (apperrors.ErrInvalidStatus). An accepted retry is persisted, then
// dispatched. A failed dispatch does not roll the status back: the updated
// entity is returned together with the dispatch error and the timeout checker
// reconciles it. The collection cache key is invalidated in both cases.
type LifecycleService interface {
	RetryIdea(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error)
	RetrySuggestion(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error)
	RetryGeneralContent(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error)

	// StartIdeaProcessing dispatches a freshly submitted idea. The retry counter is not touched.
	StartIdeaProcessing(ctx context.Context, idea *models.ContentIdea) (*models.ContentIdea, error)
	StartGeneralContentProcessing(ctx context.Context, item *models.GeneralContentItem) (*models.GeneralContentItem, error)
}

// Statuses a retry may start from, besides processing rows past their deadline.
var (
	ideaRetryStatuses           = []string{string(models.IdeaStatusSubmitted), string(models.IdeaStatusProcessed), string(models.IdeaStatusFailed)}
	suggestionRetryStatuses     = []string{string(models.SuggestionStatusPending), string(models.SuggestionStatusProcessed), string(models.SuggestionStatusFailed)}
	generalContentRetryStatuses = []string{string(models.GeneralContentStatusPending), string(models.GeneralContentStatusCompleted), string(models.GeneralContentStatusFailed)}
)

type lifecycleService struct {
	ideas       repositories.IdeaRepository
	suggestions repositories.SuggestionRepository
	general     repositories.GeneralContentRepository
	webhooks    webhookNotifier
	cache       cache.Invalidator
	audit       AuditService
	opts        LifecycleOptions
	inflight    singleflight.Group
	now         func() time.Time
	logger      *zap.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	ideas repositories.IdeaRepository,
	suggestions repositories.SuggestionRepository,
	general repositories.GeneralContentRepository,
	trigger webhook.Trigger,
	invalidator cache.Invalidator,
	notifications NotificationService,
	audit AuditService,
	opts LifecycleOptions,
	logger *zap.Logger,
) LifecycleService {
	named := logger.Named("lifecycle")
	return &lifecycleService{
		ideas:       ideas,
		suggestions: suggestions,
		general:     general,
		webhooks:    webhookNotifier{trigger: trigger, notifications: notifications, logger: named},
		cache:       invalidator,
		audit:       audit,
		opts:        opts.withDefaults(),
		now:         time.Now,
		logger:      named,
	}
}

var _ LifecycleService = (*lifecycleService)(nil)

// processTarget binds the generic retry/start flow to one entity type.
type processTarget[T models.Processable] struct {
	kind        models.EntityKind
	webhookType string
	statuses    []string
	load        func(ctx context.Context) (T, error)
	begin       func(ctx context.Context, expectedStatus string, expectedRetryCount int, next models.ProcessingFields) (T, error)
}

func (s *lifecycleService) RetryIdea(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error) {
	return retryEntity(ctx, s, userID, id, processTarget[*models.ContentIdea]{
		kind:        models.EntityKindIdea,
		webhookType: models.WebhookTypeIdeaRetry,
		statuses:    ideaRetryStatuses,
		load: func(ctx context.Context) (*models.ContentIdea, error) {
			return s.ideas.GetByID(ctx, userID, id)
		},
		begin: func(ctx context.Context, status string, retryCount int, next models.ProcessingFields) (*models.ContentIdea, error) {
			return s.ideas.BeginProcessing(ctx, userID, id, models.IdeaStatus(status), retryCount, next)
		},
	})
}

func (s *lifecycleService) RetrySuggestion(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error) {
	return retryEntity(ctx, s, userID, id, processTarget[*models.ContentSuggestion]{
		kind:        models.EntityKindSuggestion,
		webhookType: models.WebhookTypeSuggestionRetry,
		statuses:    suggestionRetryStatuses,
		load: func(ctx context.Context) (*models.ContentSuggestion, error) {
			return s.suggestions.GetByID(ctx, userID, id)
		},
		begin: func(ctx context.Context, status string, retryCount int, next models.ProcessingFields) (*models.ContentSuggestion, error) {
			return s.suggestions.BeginProcessing(ctx, userID, id, models.SuggestionStatus(status), retryCount, next)
		},
	})
}

func (s *lifecycleService) RetryGeneralContent(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error) {
	return retryEntity(ctx, s, userID, id, processTarget[*models.GeneralContentItem]{
		kind:        models.EntityKindGeneralContent,
		webhookType: models.WebhookTypeGeneralContentRetry,
		statuses:    generalContentRetryStatuses,
		load: func(ctx context.Context) (*models.GeneralContentItem, error) {
			return s.general.GetByID(ctx, userID, id)
		},
		begin: func(ctx context.Context, status string, retryCount int, next models.ProcessingFields) (*models.GeneralContentItem, error) {
			return s.general.BeginProcessing(ctx, userID, id, models.GeneralContentStatus(status), retryCount, next)
		},
	})
}

func (s *lifecycleService) StartIdeaProcessing(ctx context.Context, idea *models.ContentIdea) (*models.ContentIdea, error) {
	return startEntity(ctx, s, idea, models.WebhookTypeIdeaSubmission,
		func(ctx context.Context, next models.ProcessingFields) (*models.ContentIdea, error) {
			return s.ideas.BeginProcessing(ctx, idea.UserID, idea.ID, idea.Status, idea.RetryCount, next)
		})
}

func (s *lifecycleService) StartGeneralContentProcessing(ctx context.Context, item *models.GeneralContentItem) (*models.GeneralContentItem, error) {
	return startEntity(ctx, s, item, models.WebhookTypeGeneralContent,
		func(ctx context.Context, next models.ProcessingFields) (*models.GeneralContentItem, error) {
			return s.general.BeginProcessing(ctx, item.UserID, item.ID, item.Status, item.RetryCount, next)
		})
}

// retryEntity collapses concurrent retries of one entity by the same user
// into a single execution.
func retryEntity[T models.Processable](ctx context.Context, s *lifecycleService, userID string, id uuid.UUID, t processTarget[T]) (T, error) {
	key := "retry:" + t.kind.String() + ":" + userID + ":" + id.String()
	v, err, shared := s.inflight.Do(key, func() (any, error) {
		return retryOnce(ctx, s, userID, id, t)
	})
	if shared {
		s.logger.Debug("Joined in-flight retry",
			zap.String("entity_type", t.kind.String()),
			zap.String("entity_id", id.String()))
	}
	entity, _ := v.(T)
	return entity, err
}

func retryOnce[T models.Processable](ctx context.Context, s *lifecycleService, userID string, id uuid.UUID, t processTarget[T]) (T, error) {
	var zero T
	if userID == "" {
		return zero, fmt.Errorf("retry %s: %w", t.kind, apperrors.ErrForbidden)
	}

	entity, err := t.load(ctx)
	if err != nil {
		return zero, err
	}

	proc := entity.Processing()
	if proc.RetryCount >= s.opts.MaxRetries {
		metrics.RecordRetry(t.kind.String(), "rejected")
		return zero, fmt.Errorf("%s %s has used %d of %d retries: %w",
			t.kind, id, proc.RetryCount, s.opts.MaxRetries, apperrors.ErrRetryLimitExceeded)
	}

	now := s.now()
	status := entity.CurrentStatus()
	if !slices.Contains(t.statuses, status) && !models.TimedOut(entity, now) {
		metrics.RecordRetry(t.kind.String(), "rejected")
		return zero, fmt.Errorf("%s %s cannot be retried while %s: %w", t.kind, id, status, apperrors.ErrInvalidStatus)
	}

	next := proc.BeginRetry(now, s.opts.ProcessingTimeout)
	updated, err := t.begin(ctx, status, proc.RetryCount, next)
	if err != nil {
		return zero, err
	}
	metrics.RecordRetry(t.kind.String(), "accepted")

	s.audit.Record(ctx, t.kind, &id, models.AuditActionRetry, map[string]models.FieldChange{
		"status":      {Old: status, New: models.StatusProcessing},
		"retry_count": {Old: proc.RetryCount, New: next.RetryCount},
	})

	dispatchErr := s.webhooks.dispatch(ctx, processingPayload(t.webhookType, updated, userID, now))
	s.cache.Invalidate(ctx, cache.NewKey(t.kind, userID))
	if dispatchErr != nil {
		metrics.RecordRetry(t.kind.String(), "dispatch_failed")
		return updated, dispatchErr
	}

	s.logger.Info("Retry dispatched",
		zap.String("entity_type", t.kind.String()),
		zap.String("entity_id", id.String()),
		zap.Int("retry_count", next.RetryCount))
	return updated, nil
}

func startEntity[T models.Processable](ctx context.Context, s *lifecycleService, entity T, webhookType string, begin func(ctx context.Context, next models.ProcessingFields) (T, error)) (T, error) {
	now := s.now()
	next := entity.Processing().Begin(now, s.opts.ProcessingTimeout)
	updated, err := begin(ctx, next)
	if err != nil {
		return entity, err
	}

	dispatchErr := s.webhooks.dispatch(ctx, processingPayload(webhookType, updated, updated.OwnerID(), now))
	s.cache.Invalidate(ctx, cache.NewKey(updated.Kind(), updated.OwnerID()))
	if dispatchErr != nil {
		return updated, dispatchErr
	}

	s.logger.Info("Processing dispatched",
		zap.String("entity_type", updated.Kind().String()),
		zap.String("entity_id", updated.EntityID().String()))
	return updated, nil
}
