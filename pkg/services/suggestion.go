package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// SuggestionService manages suggestions generated from ideas.
type SuggestionService interface {
	ListByIdea(ctx context.Context, userID string, ideaID uuid.UUID) ([]*models.ContentSuggestion, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error)
	Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error)
	CreateBrief(ctx context.Context, userID string, id uuid.UUID, req *models.CreateBriefRequest) (*models.ContentBrief, error)
}

type suggestionService struct {
	suggestions repositories.SuggestionRepository
	ideas       repositories.IdeaRepository
	briefs      repositories.BriefRepository
	cache       *cache.QueryCache
	audit       AuditService
	runInTx     TxRunner
	logger      *zap.Logger
}

// NewSuggestionService creates a new SuggestionService. A nil runInTx uses database.RunInTx.
func NewSuggestionService(
	suggestions repositories.SuggestionRepository,
	ideas repositories.IdeaRepository,
	briefs repositories.BriefRepository,
	queryCache *cache.QueryCache,
	auditService AuditService,
	runInTx TxRunner,
	logger *zap.Logger,
) SuggestionService {
	if runInTx == nil {
		runInTx = database.RunInTx
	}
	return &suggestionService{
		suggestions: suggestions,
		ideas:       ideas,
		briefs:      briefs,
		cache:       queryCache,
		audit:       auditService,
		runInTx:     runInTx,
		logger:      logger.Named("suggestion-service"),
	}
}

var _ SuggestionService = (*suggestionService)(nil)

func (s *suggestionService) ListByIdea(ctx context.Context, userID string, ideaID uuid.UUID) ([]*models.ContentSuggestion, error) {
	return cache.Load(ctx, s.cache, cache.NewKey(models.EntityKindSuggestion, userID), "idea:"+ideaID.String(),
		func(ctx context.Context) ([]*models.ContentSuggestion, error) {
			items, err := s.suggestions.ListByIdea(ctx, userID, ideaID)
			if err != nil {
				return nil, fmt.Errorf("list suggestions: %w", err)
			}
			if items == nil {
				items = []*models.ContentSuggestion{}
			}
			return items, nil
		})
}

func (s *suggestionService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error) {
	return s.suggestions.GetByID(ctx, userID, id)
}

func (s *suggestionService) Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error) {
	suggestion, err := s.suggestions.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if suggestion.Status == models.SuggestionStatusDiscarded {
		return nil, fmt.Errorf("suggestion %s is already discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	updated, err := s.suggestions.UpdateStatus(ctx, userID, id, models.SuggestionStatusDiscarded, suggestion.LastErrorMessage)
	if err != nil {
		return nil, fmt.Errorf("discard suggestion: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindSuggestion, &id, models.AuditActionUpdate,
		statusChange(string(suggestion.Status), string(updated.Status)))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindSuggestion, userID))
	return updated, nil
}

func (s *suggestionService) CreateBrief(ctx context.Context, userID string, id uuid.UUID, req *models.CreateBriefRequest) (*models.ContentBrief, error) {
	if req == nil {
		req = &models.CreateBriefRequest{}
	}
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}

	suggestion, err := s.suggestions.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	switch suggestion.Status {
	case models.SuggestionStatusPending, models.SuggestionStatusProcessed:
	default:
		return nil, fmt.Errorf("suggestion %s cannot become a brief while %s: %w", id, suggestion.Status, apperrors.ErrInvalidStatus)
	}

	// The parent idea is a weak reference and may already be cleaned up.
	audience, briefType := "", ""
	idea, err := s.ideas.GetByID(ctx, userID, suggestion.ContentIdeaID)
	switch {
	case err == nil:
		audience, briefType = idea.TargetAudience, idea.ContentType
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	brief := &models.ContentBrief{
		UserID:         userID,
		SourceType:     models.BriefSourceSuggestion,
		SourceID:       suggestion.ID,
		Title:          valueOr(req.Title, suggestion.Title),
		BriefContent:   valueOr(req.BriefContent, valueOr(suggestion.Description, "")),
		BriefType:      valueOr(req.BriefType, briefType),
		TargetAudience: audience,
		Status:         models.BriefStatusReadyForReview,
	}
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.briefs.Create(ctx, brief); err != nil {
			return fmt.Errorf("create brief: %w", err)
		}
		if _, err := s.suggestions.UpdateStatus(ctx, userID, id, models.SuggestionStatusBriefCreated, nil); err != nil {
			return fmt.Errorf("mark suggestion brief_created: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.EntityKindBrief, &brief.ID, models.AuditActionCreate, nil)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindSuggestion, userID))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindBrief, userID))
	return brief, nil
}
