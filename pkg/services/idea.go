package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/audit"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	sqlcheck "github.com/ekaya-inc/content-engine/pkg/sql"
)

// IdeaService manages user-submitted content ideas.
type IdeaService interface {
	// Submit stores a validated idea and starts processing. When dispatch fails
	// the stored idea is returned together with the error.
	Submit(ctx context.Context, userID string, req *models.CreateIdeaRequest) (*models.ContentIdea, error)
	List(ctx context.Context, userID string, filters models.IdeaFilters) (*Page[models.ContentIdea], error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error)
	Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateIdeaRequest) (*models.ContentIdea, error)
	Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error)
	// CreateBrief approves a processed idea into a brief.
	CreateBrief(ctx context.Context, userID string, id uuid.UUID, req *models.CreateBriefRequest) (*models.ContentBrief, error)
}

type ideaService struct {
	ideas     repositories.IdeaRepository
	briefs    repositories.BriefRepository
	lifecycle LifecycleService
	cache     *cache.QueryCache
	audit     AuditService
	security  *audit.SecurityAuditor
	runInTx   TxRunner
	logger    *zap.Logger
}

// NewIdeaService creates a new IdeaService. A nil runInTx uses database.RunInTx.
func NewIdeaService(
	ideas repositories.IdeaRepository,
	briefs repositories.BriefRepository,
	lifecycle LifecycleService,
	queryCache *cache.QueryCache,
	auditService AuditService,
	security *audit.SecurityAuditor,
	runInTx TxRunner,
	logger *zap.Logger,
) IdeaService {
	if runInTx == nil {
		runInTx = database.RunInTx
	}
	return &ideaService{
		ideas:     ideas,
		briefs:    briefs,
		lifecycle: lifecycle,
		cache:     queryCache,
		audit:     auditService,
		security:  security,
		runInTx:   runInTx,
		logger:    logger.Named("idea-service"),
	}
}

var _ IdeaService = (*ideaService)(nil)

func (s *ideaService) Submit(ctx context.Context, userID string, req *models.CreateIdeaRequest) (*models.ContentIdea, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	source, err := models.DecodeSourceData(req.SourceType, req.SourceData)
	if err != nil {
		return nil, apperrors.NewValidationError("source_data", err.Error())
	}

	idea := &models.ContentIdea{
		UserID:         userID,
		Title:          req.Title,
		Description:    req.Description,
		ContentType:    req.ContentType,
		TargetAudience: req.TargetAudience,
		Status:         models.IdeaStatusSubmitted,
		SourceType:     req.SourceType,
		SourceData:     source,
	}
	if err := s.ideas.Create(ctx, idea); err != nil {
		return nil, fmt.Errorf("create idea: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindIdea, &idea.ID, models.AuditActionCreate, nil)

	s.logger.Info("Idea submitted",
		zap.String("idea_id", idea.ID.String()),
		zap.String("source_type", string(idea.SourceType)))

	return s.lifecycle.StartIdeaProcessing(ctx, idea)
}

func (s *ideaService) List(ctx context.Context, userID string, filters models.IdeaFilters) (*Page[models.ContentIdea], error) {
	if err := screenFilters(ctx, s.security, "ideas.list", map[string]string{"search": filters.Search}); err != nil {
		return nil, err
	}
	variant := listVariant(filters.Status, filters.ContentType, filters.TargetAudience, filters.Search, filters.Limit, filters.Offset)
	return cache.Load(ctx, s.cache, cache.NewKey(models.EntityKindIdea, userID), variant,
		func(ctx context.Context) (*Page[models.ContentIdea], error) {
			items, total, err := s.ideas.List(ctx, userID, filters)
			if err != nil {
				return nil, fmt.Errorf("list ideas: %w", err)
			}
			return newPage(items, total, filters.Limit, filters.Offset), nil
		})
}

func (s *ideaService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error) {
	return s.ideas.GetByID(ctx, userID, id)
}

func (s *ideaService) Update(ctx context.Context, userID string, id uuid.UUID, req *models.UpdateIdeaRequest) (*models.ContentIdea, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	idea, err := s.ideas.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if idea.Status == models.IdeaStatusDiscarded {
		return nil, fmt.Errorf("idea %s is discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	changes := map[string]models.FieldChange{}
	if req.Title != nil && *req.Title != idea.Title {
		changes["title"] = models.FieldChange{Old: idea.Title, New: *req.Title}
		idea.Title = *req.Title
	}
	if req.Description != nil {
		changes["description"] = models.FieldChange{Old: idea.Description, New: *req.Description}
		idea.Description = req.Description
	}
	if len(changes) == 0 {
		return idea, nil
	}

	if err := s.ideas.Update(ctx, idea); err != nil {
		return nil, fmt.Errorf("update idea: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindIdea, &id, models.AuditActionUpdate, changes)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindIdea, userID))
	return idea, nil
}

func (s *ideaService) Discard(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error) {
	idea, err := s.ideas.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if idea.Status == models.IdeaStatusDiscarded {
		return nil, fmt.Errorf("idea %s is already discarded: %w", id, apperrors.ErrInvalidStatus)
	}

	updated, err := s.ideas.UpdateStatus(ctx, userID, id, models.IdeaStatusDiscarded, idea.LastErrorMessage)
	if err != nil {
		return nil, fmt.Errorf("discard idea: %w", err)
	}
	s.audit.Record(ctx, models.EntityKindIdea, &id, models.AuditActionUpdate, statusChange(string(idea.Status), string(updated.Status)))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindIdea, userID))
	return updated, nil
}

func (s *ideaService) CreateBrief(ctx context.Context, userID string, id uuid.UUID, req *models.CreateBriefRequest) (*models.ContentBrief, error) {
	if req == nil {
		req = &models.CreateBriefRequest{}
	}
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}

	idea, err := s.ideas.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if idea.Status != models.IdeaStatusProcessed {
		return nil, fmt.Errorf("idea %s must be processed before a brief is created, it is %s: %w",
			id, idea.Status, apperrors.ErrInvalidStatus)
	}

	brief := &models.ContentBrief{
		UserID:         userID,
		SourceType:     models.BriefSourceIdea,
		SourceID:       idea.ID,
		Title:          valueOr(req.Title, idea.Title),
		BriefContent:   valueOr(req.BriefContent, valueOr(idea.Description, "")),
		BriefType:      valueOr(req.BriefType, idea.ContentType),
		TargetAudience: idea.TargetAudience,
		Status:         models.BriefStatusReadyForReview,
	}
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.briefs.Create(ctx, brief); err != nil {
			return fmt.Errorf("create brief: %w", err)
		}
		if _, err := s.ideas.UpdateStatus(ctx, userID, id, models.IdeaStatusBriefCreated, nil); err != nil {
			return fmt.Errorf("mark idea brief_created: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.EntityKindBrief, &brief.ID, models.AuditActionCreate, nil)
	s.audit.Record(ctx, models.EntityKindIdea, &id, models.AuditActionUpdate,
		statusChange(string(idea.Status), string(models.IdeaStatusBriefCreated)))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindIdea, userID))
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindBrief, userID))
	return brief, nil
}

// screenFilters rejects free-text filters that look like SQL injection and
// reports them to the security log. Queries are parameterized regardless.
func screenFilters(ctx context.Context, security *audit.SecurityAuditor, endpoint string, filters map[string]string) error {
	hits := sqlcheck.CheckFilters(filters)
	if len(hits) == 0 {
		return nil
	}
	for _, hit := range hits {
		security.LogInjectionAttempt(ctx, audit.InjectionDetails{
			ParamName:   hit.ParamName,
			ParamValue:  hit.ParamValue,
			Fingerprint: hit.Fingerprint,
			Endpoint:    endpoint,
		}, "")
	}
	return apperrors.NewValidationError(hits[0].ParamName, "contains disallowed characters")
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// elapsedMinutes is used in log fields for processing durations.
func elapsedMinutes(since *time.Time, now time.Time) float64 {
	if since == nil {
		return 0
	}
	return now.Sub(*since).Minutes()
}
