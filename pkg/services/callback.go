package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/jsonutil"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

// Callback routes. Idea submissions and retries report to the idea route,
// every other webhook type to the content processing route.
const (
	CallbackRouteIdea              = "content_idea"
	CallbackRouteContentProcessing = "content_processing"
)

var callbackRoutes = map[string][]models.EntityKind{
	CallbackRouteIdea: {models.EntityKindIdea},
	CallbackRouteContentProcessing: {
		models.EntityKindSuggestion,
		models.EntityKindBrief,
		models.EntityKindContentItem,
		models.EntityKindGeneralContent,
	},
}

// CallbackStatus is the outcome the worker reports.
type CallbackStatus string

const (
	CallbackCompleted CallbackStatus = "completed"
	CallbackFailed    CallbackStatus = "failed"
)

// CallbackRequest is the body the external worker posts when it finishes.
// CallbackData is echoed verbatim from the webhook payload.
type CallbackRequest struct {
	Status       CallbackStatus       `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	CallbackData webhook.CallbackData `json:"callback_data"`
	Result       json.RawMessage      `json:"result,omitempty"`
}

// CallbackOutcome summarizes what a callback changed.
type CallbackOutcome struct {
	EntityType models.EntityKind `json:"entity_type"`
	EntityID   uuid.UUID         `json:"entity_id"`
	Status     string            `json:"status"`
	Created    int               `json:"created"`
}

// CallbackService applies worker results to stored entities.
type CallbackService interface {
	Handle(ctx context.Context, route string, req *CallbackRequest) (*CallbackOutcome, error)
}

type callbackService struct {
	scopes        database.ScopeProvider
	runInTx       TxRunner
	ideas         repositories.IdeaRepository
	suggestions   repositories.SuggestionRepository
	briefs        repositories.BriefRepository
	items         repositories.ContentItemRepository
	derivatives   repositories.DerivativeRepository
	general       repositories.GeneralContentRepository
	cache         cache.Invalidator
	notifications NotificationService
	audit         AuditService
	now           func() time.Time
	logger        *zap.Logger
}

// CallbackRepositories groups the stores a callback can touch.
type CallbackRepositories struct {
	Ideas       repositories.IdeaRepository
	Suggestions repositories.SuggestionRepository
	Briefs      repositories.BriefRepository
	Items       repositories.ContentItemRepository
	Derivatives repositories.DerivativeRepository
	General     repositories.GeneralContentRepository
}

// NewCallbackService creates a new CallbackService. A nil runInTx uses database.RunInTx.
func NewCallbackService(
	scopes database.ScopeProvider,
	runInTx TxRunner,
	repos CallbackRepositories,
	invalidator cache.Invalidator,
	notifications NotificationService,
	auditService AuditService,
	logger *zap.Logger,
) CallbackService {
	if runInTx == nil {
		runInTx = database.RunInTx
	}
	return &callbackService{
		scopes:        scopes,
		runInTx:       runInTx,
		ideas:         repos.Ideas,
		suggestions:   repos.Suggestions,
		briefs:        repos.Briefs,
		items:         repos.Items,
		derivatives:   repos.Derivatives,
		general:       repos.General,
		cache:         invalidator,
		notifications: notifications,
		audit:         auditService,
		now:           time.Now,
		logger:        logger.Named("callbacks"),
	}
}

var _ CallbackService = (*callbackService)(nil)

func (s *callbackService) Handle(ctx context.Context, route string, req *CallbackRequest) (*CallbackOutcome, error) {
	if err := validateCallback(route, req); err != nil {
		return nil, err
	}
	data := req.CallbackData

	scoped, release, err := s.scopes.WithUserScope(ctx, data.UserID)
	if err != nil {
		return nil, fmt.Errorf("acquire user scope: %w", err)
	}
	defer release()
	scoped = models.WithCallbackProvenance(scoped, data.UserID)

	var outcome *CallbackOutcome
	switch data.EntityType {
	case models.EntityKindIdea:
		outcome, err = s.handleIdea(scoped, req)
	case models.EntityKindSuggestion:
		outcome, err = s.handleSuggestion(scoped, req)
	case models.EntityKindBrief:
		outcome, err = s.handleBrief(scoped, req)
	case models.EntityKindContentItem:
		outcome, err = s.handleContentItem(scoped, req)
	case models.EntityKindGeneralContent:
		outcome, err = s.handleGeneralContent(scoped, req)
	}
	if err != nil {
		s.logger.Warn("Callback not applied",
			zap.String("route", route),
			zap.String("entity_type", data.EntityType.String()),
			zap.String("entity_id", data.EntityID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Callback applied",
		zap.String("entity_type", outcome.EntityType.String()),
		zap.String("entity_id", outcome.EntityID.String()),
		zap.String("status", outcome.Status),
		zap.Int("created", outcome.Created))
	return outcome, nil
}

func validateCallback(route string, req *CallbackRequest) error {
	kinds, ok := callbackRoutes[route]
	if !ok {
		return fmt.Errorf("callback route %q: %w", route, apperrors.ErrNotFound)
	}
	if req == nil {
		return apperrors.NewValidationError("body", "callback body is required")
	}
	if req.Status != CallbackCompleted && req.Status != CallbackFailed {
		return apperrors.NewValidationError("status", "must be completed or failed")
	}
	data := req.CallbackData
	if data.UserID == "" || data.EntityID == uuid.Nil {
		return apperrors.NewValidationError("callback_data", "entity_id and user_id are required")
	}
	if !slices.Contains(kinds, data.EntityType) {
		return apperrors.NewValidationError("callback_data.entity_type",
			fmt.Sprintf("%q is not reported on the %s route", data.EntityType, route))
	}
	return nil
}

// checkAttempt rejects callbacks from an attempt that is no longer current.
// A row the timeout checker already failed still accepts its late result.
func checkAttempt(p models.Processable, data webhook.CallbackData) error {
	proc := p.Processing()
	if data.RetryCount != proc.RetryCount {
		return fmt.Errorf("callback for attempt %d of %s %s, current attempt is %d: %w",
			data.RetryCount, p.Kind(), p.EntityID(), proc.RetryCount, apperrors.ErrConflict)
	}
	switch p.CurrentStatus() {
	case models.StatusProcessing, models.StatusFailed:
		return nil
	default:
		return fmt.Errorf("%s %s is %s: %w", p.Kind(), p.EntityID(), p.CurrentStatus(), apperrors.ErrInvalidStatus)
	}
}

func failureMessage(req *CallbackRequest) string {
	if msg := strings.TrimSpace(req.ErrorMessage); msg != "" {
		return msg
	}
	return "processing failed"
}

func decodeResult(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return apperrors.NewValidationError("result", "a completed callback requires a result")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewValidationError("result", err.Error())
	}
	return nil
}

type ideaResult struct {
	Suggestions []struct {
		Title          string          `json:"title"`
		Description    *string         `json:"description"`
		RelevanceScore json.RawMessage `json:"relevance_score"`
	} `json:"suggestions"`
}

func (s *callbackService) handleIdea(ctx context.Context, req *CallbackRequest) (*CallbackOutcome, error) {
	data := req.CallbackData
	idea, err := s.ideas.GetByID(ctx, data.UserID, data.EntityID)
	if err != nil {
		return nil, err
	}
	if err := checkAttempt(idea, data); err != nil {
		return nil, err
	}

	outcome := &CallbackOutcome{EntityType: models.EntityKindIdea, EntityID: idea.ID}
	if req.Status == CallbackFailed {
		msg := failureMessage(req)
		if _, err := s.ideas.UpdateStatus(ctx, data.UserID, idea.ID, models.IdeaStatusFailed, &msg); err != nil {
			return nil, fmt.Errorf("mark idea failed: %w", err)
		}
		outcome.Status = string(models.IdeaStatusFailed)
		s.finish(ctx, idea, string(idea.Status), outcome, idea.Title, msg)
		return outcome, nil
	}

	var result ideaResult
	if err := decodeResult(req.Result, &result); err != nil {
		return nil, err
	}
	suggestions := make([]*models.ContentSuggestion, 0, len(result.Suggestions))
	for i, raw := range result.Suggestions {
		if strings.TrimSpace(raw.Title) == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("result.suggestions[%d].title", i), "is required")
		}
		score, err := jsonutil.FlexibleFloat(raw.RelevanceScore)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("result.suggestions[%d].relevance_score", i), err.Error())
		}
		suggestions = append(suggestions, &models.ContentSuggestion{
			UserID:         data.UserID,
			ContentIdeaID:  idea.ID,
			Title:          raw.Title,
			Description:    raw.Description,
			RelevanceScore: score,
			Status:         models.SuggestionStatusPending,
		})
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if len(suggestions) > 0 {
			if err := s.suggestions.CreateBatch(ctx, suggestions); err != nil {
				return fmt.Errorf("create suggestions: %w", err)
			}
		}
		if _, err := s.ideas.UpdateStatus(ctx, data.UserID, idea.ID, models.IdeaStatusProcessed, nil); err != nil {
			return fmt.Errorf("mark idea processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome.Status = string(models.IdeaStatusProcessed)
	outcome.Created = len(suggestions)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindSuggestion, data.UserID))
	s.finish(ctx, idea, string(idea.Status), outcome, idea.Title,
		fmt.Sprintf("%s generated for %q.", countNoun(len(suggestions), "suggestion"), idea.Title))
	return outcome, nil
}

func (s *callbackService) handleSuggestion(ctx context.Context, req *CallbackRequest) (*CallbackOutcome, error) {
	data := req.CallbackData
	suggestion, err := s.suggestions.GetByID(ctx, data.UserID, data.EntityID)
	if err != nil {
		return nil, err
	}
	if err := checkAttempt(suggestion, data); err != nil {
		return nil, err
	}

	status, message, lastError := models.SuggestionStatusProcessed, fmt.Sprintf("%q was reprocessed.", suggestion.Title), (*string)(nil)
	if req.Status == CallbackFailed {
		msg := failureMessage(req)
		status, message, lastError = models.SuggestionStatusFailed, msg, &msg
	}
	if _, err := s.suggestions.UpdateStatus(ctx, data.UserID, suggestion.ID, status, lastError); err != nil {
		return nil, fmt.Errorf("set suggestion %s: %w", status, err)
	}

	outcome := &CallbackOutcome{EntityType: models.EntityKindSuggestion, EntityID: suggestion.ID, Status: string(status)}
	s.finish(ctx, suggestion, string(suggestion.Status), outcome, suggestion.Title, message)
	return outcome, nil
}

type contentItemResult struct {
	ContentItem struct {
		Title     string          `json:"title"`
		Content   string          `json:"content"`
		WordCount json.RawMessage `json:"word_count"`
		Tags      json.RawMessage `json:"tags"`
		Resources json.RawMessage `json:"resources"`
	} `json:"content_item"`
}

func (s *callbackService) handleBrief(ctx context.Context, req *CallbackRequest) (*CallbackOutcome, error) {
	data := req.CallbackData
	brief, err := s.briefs.GetByID(ctx, data.UserID, data.EntityID)
	if err != nil {
		return nil, err
	}
	if brief.Status != models.BriefStatusProcessingContentItem {
		return nil, fmt.Errorf("brief %s is %s: %w", brief.ID, brief.Status, apperrors.ErrInvalidStatus)
	}

	outcome := &CallbackOutcome{EntityType: models.EntityKindBrief, EntityID: brief.ID}
	if req.Status == CallbackFailed {
		if _, err := s.briefs.UpdateStatus(ctx, data.UserID, brief.ID, models.BriefStatusReadyForReview); err != nil {
			return nil, fmt.Errorf("reset brief: %w", err)
		}
		outcome.Status = string(models.BriefStatusReadyForReview)
		s.complete(ctx, data.UserID, models.EntityKindBrief, brief.ID, string(brief.Status), outcome, false,
			brief.Title, failureMessage(req))
		return outcome, nil
	}

	var result contentItemResult
	if err := decodeResult(req.Result, &result); err != nil {
		return nil, err
	}
	raw := result.ContentItem
	wordCount, err := jsonutil.FlexibleInt(raw.WordCount)
	if err != nil {
		return nil, apperrors.NewValidationError("result.content_item.word_count", err.Error())
	}
	if wordCount == 0 {
		wordCount = models.CountWords(raw.Content)
	}
	item := &models.ContentItem{
		UserID:         data.UserID,
		ContentBriefID: brief.ID,
		Title:          raw.Title,
		Content:        raw.Content,
		WordCount:      wordCount,
		Tags:           jsonutil.FlexibleStringSlice(raw.Tags),
		Resources:      jsonutil.FlexibleStringSlice(raw.Resources),
		Status:         models.ContentItemStatusDraft,
	}
	if item.Title == "" {
		item.Title = brief.Title
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.items.Create(ctx, item); err != nil {
			return fmt.Errorf("create content item: %w", err)
		}
		if _, err := s.briefs.UpdateStatus(ctx, data.UserID, brief.ID, models.BriefStatusContentItemCreated); err != nil {
			return fmt.Errorf("mark brief content_item_created: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome.Status = string(models.BriefStatusContentItemCreated)
	outcome.Created = 1
	s.audit.Record(ctx, models.EntityKindContentItem, &item.ID, models.AuditActionCreate, nil)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindContentItem, data.UserID))
	s.complete(ctx, data.UserID, models.EntityKindBrief, brief.ID, string(brief.Status), outcome, true,
		brief.Title, fmt.Sprintf("A content item was generated from %q.", brief.Title))
	return outcome, nil
}

type derivativesResult struct {
	Derivatives []struct {
		DerivativeType string          `json:"derivative_type"`
		Title          string          `json:"title"`
		ContentType    string          `json:"content_type"`
		Content        string          `json:"content"`
		FileURL        string          `json:"file_url"`
		FilePath       string          `json:"file_path"`
		FileSize       json.RawMessage `json:"file_size"`
		MimeType       string          `json:"mime_type"`
	} `json:"derivatives"`
}

func (s *callbackService) handleContentItem(ctx context.Context, req *CallbackRequest) (*CallbackOutcome, error) {
	data := req.CallbackData
	item, err := s.items.GetByID(ctx, data.UserID, data.EntityID)
	if err != nil {
		return nil, err
	}

	outcome := &CallbackOutcome{EntityType: models.EntityKindContentItem, EntityID: item.ID, Status: string(item.Status)}
	if req.Status == CallbackFailed {
		s.complete(ctx, data.UserID, models.EntityKindContentItem, item.ID, "", outcome, false,
			item.Title, failureMessage(req))
		return outcome, nil
	}

	var result derivativesResult
	if err := decodeResult(req.Result, &result); err != nil {
		return nil, err
	}
	derivatives := make([]*models.ContentDerivative, 0, len(result.Derivatives))
	for i, raw := range result.Derivatives {
		field := fmt.Sprintf("result.derivatives[%d]", i)
		body := models.DerivativeBody{ContentType: models.DerivativeContentType(raw.ContentType)}
		if body.ContentType == "" {
			body.ContentType = models.DerivativeContentText
		}
		switch body.ContentType {
		case models.DerivativeContentText:
			body.Text = &models.TextBody{Content: raw.Content}
		case models.DerivativeContentFile:
			size, err := jsonutil.FlexibleInt(raw.FileSize)
			if err != nil {
				return nil, apperrors.NewValidationError(field+".file_size", err.Error())
			}
			body.File = &models.FileBody{FileURL: raw.FileURL, FilePath: raw.FilePath, FileSize: int64(size), MimeType: raw.MimeType}
		}
		if err := body.Validate(); err != nil {
			return nil, apperrors.NewValidationError(field, err.Error())
		}
		switch raw.DerivativeType {
		case models.DerivativeTypeSocialPost, models.DerivativeTypeAd, models.DerivativeTypeCarousel:
		default:
			return nil, apperrors.NewValidationError(field+".derivative_type", fmt.Sprintf("unknown derivative type %q", raw.DerivativeType))
		}
		derivatives = append(derivatives, &models.ContentDerivative{
			UserID:         data.UserID,
			ContentItemID:  item.ID,
			DerivativeType: raw.DerivativeType,
			Title:          raw.Title,
			Status:         models.DerivativeStatusDraft,
			Body:           body,
		})
	}

	if len(derivatives) > 0 {
		if err := s.derivatives.CreateBatch(ctx, derivatives); err != nil {
			return nil, fmt.Errorf("create derivatives: %w", err)
		}
	}
	outcome.Created = len(derivatives)
	s.cache.Invalidate(ctx, cache.NewKey(models.EntityKindDerivative, data.UserID))
	s.complete(ctx, data.UserID, models.EntityKindContentItem, item.ID, "", outcome, true,
		item.Title, fmt.Sprintf("%s created for %q.", countNoun(len(derivatives), "derivative"), item.Title))
	return outcome, nil
}

type generalContentResult struct {
	Content string `json:"content"`
}

func (s *callbackService) handleGeneralContent(ctx context.Context, req *CallbackRequest) (*CallbackOutcome, error) {
	data := req.CallbackData
	item, err := s.general.GetByID(ctx, data.UserID, data.EntityID)
	if err != nil {
		return nil, err
	}
	if err := checkAttempt(item, data); err != nil {
		return nil, err
	}

	outcome := &CallbackOutcome{EntityType: models.EntityKindGeneralContent, EntityID: item.ID}
	if req.Status == CallbackFailed {
		msg := failureMessage(req)
		if _, err := s.general.UpdateStatus(ctx, data.UserID, item.ID, models.GeneralContentStatusFailed, &msg); err != nil {
			return nil, fmt.Errorf("mark general content failed: %w", err)
		}
		outcome.Status = string(models.GeneralContentStatusFailed)
		s.finish(ctx, item, string(item.Status), outcome, item.Title, msg)
		return outcome, nil
	}

	var result generalContentResult
	if err := decodeResult(req.Result, &result); err != nil {
		return nil, err
	}
	if _, err := s.general.Complete(ctx, data.UserID, item.ID, result.Content); err != nil {
		return nil, fmt.Errorf("complete general content: %w", err)
	}
	outcome.Status = string(models.GeneralContentStatusCompleted)
	s.finish(ctx, item, string(item.Status), outcome, item.Title,
		fmt.Sprintf("%q is ready for review.", item.Title))
	return outcome, nil
}

// finish is complete for processable entities; it also logs the processing time.
func (s *callbackService) finish(ctx context.Context, p models.Processable, oldStatus string, outcome *CallbackOutcome, title, message string) {
	s.logger.Debug("Processing finished",
		zap.String("entity_type", p.Kind().String()),
		zap.String("entity_id", p.EntityID().String()),
		zap.Float64("minutes", elapsedMinutes(p.Processing().ProcessingStartedAt, s.now())))
	succeeded := outcome.Status != models.StatusFailed
	s.complete(ctx, p.OwnerID(), p.Kind(), p.EntityID(), oldStatus, outcome, succeeded, title, message)
}

// complete audits the status change, notifies the owner and invalidates the collection.
func (s *callbackService) complete(ctx context.Context, userID string, kind models.EntityKind, id uuid.UUID, oldStatus string, outcome *CallbackOutcome, succeeded bool, title, message string) {
	if oldStatus != "" && oldStatus != outcome.Status {
		s.audit.Record(ctx, kind, &id, models.AuditActionUpdate, statusChange(oldStatus, outcome.Status))
	}

	notificationType, heading := models.NotificationProcessingCompleted, "Processing completed"
	if !succeeded {
		notificationType, heading = models.NotificationProcessingFailed, "Processing failed"
		message = fmt.Sprintf("%q: %s", title, message)
	}
	s.notifications.Notify(ctx, userID, notificationType, heading, message, kind, &id)
	s.cache.Invalidate(ctx, cache.NewKey(kind, userID))
}
