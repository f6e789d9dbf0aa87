package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

type callbackHarness struct {
	scopes        *fakeScopes
	ideas         *fakeIdeaRepo
	suggestions   *fakeSuggestionRepo
	briefs        *fakeBriefRepo
	items         *fakeContentItemRepo
	derivatives   *fakeDerivativeRepo
	general       *fakeGeneralContentRepo
	invalidator   *fakeInvalidator
	notifications *fakeNotifications
	audit         *fakeAudit
	svc           CallbackService
}

func newCallbackHarness(t *testing.T) *callbackHarness {
	t.Helper()
	h := &callbackHarness{
		scopes:        &fakeScopes{},
		ideas:         newFakeIdeaRepo(),
		suggestions:   newFakeSuggestionRepo(),
		briefs:        newFakeBriefRepo(),
		items:         newFakeContentItemRepo(),
		derivatives:   newFakeDerivativeRepo(),
		general:       newFakeGeneralContentRepo(),
		invalidator:   &fakeInvalidator{},
		notifications: &fakeNotifications{},
		audit:         &fakeAudit{},
	}
	h.svc = NewCallbackService(h.scopes, passthroughTx, CallbackRepositories{
		Ideas:       h.ideas,
		Suggestions: h.suggestions,
		Briefs:      h.briefs,
		Items:       h.items,
		Derivatives: h.derivatives,
		General:     h.general,
	}, h.invalidator, h.notifications, h.audit, zap.NewNop())
	return h
}

func callbackFor(kind models.EntityKind, id uuid.UUID, userID string, retryCount int, status CallbackStatus, result string) *CallbackRequest {
	req := &CallbackRequest{
		Status: status,
		CallbackData: webhook.CallbackData{
			EntityType: kind,
			EntityID:   id,
			UserID:     userID,
			RetryCount: retryCount,
		},
	}
	if result != "" {
		req.Result = json.RawMessage(result)
	}
	return req
}

func TestCallback_IdeaCompletedCreatesSuggestions(t *testing.T) {
	h := newCallbackHarness(t)
	idea := processingIdea("user-1", 5*time.Minute)
	h.ideas.put(idea.ID, idea)

	req := callbackFor(models.EntityKindIdea, idea.ID, "user-1", 0, CallbackCompleted, `{
		"suggestions": [
			{"title": "Zero trust for agencies", "description": "Framing for public sector", "relevance_score": "0.92"},
			{"title": "Budget season checklist", "relevance_score": 0.7}
		]
	}`)
	outcome, err := h.svc.Handle(context.Background(), CallbackRouteIdea, req)
	require.NoError(t, err)

	assert.Equal(t, string(models.IdeaStatusProcessed), outcome.Status)
	assert.Equal(t, 2, outcome.Created)

	stored, _ := h.ideas.get(idea.ID)
	assert.Equal(t, models.IdeaStatusProcessed, stored.Status)

	suggestions, err := h.suggestions.ListByIdea(context.Background(), "user-1", idea.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	scores := map[string]float64{}
	for _, s := range suggestions {
		assert.Equal(t, models.SuggestionStatusPending, s.Status)
		scores[s.Title] = s.RelevanceScore
	}
	assert.InDelta(t, 0.92, scores["Zero trust for agencies"], 1e-9)
	assert.InDelta(t, 0.7, scores["Budget season checklist"], 1e-9)

	assert.Equal(t, []string{"user-1"}, h.scopes.users)
	assert.Equal(t, 1, h.scopes.released)
	assert.True(t, h.invalidator.invalidated(cache.NewKey(models.EntityKindIdea, "user-1")))
	assert.True(t, h.invalidator.invalidated(cache.NewKey(models.EntityKindSuggestion, "user-1")))
	assert.Len(t, h.notifications.ofType(models.NotificationProcessingCompleted), 1)

	updates := h.audit.withAction(models.AuditActionUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, models.SourceCallback, updates[0].Source)
}

func TestCallback_IdeaFailedRecordsMessage(t *testing.T) {
	h := newCallbackHarness(t)
	idea := processingIdea("user-1", 0)
	h.ideas.put(idea.ID, idea)

	req := callbackFor(models.EntityKindIdea, idea.ID, "user-1", 0, CallbackFailed, "")
	req.ErrorMessage = "source URL returned 404"
	_, err := h.svc.Handle(context.Background(), CallbackRouteIdea, req)
	require.NoError(t, err)

	stored, _ := h.ideas.get(idea.ID)
	assert.Equal(t, models.IdeaStatusFailed, stored.Status)
	require.NotNil(t, stored.LastErrorMessage)
	assert.Equal(t, "source URL returned 404", *stored.LastErrorMessage)

	failed := h.notifications.ofType(models.NotificationProcessingFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Msg, "source URL returned 404")
}

func TestCallback_LateResultAfterTimeoutIsAccepted(t *testing.T) {
	h := newCallbackHarness(t)
	idea := newTestIdea("user-1", models.IdeaStatusFailed, 1)
	h.ideas.put(idea.ID, idea)

	req := callbackFor(models.EntityKindIdea, idea.ID, "user-1", 1, CallbackCompleted, `{"suggestions": []}`)
	outcome, err := h.svc.Handle(context.Background(), CallbackRouteIdea, req)
	require.NoError(t, err)
	assert.Equal(t, string(models.IdeaStatusProcessed), outcome.Status)
}

func TestCallback_StaleAttemptIsRejected(t *testing.T) {
	h := newCallbackHarness(t)
	idea := newTestIdea("user-1", models.IdeaStatusProcessing, 2)
	h.ideas.put(idea.ID, idea)

	req := callbackFor(models.EntityKindIdea, idea.ID, "user-1", 1, CallbackCompleted, `{"suggestions": []}`)
	_, err := h.svc.Handle(context.Background(), CallbackRouteIdea, req)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	stored, _ := h.ideas.get(idea.ID)
	assert.Equal(t, models.IdeaStatusProcessing, stored.Status)
}

func TestCallback_Validation(t *testing.T) {
	h := newCallbackHarness(t)
	id := uuid.New()

	tests := []struct {
		name  string
		route string
		req   *CallbackRequest
	}{
		{"unknown status", CallbackRouteIdea, callbackFor(models.EntityKindIdea, id, "user-1", 0, "done", "")},
		{"missing user", CallbackRouteIdea, callbackFor(models.EntityKindIdea, id, "", 0, CallbackCompleted, "")},
		{"missing entity", CallbackRouteIdea, callbackFor(models.EntityKindIdea, uuid.Nil, "user-1", 0, CallbackCompleted, "")},
		{"brief on idea route", CallbackRouteIdea, callbackFor(models.EntityKindBrief, id, "user-1", 0, CallbackCompleted, "")},
		{"idea on content route", CallbackRouteContentProcessing, callbackFor(models.EntityKindIdea, id, "user-1", 0, CallbackCompleted, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Handle(context.Background(), tt.route, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
	assert.Empty(t, h.scopes.users, "invalid callbacks never open a scope")

	_, err := h.svc.Handle(context.Background(), "unknown", callbackFor(models.EntityKindIdea, id, "user-1", 0, CallbackCompleted, ""))
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCallback_CompletedRequiresResult(t *testing.T) {
	h := newCallbackHarness(t)
	idea := processingIdea("user-1", 0)
	h.ideas.put(idea.ID, idea)

	_, err := h.svc.Handle(context.Background(), CallbackRouteIdea,
		callbackFor(models.EntityKindIdea, idea.ID, "user-1", 0, CallbackCompleted, ""))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCallback_BriefCompletedCreatesContentItem(t *testing.T) {
	h := newCallbackHarness(t)
	brief := &models.ContentBrief{
		ID: uuid.New(), UserID: "user-1", Title: "Zero trust primer",
		Status: models.BriefStatusProcessingContentItem,
	}
	h.briefs.rows[brief.ID] = brief

	req := callbackFor(models.EntityKindBrief, brief.ID, "user-1", 0, CallbackCompleted, `{
		"content_item": {
			"title": "",
			"content": "Zero trust starts with identity.",
			"word_count": "",
			"tags": "security, identity,,",
			"resources": ["https://example.org/nist"]
		}
	}`)
	outcome, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing, req)
	require.NoError(t, err)
	assert.Equal(t, string(models.BriefStatusContentItemCreated), outcome.Status)

	items := h.items.all()
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "Zero trust primer", item.Title, "falls back to the brief title")
	assert.Equal(t, 5, item.WordCount, "recomputed when the worker sends none")
	assert.Equal(t, []string{"security", "identity"}, item.Tags)
	assert.Equal(t, []string{"https://example.org/nist"}, item.Resources)
	assert.Equal(t, models.ContentItemStatusDraft, item.Status)
	assert.Equal(t, brief.ID, item.ContentBriefID)

	stored, _ := h.briefs.GetByID(context.Background(), "user-1", brief.ID)
	assert.Equal(t, models.BriefStatusContentItemCreated, stored.Status)
	assert.True(t, h.invalidator.invalidated(cache.NewKey(models.EntityKindContentItem, "user-1")))
}

func TestCallback_BriefFailedReturnsToReview(t *testing.T) {
	h := newCallbackHarness(t)
	brief := &models.ContentBrief{ID: uuid.New(), UserID: "user-1", Title: "Primer", Status: models.BriefStatusProcessingContentItem}
	h.briefs.rows[brief.ID] = brief

	_, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing,
		callbackFor(models.EntityKindBrief, brief.ID, "user-1", 0, CallbackFailed, ""))
	require.NoError(t, err)

	stored, _ := h.briefs.GetByID(context.Background(), "user-1", brief.ID)
	assert.Equal(t, models.BriefStatusReadyForReview, stored.Status)
	assert.Len(t, h.notifications.ofType(models.NotificationProcessingFailed), 1)
}

func TestCallback_BriefNotProcessingIsRejected(t *testing.T) {
	h := newCallbackHarness(t)
	brief := &models.ContentBrief{ID: uuid.New(), UserID: "user-1", Status: models.BriefStatusReadyForReview}
	h.briefs.rows[brief.ID] = brief

	_, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing,
		callbackFor(models.EntityKindBrief, brief.ID, "user-1", 0, CallbackCompleted, `{"content_item": {}}`))
	require.ErrorIs(t, err, apperrors.ErrInvalidStatus)
}

func TestCallback_ContentItemDerivatives(t *testing.T) {
	h := newCallbackHarness(t)
	item := &models.ContentItem{ID: uuid.New(), UserID: "user-1", Title: "Primer", Status: models.ContentItemStatusApproved}
	h.items.rows[item.ID] = item

	req := callbackFor(models.EntityKindContentItem, item.ID, "user-1", 0, CallbackCompleted, `{
		"derivatives": [
			{"derivative_type": "social_post", "title": "Teaser", "content": "Read the primer"},
			{"derivative_type": "carousel", "title": "Slides", "content_type": "file",
			 "file_url": "https://cdn.test/d/user-1/1_slides.pdf", "file_path": "user-1/1_slides.pdf",
			 "file_size": "2048", "mime_type": "application/pdf"}
		]
	}`)
	outcome, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing, req)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Created)

	derivatives, err := h.derivatives.ListByItem(context.Background(), "user-1", item.ID)
	require.NoError(t, err)
	require.Len(t, derivatives, 2)
	for _, d := range derivatives {
		assert.Equal(t, models.DerivativeStatusDraft, d.Status)
		require.NoError(t, d.Body.Validate())
		if d.DerivativeType == models.DerivativeTypeCarousel {
			assert.Equal(t, int64(2048), d.Body.File.FileSize)
		}
	}
	assert.True(t, h.invalidator.invalidated(cache.NewKey(models.EntityKindDerivative, "user-1")))
}

func TestCallback_ContentItemRejectsBadDerivative(t *testing.T) {
	h := newCallbackHarness(t)
	item := &models.ContentItem{ID: uuid.New(), UserID: "user-1", Status: models.ContentItemStatusApproved}
	h.items.rows[item.ID] = item

	tests := map[string]string{
		"unknown type":      `{"derivatives": [{"derivative_type": "podcast", "content": "x"}]}`,
		"file without path": `{"derivatives": [{"derivative_type": "ad", "content_type": "file"}]}`,
		"unknown body":      `{"derivatives": [{"derivative_type": "ad", "content_type": "video"}]}`,
	}
	for name, result := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing,
				callbackFor(models.EntityKindContentItem, item.ID, "user-1", 0, CallbackCompleted, result))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
	all, _ := h.derivatives.ListByItem(context.Background(), "user-1", item.ID)
	assert.Empty(t, all)
}

func TestCallback_GeneralContentCompleted(t *testing.T) {
	h := newCallbackHarness(t)
	item := &models.GeneralContentItem{ID: uuid.New(), UserID: "user-1", Title: "Launch ad", Status: models.GeneralContentStatusProcessing}
	item.ProcessingFields = item.Begin(testNow, 30*time.Minute)
	h.general.put(item.ID, item)

	_, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing,
		callbackFor(models.EntityKindGeneralContent, item.ID, "user-1", 0, CallbackCompleted, `{"content": "Ship faster."}`))
	require.NoError(t, err)

	stored, _ := h.general.get(item.ID)
	assert.Equal(t, models.GeneralContentStatusCompleted, stored.Status)
	require.NotNil(t, stored.Content)
	assert.Equal(t, "Ship faster.", *stored.Content)
}

func TestCallback_SuggestionFailed(t *testing.T) {
	h := newCallbackHarness(t)
	s := &models.ContentSuggestion{ID: uuid.New(), UserID: "user-1", Title: "Angle", Status: models.SuggestionStatusProcessing}
	h.suggestions.put(s.ID, s)

	outcome, err := h.svc.Handle(context.Background(), CallbackRouteContentProcessing,
		callbackFor(models.EntityKindSuggestion, s.ID, "user-1", 0, CallbackFailed, ""))
	require.NoError(t, err)
	assert.Equal(t, string(models.SuggestionStatusFailed), outcome.Status)

	stored, _ := h.suggestions.get(s.ID)
	require.NotNil(t, stored.LastErrorMessage)
	assert.Equal(t, "processing failed", *stored.LastErrorMessage)
}
