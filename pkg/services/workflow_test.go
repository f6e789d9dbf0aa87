package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/audit"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/crypto"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
	"github.com/ekaya-inc/content-engine/pkg/wordpress"
)

func TestBrief_GenerateContentItem(t *testing.T) {
	brief := &models.ContentBrief{ID: uuid.New(), UserID: "user-1", Title: "Primer", Status: models.BriefStatusReadyForReview}
	briefs := newFakeBriefRepo(brief)
	trigger := &fakeTrigger{}
	svc := NewBriefService(briefs, trigger, cache.New(time.Minute, zap.NewNop()), &fakeNotifications{}, &fakeAudit{}, zap.NewNop())

	updated, err := svc.GenerateContentItem(context.Background(), "user-1", brief.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BriefStatusProcessingContentItem, updated.Status)

	calls := trigger.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.WebhookTypeBriefContent, calls[0].Type)
	assert.Equal(t, models.EntityKindBrief, calls[0].EntityKind)

	_, err = svc.GenerateContentItem(context.Background(), "user-1", brief.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidStatus, "a brief already being processed cannot be resubmitted")
}

func TestBrief_GenerateContentItem_RevertsOnDispatchFailure(t *testing.T) {
	brief := &models.ContentBrief{ID: uuid.New(), UserID: "user-1", Title: "Primer", Status: models.BriefStatusReadyForReview}
	briefs := newFakeBriefRepo(brief)
	notifications := &fakeNotifications{}
	trigger := &fakeTrigger{err: apperrors.ErrNoWebhookConfigured}
	svc := NewBriefService(briefs, trigger, cache.New(time.Minute, zap.NewNop()), notifications, &fakeAudit{}, zap.NewNop())

	reverted, err := svc.GenerateContentItem(context.Background(), "user-1", brief.ID)
	require.ErrorIs(t, err, apperrors.ErrNoWebhookConfigured)
	require.NotNil(t, reverted)
	assert.Equal(t, models.BriefStatusReadyForReview, reverted.Status)

	stored, _ := briefs.GetByID(context.Background(), "user-1", brief.ID)
	assert.Equal(t, models.BriefStatusReadyForReview, stored.Status)
	assert.Len(t, notifications.ofType(models.NotificationWebhookFailed), 1)
}

func TestBrief_UpdateOnlyWhileReadyForReview(t *testing.T) {
	brief := &models.ContentBrief{ID: uuid.New(), UserID: "user-1", Title: "Primer", Status: models.BriefStatusContentItemCreated}
	svc := NewBriefService(newFakeBriefRepo(brief), &fakeTrigger{}, cache.New(time.Minute, zap.NewNop()), &fakeNotifications{}, &fakeAudit{}, zap.NewNop())

	_, err := svc.Update(context.Background(), "user-1", brief.ID, &models.UpdateBriefRequest{Title: ptr("New title")})
	require.ErrorIs(t, err, apperrors.ErrInvalidStatus)
}

type fakePublisher struct {
	posts []wordpress.Post
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, post wordpress.Post) (*wordpress.PublishedPost, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.posts = append(p.posts, post)
	return &wordpress.PublishedPost{ID: 42, Link: "https://blog.test/?p=42", Status: "draft"}, nil
}

func TestContentItem_Publish(t *testing.T) {
	approved := &models.ContentItem{ID: uuid.New(), UserID: "user-1", Title: "Primer", Content: "Body", Status: models.ContentItemStatusApproved}
	draft := &models.ContentItem{ID: uuid.New(), UserID: "user-1", Title: "Draft", Status: models.ContentItemStatusDraft}
	items := newFakeContentItemRepo(approved, draft)
	publisher := &fakePublisher{}
	notifications := &fakeNotifications{}

	svc := NewContentItemService(items, newFakeDerivativeRepo(), publisher, &fakeTrigger{},
		cache.New(time.Minute, zap.NewNop()), notifications, &fakeAudit{}, zap.NewNop())

	published, err := svc.Publish(context.Background(), "user-1", approved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContentItemStatusPublished, published.Status)
	require.NotNil(t, published.WordPressPostID)
	assert.Equal(t, int64(42), *published.WordPressPostID)
	require.Len(t, publisher.posts, 1)
	assert.Equal(t, "Primer", publisher.posts[0].Title)
	assert.Len(t, notifications.ofType(models.NotificationPublished), 1)

	_, err = svc.Publish(context.Background(), "user-1", draft.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidStatus)
}

func TestContentItem_PublishWithoutWordPress(t *testing.T) {
	svc := NewContentItemService(newFakeContentItemRepo(), newFakeDerivativeRepo(), nil, &fakeTrigger{},
		cache.New(time.Minute, zap.NewNop()), &fakeNotifications{}, &fakeAudit{}, zap.NewNop())

	_, err := svc.Publish(context.Background(), "user-1", uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotConfigured)
}

func TestContentItem_RequestDerivatives(t *testing.T) {
	item := &models.ContentItem{ID: uuid.New(), UserID: "user-1", Title: "Primer", Status: models.ContentItemStatusApproved}
	trigger := &fakeTrigger{}
	svc := NewContentItemService(newFakeContentItemRepo(item), newFakeDerivativeRepo(), nil, trigger,
		cache.New(time.Minute, zap.NewNop()), &fakeNotifications{}, &fakeAudit{}, zap.NewNop())

	require.NoError(t, svc.RequestDerivatives(context.Background(), "user-1", item.ID, nil))
	calls := trigger.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.WebhookTypeContentItemDerivatives, calls[0].Type)
	assert.Equal(t, []string{"social_post", "ad", "carousel"}, calls[0].Extra["derivative_types"])

	err := svc.RequestDerivatives(context.Background(), "user-1", item.ID, []string{"podcast"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

type fakeWebhookConfigRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*models.WebhookConfiguration
}

func newFakeWebhookConfigRepo() *fakeWebhookConfigRepo {
	return &fakeWebhookConfigRepo{configs: make(map[uuid.UUID]*models.WebhookConfiguration)}
}

func (r *fakeWebhookConfigRepo) Create(ctx context.Context, cfg *models.WebhookConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.ID = uuid.New()
	c := *cfg
	r.configs[cfg.ID] = &c
	return nil
}

func (r *fakeWebhookConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *cfg
	return &c, nil
}

func (r *fakeWebhookConfigRepo) List(ctx context.Context) ([]*models.WebhookConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.WebhookConfiguration, 0, len(r.configs))
	for _, cfg := range r.configs {
		c := *cfg
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeWebhookConfigRepo) ListActiveByType(ctx context.Context, webhookType string) ([]*models.WebhookConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WebhookConfiguration
	for _, cfg := range r.configs {
		if cfg.IsActive && cfg.WebhookType == webhookType {
			c := *cfg
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeWebhookConfigRepo) Update(ctx context.Context, cfg *models.WebhookConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cfg
	r.configs[cfg.ID] = &c
	return nil
}

func (r *fakeWebhookConfigRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, id)
	return nil
}

const testSecretsKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes, base64

func TestWebhookConfig_SecretsAreEncryptedAtRest(t *testing.T) {
	encryptor, err := crypto.NewSecretEncryptor(testSecretsKey)
	require.NoError(t, err)
	repo := newFakeWebhookConfigRepo()
	svc := NewWebhookConfigService(repo, encryptor, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())

	cfg, err := svc.Create(context.Background(), "admin-1", &models.CreateWebhookRequest{
		WebhookType:   models.WebhookTypeIdeaSubmission,
		WebhookURL:    "https://worker.test/hooks/idea",
		SigningSecret: "a-very-long-signing-secret",
	})
	require.NoError(t, err)
	assert.True(t, cfg.HasSecret)
	assert.True(t, cfg.IsActive)

	stored, err := repo.GetByID(context.Background(), cfg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "a-very-long-signing-secret", stored.SigningSecret)

	targets, err := svc.ActiveTargets(context.Background(), models.WebhookTypeIdeaSubmission)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "a-very-long-signing-secret", targets[0].Secret)

	_, err = svc.Update(context.Background(), cfg.ID, &models.UpdateWebhookRequest{IsActive: ptr(false)})
	require.NoError(t, err)
	targets, err = svc.ActiveTargets(context.Background(), models.WebhookTypeIdeaSubmission)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestWebhookConfig_Validation(t *testing.T) {
	svc := NewWebhookConfigService(newFakeWebhookConfigRepo(), nil, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())

	_, err := svc.Create(context.Background(), "admin-1", &models.CreateWebhookRequest{
		WebhookType: "content_everything",
		WebhookURL:  "https://worker.test/hook",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Create(context.Background(), "admin-1", &models.CreateWebhookRequest{
		WebhookType:   models.WebhookTypeIdeaRetry,
		WebhookURL:    "https://worker.test/hook",
		SigningSecret: "a-very-long-signing-secret",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err), "secrets need an encryption key")
}

// TestIdeaWorkflow_EndToEnd submits an idea through the real dispatcher, then
// replays the worker's callback with the echoed callback_data.
func TestIdeaWorkflow_EndToEnd(t *testing.T) {
	var (
		mu        sync.Mutex
		delivered []byte
		signature string
	)
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		delivered, signature = body, r.Header.Get(webhook.SignatureHeader)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer worker.Close()

	encryptor, err := crypto.NewSecretEncryptor(testSecretsKey)
	require.NoError(t, err)
	security := audit.NewSecurityAuditor(zap.NewNop())
	configs := NewWebhookConfigService(newFakeWebhookConfigRepo(), encryptor, security, zap.NewNop())
	_, err = configs.Create(context.Background(), "admin-1", &models.CreateWebhookRequest{
		WebhookType:   models.WebhookTypeIdeaSubmission,
		WebhookURL:    worker.URL,
		SigningSecret: "a-very-long-signing-secret",
	})
	require.NoError(t, err)

	dispatcher := webhook.NewDispatcher(configs, webhook.Config{
		IdeaCallbackURL:    "https://engine.test/api/callbacks/content-idea",
		ContentCallbackURL: "https://engine.test/api/callbacks/content-processing",
		Timeout:            5 * time.Second,
	}, zap.NewNop())

	queryCache := cache.New(time.Minute, zap.NewNop())
	ideas := newFakeIdeaRepo()
	suggestions := newFakeSuggestionRepo()
	notifications := &fakeNotifications{}
	auditLog := &fakeAudit{}
	lifecycle := NewLifecycleService(ideas, suggestions, newFakeGeneralContentRepo(), dispatcher, queryCache,
		notifications, auditLog, LifecycleOptions{}, zap.NewNop())
	ideaSvc := NewIdeaService(ideas, newFakeBriefRepo(), lifecycle, queryCache, auditLog, security, passthroughTx, zap.NewNop())

	idea, err := ideaSvc.Submit(context.Background(), "user-1", &models.CreateIdeaRequest{
		Title:          "Zero trust for agencies",
		ContentType:    models.ContentTypeBlogPost,
		TargetAudience: models.AudienceGovernmentSector,
		SourceType:     models.SourceTypeManual,
	})
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusProcessing, idea.Status)

	mu.Lock()
	body, sig := delivered, signature
	mu.Unlock()
	require.NotEmpty(t, body)
	assert.True(t, webhook.VerifySignature("a-very-long-signing-secret", body, sig))

	var sent struct {
		CallbackURL  string               `json:"callback_url"`
		CallbackData webhook.CallbackData `json:"callback_data"`
	}
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "https://engine.test/api/callbacks/content-idea", sent.CallbackURL)
	assert.Equal(t, idea.ID, sent.CallbackData.EntityID)
	assert.Equal(t, "user-1", sent.CallbackData.UserID)

	before, err := ideaSvc.List(context.Background(), "user-1", models.IdeaFilters{})
	require.NoError(t, err)
	require.Len(t, before.Items, 1)
	assert.Equal(t, models.IdeaStatusProcessing, before.Items[0].Status)

	callbacks := NewCallbackService(&fakeScopes{}, passthroughTx, CallbackRepositories{
		Ideas: ideas, Suggestions: suggestions,
		Briefs: newFakeBriefRepo(), Items: newFakeContentItemRepo(),
		Derivatives: newFakeDerivativeRepo(), General: newFakeGeneralContentRepo(),
	}, queryCache, notifications, auditLog, zap.NewNop())
	_, err = callbacks.Handle(context.Background(), CallbackRouteIdea, &CallbackRequest{
		Status:       CallbackCompleted,
		CallbackData: sent.CallbackData,
		Result:       json.RawMessage(`{"suggestions": [{"title": "Budget season checklist", "relevance_score": 0.8}]}`),
	})
	require.NoError(t, err)

	page, err := ideaSvc.List(context.Background(), "user-1", models.IdeaFilters{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.IdeaStatusProcessed, page.Items[0].Status, "the callback invalidated the cached list")
}

func TestIdeaWorkflow_NoWebhookConfigured(t *testing.T) {
	configs := NewWebhookConfigService(newFakeWebhookConfigRepo(), nil, audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())
	dispatcher := webhook.NewDispatcher(configs, webhook.Config{}, zap.NewNop())
	queryCache := cache.New(time.Minute, zap.NewNop())
	ideas := newFakeIdeaRepo()
	notifications := &fakeNotifications{}
	lifecycle := NewLifecycleService(ideas, newFakeSuggestionRepo(), newFakeGeneralContentRepo(), dispatcher, queryCache,
		notifications, &fakeAudit{}, LifecycleOptions{}, zap.NewNop())
	ideaSvc := NewIdeaService(ideas, newFakeBriefRepo(), lifecycle, queryCache, &fakeAudit{},
		audit.NewSecurityAuditor(zap.NewNop()), passthroughTx, zap.NewNop())

	idea, err := ideaSvc.Submit(context.Background(), "user-1", &models.CreateIdeaRequest{
		Title:          "Zero trust for agencies",
		ContentType:    models.ContentTypeGuide,
		TargetAudience: models.AudiencePrivateSector,
		SourceType:     models.SourceTypeManual,
	})
	require.True(t, errors.Is(err, apperrors.ErrNoWebhookConfigured))
	require.NotNil(t, idea, "the stored idea is returned so the caller can retry")
	assert.Len(t, notifications.ofType(models.NotificationWebhookFailed), 1)
}

func TestIdeaList_RejectsInjection(t *testing.T) {
	ideaSvc := NewIdeaService(newFakeIdeaRepo(), newFakeBriefRepo(), nil, cache.New(time.Minute, zap.NewNop()),
		&fakeAudit{}, audit.NewSecurityAuditor(zap.NewNop()), passthroughTx, zap.NewNop())

	_, err := ideaSvc.List(context.Background(), "user-1", models.IdeaFilters{Search: "1' OR '1'='1' --"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
