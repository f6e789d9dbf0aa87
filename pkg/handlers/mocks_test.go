package handlers

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// mockIdeaService records the last call and returns the configured values.
type mockIdeaService struct {
	idea    *models.ContentIdea
	page    *services.Page[models.ContentIdea]
	brief   *models.ContentBrief
	err     error
	userID  string
	filters models.IdeaFilters
	created *models.CreateIdeaRequest
}

func (m *mockIdeaService) Submit(_ context.Context, userID string, req *models.CreateIdeaRequest) (*models.ContentIdea, error) {
	m.userID, m.created = userID, req
	return m.idea, m.err
}

func (m *mockIdeaService) List(_ context.Context, userID string, filters models.IdeaFilters) (*services.Page[models.ContentIdea], error) {
	m.userID, m.filters = userID, filters
	return m.page, m.err
}

func (m *mockIdeaService) Get(_ context.Context, userID string, _ uuid.UUID) (*models.ContentIdea, error) {
	m.userID = userID
	return m.idea, m.err
}

func (m *mockIdeaService) Update(_ context.Context, userID string, _ uuid.UUID, _ *models.UpdateIdeaRequest) (*models.ContentIdea, error) {
	m.userID = userID
	return m.idea, m.err
}

func (m *mockIdeaService) Discard(_ context.Context, userID string, _ uuid.UUID) (*models.ContentIdea, error) {
	m.userID = userID
	return m.idea, m.err
}

func (m *mockIdeaService) CreateBrief(_ context.Context, userID string, _ uuid.UUID, _ *models.CreateBriefRequest) (*models.ContentBrief, error) {
	m.userID = userID
	return m.brief, m.err
}

// mockLifecycleService returns the configured entities for every retry.
type mockLifecycleService struct {
	idea       *models.ContentIdea
	suggestion *models.ContentSuggestion
	general    *models.GeneralContentItem
	err        error
	retried    []uuid.UUID
}

func (m *mockLifecycleService) RetryIdea(_ context.Context, _ string, id uuid.UUID) (*models.ContentIdea, error) {
	m.retried = append(m.retried, id)
	return m.idea, m.err
}

func (m *mockLifecycleService) RetrySuggestion(_ context.Context, _ string, id uuid.UUID) (*models.ContentSuggestion, error) {
	m.retried = append(m.retried, id)
	return m.suggestion, m.err
}

func (m *mockLifecycleService) RetryGeneralContent(_ context.Context, _ string, id uuid.UUID) (*models.GeneralContentItem, error) {
	m.retried = append(m.retried, id)
	return m.general, m.err
}

func (m *mockLifecycleService) StartIdeaProcessing(_ context.Context, idea *models.ContentIdea) (*models.ContentIdea, error) {
	return idea, m.err
}

func (m *mockLifecycleService) StartGeneralContentProcessing(_ context.Context, item *models.GeneralContentItem) (*models.GeneralContentItem, error) {
	return item, m.err
}

// mockTimeoutService records the kind it was asked to check.
type mockTimeoutService struct {
	result *models.TimeoutCheckResult
	sweep  []*models.TimeoutCheckResult
	err    error
	userID string
	kind   models.EntityKind
	sweeps int
}

func (m *mockTimeoutService) ForceTimeoutCheck(_ context.Context, userID string, kind models.EntityKind) (*models.TimeoutCheckResult, error) {
	m.userID, m.kind = userID, kind
	return m.result, m.err
}

func (m *mockTimeoutService) SweepAll(_ context.Context) ([]*models.TimeoutCheckResult, error) {
	m.sweeps++
	return m.sweep, m.err
}

// mockCleanupService records the options it ran with.
type mockCleanupService struct {
	result     *models.CleanupResult
	candidates *models.CleanupCandidates
	err        error
	opts       *models.CleanupOptions
	days       int
}

func (m *mockCleanupService) RunCleanup(_ context.Context, opts models.CleanupOptions) (*models.CleanupResult, error) {
	m.opts = &opts
	return m.result, m.err
}

func (m *mockCleanupService) FetchCleanupCandidates(_ context.Context, olderThanDays int) (*models.CleanupCandidates, error) {
	m.days = olderThanDays
	return m.candidates, m.err
}

// mockAuditService returns the configured entries.
type mockAuditService struct {
	entries []*models.AuditLogEntry
	filters models.AuditFilters
}

func (m *mockAuditService) Record(context.Context, models.EntityKind, *uuid.UUID, string, map[string]models.FieldChange) {
}

func (m *mockAuditService) List(_ context.Context, filters models.AuditFilters) ([]*models.AuditLogEntry, error) {
	m.filters = filters
	return m.entries, nil
}

// mockCallbackService records the route and request it was handed.
type mockCallbackService struct {
	outcome *services.CallbackOutcome
	err     error
	route   string
	req     *services.CallbackRequest
}

func (m *mockCallbackService) Handle(_ context.Context, route string, req *services.CallbackRequest) (*services.CallbackOutcome, error) {
	m.route, m.req = route, req
	return m.outcome, m.err
}

// mockContentItemService records derivative requests.
type mockContentItemService struct {
	item      *models.ContentItem
	counts    []*models.DerivativeCounts
	err       error
	types     []string
	countIDs  []uuid.UUID
	published uuid.UUID
}

func (m *mockContentItemService) List(context.Context, string, models.ContentItemFilters) (*services.Page[models.ContentItem], error) {
	return nil, m.err
}

func (m *mockContentItemService) Get(context.Context, string, uuid.UUID) (*models.ContentItem, error) {
	return m.item, m.err
}

func (m *mockContentItemService) Update(context.Context, string, uuid.UUID, *models.UpdateContentItemRequest) (*models.ContentItem, error) {
	return m.item, m.err
}

func (m *mockContentItemService) Discard(context.Context, string, uuid.UUID) (*models.ContentItem, error) {
	return m.item, m.err
}

func (m *mockContentItemService) RequestDerivatives(_ context.Context, _ string, _ uuid.UUID, types []string) error {
	m.types = types
	return m.err
}

func (m *mockContentItemService) DerivativeCounts(_ context.Context, _ string, ids []uuid.UUID) ([]*models.DerivativeCounts, error) {
	m.countIDs = ids
	return m.counts, m.err
}

func (m *mockContentItemService) Publish(_ context.Context, _ string, id uuid.UUID) (*models.ContentItem, error) {
	m.published = id
	return m.item, m.err
}

// mockFileService records uploaded content.
type mockFileService struct {
	uploaded *models.UploadedFile
	err      error
	filename string
	content  string
}

func (m *mockFileService) UploadIdeaFile(_ context.Context, _ string, filename string, r io.Reader) (*models.UploadedFile, error) {
	data, _ := io.ReadAll(r)
	m.filename, m.content = filename, string(data)
	return m.uploaded, m.err
}

func (m *mockFileService) UploadDerivativeFile(_ context.Context, _ string, filename string, r io.Reader) (*models.UploadedFile, error) {
	return m.UploadIdeaFile(context.Background(), "", filename, r)
}

func (m *mockFileService) DeleteDerivativeFile(context.Context, string, string) error {
	return m.err
}

// fakeInvalidationSource hands out subscriptions and lets tests publish.
type fakeInvalidationSource struct {
	mu           sync.Mutex
	subscribers  map[int]func(cache.Event)
	next         int
	subscribed   chan struct{}
	unsubscribed chan struct{}
}

func newFakeInvalidationSource() *fakeInvalidationSource {
	return &fakeInvalidationSource{
		subscribers:  map[int]func(cache.Event){},
		subscribed:   make(chan struct{}, 1),
		unsubscribed: make(chan struct{}, 1),
	}
}

func (f *fakeInvalidationSource) Subscribe(fn func(cache.Event)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subscribers[id] = fn
	f.mu.Unlock()
	f.subscribed <- struct{}{}

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
		f.unsubscribed <- struct{}{}
	}
}

func (f *fakeInvalidationSource) publish(e cache.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.subscribers {
		fn(e)
	}
}

// mockDerivativeService records attached files.
type mockDerivativeService struct {
	derivative *models.ContentDerivative
	list       []*models.ContentDerivative
	err        error
	filename   string
	itemID     uuid.UUID
}

func (m *mockDerivativeService) ListByItem(_ context.Context, _ string, itemID uuid.UUID) ([]*models.ContentDerivative, error) {
	m.itemID = itemID
	return m.list, m.err
}

func (m *mockDerivativeService) Update(context.Context, string, uuid.UUID, *models.UpdateDerivativeRequest) (*models.ContentDerivative, error) {
	return m.derivative, m.err
}

func (m *mockDerivativeService) AttachFile(_ context.Context, _ string, _ uuid.UUID, filename string, r io.Reader) (*models.ContentDerivative, error) {
	_, _ = io.Copy(io.Discard, r)
	m.filename = filename
	return m.derivative, m.err
}
