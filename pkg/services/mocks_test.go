package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

// fakeProcessingStore is the in-memory state shared by the processable repositories.
type fakeProcessingStore[T any] struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*T
	beginCalls int
}

func newFakeProcessingStore[T any]() *fakeProcessingStore[T] {
	return &fakeProcessingStore[T]{rows: make(map[uuid.UUID]*T)}
}

func (s *fakeProcessingStore[T]) put(id uuid.UUID, row *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *row
	s.rows[id] = &c
}

func (s *fakeProcessingStore[T]) get(id uuid.UUID) (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, false
	}
	c := *row
	return &c, true
}

// timedOut applies the repository's guarded timeout rule to one row.
func timedOut(p models.Processable, userID string, now time.Time) bool {
	if userID != "" && p.OwnerID() != userID {
		return false
	}
	deadline := p.Processing().ProcessingTimeoutAt
	return p.CurrentStatus() == models.StatusProcessing && deadline != nil && deadline.Before(now)
}

type fakeIdeaRepo struct {
	*fakeProcessingStore[models.ContentIdea]
}

func newFakeIdeaRepo(ideas ...*models.ContentIdea) *fakeIdeaRepo {
	r := &fakeIdeaRepo{newFakeProcessingStore[models.ContentIdea]()}
	for _, idea := range ideas {
		r.put(idea.ID, idea)
	}
	return r
}

func (r *fakeIdeaRepo) Create(ctx context.Context, idea *models.ContentIdea) error {
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	r.put(idea.ID, idea)
	return nil
}

func (r *fakeIdeaRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error) {
	idea, ok := r.get(id)
	if !ok || idea.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return idea, nil
}

func (r *fakeIdeaRepo) List(ctx context.Context, userID string, filters models.IdeaFilters) ([]*models.ContentIdea, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContentIdea
	for _, idea := range r.rows {
		if idea.UserID == userID && (filters.Status == "" || idea.Status == filters.Status) {
			c := *idea
			out = append(out, &c)
		}
	}
	return out, len(out), nil
}

func (r *fakeIdeaRepo) Update(ctx context.Context, idea *models.ContentIdea) error {
	r.put(idea.ID, idea)
	return nil
}

func (r *fakeIdeaRepo) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.IdeaStatus, lastError *string) (*models.ContentIdea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idea, ok := r.rows[id]
	if !ok || idea.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	idea.Status = status
	idea.LastErrorMessage = lastError
	c := *idea
	return &c, nil
}

func (r *fakeIdeaRepo) BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.IdeaStatus, expectedRetryCount int, next models.ProcessingFields) (*models.ContentIdea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idea, ok := r.rows[id]
	if !ok || idea.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	if idea.Status != expectedStatus || idea.RetryCount != expectedRetryCount {
		return nil, apperrors.ErrConflict
	}
	r.beginCalls++
	idea.Status = models.IdeaStatusProcessing
	idea.ProcessingFields = next
	c := *idea
	return &c, nil
}

func (r *fakeIdeaRepo) MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TimedOutItem
	for _, idea := range r.rows {
		if !timedOut(idea, userID, now) {
			continue
		}
		msg := message
		idea.Status = models.IdeaStatusFailed
		idea.LastErrorMessage = &msg
		out = append(out, &models.TimedOutItem{ID: idea.ID, UserID: idea.UserID, Title: idea.Title, LastErrorMessage: msg})
	}
	return out, nil
}

type fakeSuggestionRepo struct {
	*fakeProcessingStore[models.ContentSuggestion]
}

func newFakeSuggestionRepo(suggestions ...*models.ContentSuggestion) *fakeSuggestionRepo {
	r := &fakeSuggestionRepo{newFakeProcessingStore[models.ContentSuggestion]()}
	for _, s := range suggestions {
		r.put(s.ID, s)
	}
	return r
}

func (r *fakeSuggestionRepo) CreateBatch(ctx context.Context, suggestions []*models.ContentSuggestion) error {
	for _, s := range suggestions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		r.put(s.ID, s)
	}
	return nil
}

func (r *fakeSuggestionRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error) {
	s, ok := r.get(id)
	if !ok || s.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (r *fakeSuggestionRepo) ListByIdea(ctx context.Context, userID string, ideaID uuid.UUID) ([]*models.ContentSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContentSuggestion
	for _, s := range r.rows {
		if s.UserID == userID && s.ContentIdeaID == ideaID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeSuggestionRepo) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.SuggestionStatus, lastError *string) (*models.ContentSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok || s.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	s.Status = status
	s.LastErrorMessage = lastError
	c := *s
	return &c, nil
}

func (r *fakeSuggestionRepo) BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.SuggestionStatus, expectedRetryCount int, next models.ProcessingFields) (*models.ContentSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok || s.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	if s.Status != expectedStatus || s.RetryCount != expectedRetryCount {
		return nil, apperrors.ErrConflict
	}
	r.beginCalls++
	s.Status = models.SuggestionStatusProcessing
	s.ProcessingFields = next
	c := *s
	return &c, nil
}

func (r *fakeSuggestionRepo) MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TimedOutItem
	for _, s := range r.rows {
		if !timedOut(s, userID, now) {
			continue
		}
		msg := message
		s.Status = models.SuggestionStatusFailed
		s.LastErrorMessage = &msg
		out = append(out, &models.TimedOutItem{ID: s.ID, UserID: s.UserID, Title: s.Title, LastErrorMessage: msg})
	}
	return out, nil
}

type fakeGeneralContentRepo struct {
	*fakeProcessingStore[models.GeneralContentItem]
}

func newFakeGeneralContentRepo(items ...*models.GeneralContentItem) *fakeGeneralContentRepo {
	r := &fakeGeneralContentRepo{newFakeProcessingStore[models.GeneralContentItem]()}
	for _, item := range items {
		r.put(item.ID, item)
	}
	return r
}

func (r *fakeGeneralContentRepo) Create(ctx context.Context, item *models.GeneralContentItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.put(item.ID, item)
	return nil
}

func (r *fakeGeneralContentRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error) {
	item, ok := r.get(id)
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return item, nil
}

func (r *fakeGeneralContentRepo) List(ctx context.Context, userID string, filters models.GeneralContentFilters) ([]*models.GeneralContentItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GeneralContentItem
	for _, item := range r.rows {
		if item.UserID == userID {
			c := *item
			out = append(out, &c)
		}
	}
	return out, len(out), nil
}

func (r *fakeGeneralContentRepo) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.GeneralContentStatus, lastError *string) (*models.GeneralContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	item.Status = status
	item.LastErrorMessage = lastError
	c := *item
	return &c, nil
}

func (r *fakeGeneralContentRepo) Complete(ctx context.Context, userID string, id uuid.UUID, content string) (*models.GeneralContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	item.Status = models.GeneralContentStatusCompleted
	item.Content = &content
	item.LastErrorMessage = nil
	c := *item
	return &c, nil
}

func (r *fakeGeneralContentRepo) BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.GeneralContentStatus, expectedRetryCount int, next models.ProcessingFields) (*models.GeneralContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	if item.Status != expectedStatus || item.RetryCount != expectedRetryCount {
		return nil, apperrors.ErrConflict
	}
	r.beginCalls++
	item.Status = models.GeneralContentStatusProcessing
	item.ProcessingFields = next
	c := *item
	return &c, nil
}

func (r *fakeGeneralContentRepo) MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TimedOutItem
	for _, item := range r.rows {
		if !timedOut(item, userID, now) {
			continue
		}
		msg := message
		item.Status = models.GeneralContentStatusFailed
		item.LastErrorMessage = &msg
		out = append(out, &models.TimedOutItem{ID: item.ID, UserID: item.UserID, Title: item.Title, LastErrorMessage: msg})
	}
	return out, nil
}

type fakeBriefRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.ContentBrief
}

func newFakeBriefRepo(briefs ...*models.ContentBrief) *fakeBriefRepo {
	r := &fakeBriefRepo{rows: make(map[uuid.UUID]*models.ContentBrief)}
	for _, b := range briefs {
		c := *b
		r.rows[b.ID] = &c
	}
	return r
}

func (r *fakeBriefRepo) Create(ctx context.Context, brief *models.ContentBrief) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if brief.ID == uuid.Nil {
		brief.ID = uuid.New()
	}
	c := *brief
	r.rows[brief.ID] = &c
	return nil
}

func (r *fakeBriefRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok || b.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (r *fakeBriefRepo) List(ctx context.Context, userID string, filters models.BriefFilters) ([]*models.ContentBrief, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContentBrief
	for _, b := range r.rows {
		if b.UserID == userID {
			c := *b
			out = append(out, &c)
		}
	}
	return out, len(out), nil
}

func (r *fakeBriefRepo) Update(ctx context.Context, brief *models.ContentBrief) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *brief
	r.rows[brief.ID] = &c
	return nil
}

func (r *fakeBriefRepo) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.BriefStatus) (*models.ContentBrief, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok || b.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	b.Status = status
	c := *b
	return &c, nil
}

type fakeContentItemRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.ContentItem
}

func newFakeContentItemRepo(items ...*models.ContentItem) *fakeContentItemRepo {
	r := &fakeContentItemRepo{rows: make(map[uuid.UUID]*models.ContentItem)}
	for _, item := range items {
		c := *item
		r.rows[item.ID] = &c
	}
	return r
}

func (r *fakeContentItemRepo) Create(ctx context.Context, item *models.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	c := *item
	r.rows[item.ID] = &c
	return nil
}

func (r *fakeContentItemRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	c := *item
	return &c, nil
}

func (r *fakeContentItemRepo) List(ctx context.Context, userID string, filters models.ContentItemFilters) ([]*models.ContentItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContentItem
	for _, item := range r.rows {
		if item.UserID == userID {
			c := *item
			out = append(out, &c)
		}
	}
	return out, len(out), nil
}

func (r *fakeContentItemRepo) Update(ctx context.Context, item *models.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *item
	r.rows[item.ID] = &c
	return nil
}

func (r *fakeContentItemRepo) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.ContentItemStatus) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	item.Status = status
	c := *item
	return &c, nil
}

func (r *fakeContentItemRepo) MarkPublished(ctx context.Context, userID string, id uuid.UUID, postID int64, url string, at time.Time) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok || item.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	item.Status = models.ContentItemStatusPublished
	item.WordPressPostID = &postID
	item.PublishedURL = &url
	item.PublishedAt = &at
	c := *item
	return &c, nil
}

func (r *fakeContentItemRepo) all() []*models.ContentItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ContentItem, 0, len(r.rows))
	for _, item := range r.rows {
		c := *item
		out = append(out, &c)
	}
	return out
}

type fakeDerivativeRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.ContentDerivative
}

func newFakeDerivativeRepo(derivatives ...*models.ContentDerivative) *fakeDerivativeRepo {
	r := &fakeDerivativeRepo{rows: make(map[uuid.UUID]*models.ContentDerivative)}
	for _, d := range derivatives {
		c := *d
		r.rows[d.ID] = &c
	}
	return r
}

func (r *fakeDerivativeRepo) CreateBatch(ctx context.Context, derivatives []*models.ContentDerivative) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range derivatives {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		c := *d
		r.rows[d.ID] = &c
	}
	return nil
}

func (r *fakeDerivativeRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentDerivative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok || d.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *fakeDerivativeRepo) ListByItem(ctx context.Context, userID string, itemID uuid.UUID) ([]*models.ContentDerivative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContentDerivative
	for _, d := range r.rows {
		if d.UserID == userID && d.ContentItemID == itemID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeDerivativeRepo) Update(ctx context.Context, d *models.ContentDerivative) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	r.rows[d.ID] = &c
	return nil
}

func (r *fakeDerivativeRepo) CountsByItem(ctx context.Context, userID string, itemIDs []uuid.UUID) ([]*models.DerivativeCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.DerivativeCounts, 0, len(itemIDs))
	for _, id := range itemIDs {
		counts := &models.DerivativeCounts{ContentItemID: id, ByStatus: map[models.DerivativeStatus]int{}}
		for _, d := range r.rows {
			if d.UserID == userID && d.ContentItemID == id {
				counts.Total++
				counts.ByStatus[d.Status]++
			}
		}
		out = append(out, counts)
	}
	return out, nil
}

// fakeCleanupRepo holds a candidate count per collection.
type fakeCleanupRepo struct {
	mu       sync.Mutex
	counts   map[models.CleanupCollection]int
	deletes  []models.CleanupCollection
	failOn   models.CleanupCollection
	failWith error
}

func newFakeCleanupRepo(counts map[models.CleanupCollection]int) *fakeCleanupRepo {
	return &fakeCleanupRepo{counts: counts}
}

func (r *fakeCleanupRepo) CountCandidates(ctx context.Context, col models.CleanupCollection, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[col], nil
}

func (r *fakeCleanupRepo) DeleteBatch(ctx context.Context, col models.CleanupCollection, cutoff time.Time, batchSize int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, col)
	if col == r.failOn && r.failWith != nil {
		return 0, r.failWith
	}
	n := min(r.counts[col], batchSize)
	r.counts[col] -= n
	return n, nil
}

// fakeTrigger records every payload and answers with err.
type fakeTrigger struct {
	mu       sync.Mutex
	payloads []webhook.Payload
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (t *fakeTrigger) Trigger(ctx context.Context, webhookType string, payload webhook.Payload) (*webhook.DispatchResult, error) {
	if t.entered != nil {
		select {
		case t.entered <- struct{}{}:
		default:
		}
	}
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	payload.Type = webhookType
	t.payloads = append(t.payloads, payload)
	result := &webhook.DispatchResult{WebhookType: webhookType}
	if t.err != nil {
		return result, t.err
	}
	result.Deliveries = []webhook.Delivery{{ConfigID: uuid.New(), URL: "http://worker.test/hook", StatusCode: 200}}
	return result, nil
}

func (t *fakeTrigger) calls() []webhook.Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]webhook.Payload(nil), t.payloads...)
}

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []cache.Key
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, key cache.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
}

func (f *fakeInvalidator) invalidated(key cache.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.keys {
		if k == key {
			return true
		}
	}
	return false
}

type sentNotification struct {
	UserID string
	Type   string
	Title  string
	Kind   models.EntityKind
	Msg    string
}

type fakeNotifications struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifications) Notify(ctx context.Context, userID, notificationType, title, message string, kind models.EntityKind, entityID *uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{UserID: userID, Type: notificationType, Title: title, Kind: kind, Msg: message})
}

func (f *fakeNotifications) List(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	return nil, nil
}

func (f *fakeNotifications) UnreadCount(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	return nil
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (f *fakeNotifications) ofType(notificationType string) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.sent {
		if n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}

type recordedAudit struct {
	Kind     models.EntityKind
	EntityID *uuid.UUID
	Action   string
	Changes  map[string]models.FieldChange
	Source   models.ProvenanceSource
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []recordedAudit
}

func (f *fakeAudit) Record(ctx context.Context, kind models.EntityKind, entityID *uuid.UUID, action string, changes map[string]models.FieldChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recordedAudit{
		Kind: kind, EntityID: entityID, Action: action, Changes: changes,
		Source: models.ProvenanceOrSystem(ctx).Source,
	})
}

func (f *fakeAudit) List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditLogEntry, error) {
	return nil, nil
}

func (f *fakeAudit) withAction(action string) []recordedAudit {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedAudit
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// fakeScopes hands back ctx unchanged and counts acquisitions.
type fakeScopes struct {
	mu       sync.Mutex
	users    []string
	system   int
	released int
	err      error
}

func (f *fakeScopes) WithUserScope(ctx context.Context, userID string) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return ctx, f.release, nil
}

func (f *fakeScopes) WithSystemScope(ctx context.Context) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system++
	return ctx, f.release, nil
}

func (f *fakeScopes) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

// passthroughTx runs fn without a transaction.
func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fixedClock returns a clock stuck at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptr[T any](v T) *T { return &v }

func newTestIdea(userID string, status models.IdeaStatus, retryCount int) *models.ContentIdea {
	return &models.ContentIdea{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            fmt.Sprintf("Idea %s", status),
		Status:           status,
		ProcessingFields: models.ProcessingFields{RetryCount: retryCount},
	}
}
