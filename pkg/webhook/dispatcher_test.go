package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

type staticTargets struct {
	targets []Target
	err     error
	calls   int32
}

func (s *staticTargets) ActiveTargets(_ context.Context, _ string) ([]Target, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.targets, s.err
}

type capture struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (c *capture) server(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, r)
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func testConfig() Config {
	return Config{
		IdeaCallbackURL:    "https://engine.example.com/api/callbacks/content_idea",
		ContentCallbackURL: "https://engine.example.com/api/callbacks/content_processing",
		Timeout:            2 * time.Second,
		MaxConcurrency:     2,
	}
}

func ideaPayload() Payload {
	return Payload{
		EntityKind: models.EntityKindIdea,
		EntityID:   uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		UserID:     "user-1",
		RetryCount: 3,
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Entity:     map[string]any{"title": "Zero trust"},
	}
}

func TestTrigger_NoConfigurations(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(&staticTargets{}, testConfig(), zap.NewNop())
	result, err := d.Trigger(context.Background(), models.WebhookTypeIdeaRetry, ideaPayload())

	require.ErrorIs(t, err, apperrors.ErrNoWebhookConfigured)
	require.NotNil(t, result)
	assert.Empty(t, result.Deliveries)
	assert.Zero(t, atomic.LoadInt32(&hits), "no network call without configuration")
}

func TestTrigger_PostsToEveryTarget(t *testing.T) {
	c := &capture{}
	srvA := c.server(t, http.StatusOK)
	srvB := c.server(t, http.StatusAccepted)

	targets := &staticTargets{targets: []Target{
		{ID: uuid.New(), URL: srvA.URL + "/hook"},
		{ID: uuid.New(), URL: srvB.URL + "/hook"},
	}}
	d := NewDispatcher(targets, testConfig(), zap.NewNop())

	result, err := d.Trigger(context.Background(), models.WebhookTypeIdeaRetry, ideaPayload())
	require.NoError(t, err)
	assert.Equal(t, 2, c.count())
	assert.Equal(t, 2, result.Succeeded())

	var body map[string]any
	require.NoError(t, json.Unmarshal(c.bodies[0], &body))
	assert.Equal(t, "content_idea_retry", body["type"])
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", body["content_idea_id"])
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body["timestamp"])
	assert.Equal(t, "https://engine.example.com/api/callbacks/content_idea", body["callback_url"])

	data, ok := body["callback_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "content_idea", data["entity_type"])
	assert.Equal(t, "content_idea_retry", data["webhook_type"])
	assert.Equal(t, float64(3), data["retry_count"])

	assert.Equal(t, "application/json", c.requests[0].Header.Get("Content-Type"))
	assert.Empty(t, c.requests[0].Header.Get(SignatureHeader))
}

func TestTrigger_PartialFailureIsSuccess(t *testing.T) {
	c := &capture{}
	ok := c.server(t, http.StatusOK)
	failing := c.server(t, http.StatusInternalServerError)

	targets := &staticTargets{targets: []Target{
		{ID: uuid.New(), URL: failing.URL},
		{ID: uuid.New(), URL: ok.URL},
	}}
	d := NewDispatcher(targets, testConfig(), zap.NewNop())

	result, err := d.Trigger(context.Background(), models.WebhookTypeIdeaRetry, ideaPayload())
	require.NoError(t, err)
	require.Len(t, result.Deliveries, 2)
	assert.False(t, result.Deliveries[0].OK())
	assert.Equal(t, http.StatusInternalServerError, result.Deliveries[0].StatusCode)
	assert.True(t, result.Deliveries[1].OK())
}

func TestTrigger_AllFailed(t *testing.T) {
	c := &capture{}
	failing := c.server(t, http.StatusBadGateway)

	targets := &staticTargets{targets: []Target{
		{ID: uuid.New(), URL: failing.URL},
		{ID: uuid.New(), URL: "http://127.0.0.1:1/unreachable"},
	}}
	d := NewDispatcher(targets, testConfig(), zap.NewNop())

	result, err := d.Trigger(context.Background(), models.WebhookTypeGeneralContentRetry, ideaPayload())
	require.ErrorIs(t, err, apperrors.ErrWebhookDeliveryFailed)
	assert.Zero(t, result.Succeeded())
	assert.Len(t, result.Deliveries, 2)
}

func TestTrigger_SignsWhenSecretConfigured(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusOK)
	secret := "0123456789abcdef0123"

	d := NewDispatcher(&staticTargets{targets: []Target{{ID: uuid.New(), URL: srv.URL, Secret: secret}}}, testConfig(), zap.NewNop())
	_, err := d.Trigger(context.Background(), models.WebhookTypeBriefContent, ideaPayload())
	require.NoError(t, err)

	sig := c.requests[0].Header.Get(SignatureHeader)
	assert.True(t, VerifySignature(secret, c.bodies[0], sig))
	assert.False(t, VerifySignature("wrong-secret-value", c.bodies[0], sig))
}

func TestTrigger_UsesContentCallbackForNonIdeaTypes(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusOK)

	d := NewDispatcher(&staticTargets{targets: []Target{{ID: uuid.New(), URL: srv.URL}}}, testConfig(), zap.NewNop())
	p := ideaPayload()
	p.EntityKind = models.EntityKindGeneralContent
	_, err := d.Trigger(context.Background(), models.WebhookTypeGeneralContentRetry, p)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(c.bodies[0], &body))
	assert.Equal(t, "https://engine.example.com/api/callbacks/content_processing", body["callback_url"])
	assert.Contains(t, body, "general_content_id")
}

func TestTrigger_SurvivesCallerCancellation(t *testing.T) {
	c := &capture{}
	srv := c.server(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(&staticTargets{targets: []Target{{ID: uuid.New(), URL: srv.URL}}}, testConfig(), zap.NewNop())
	_, err := d.Trigger(ctx, models.WebhookTypeIdeaRetry, ideaPayload())
	require.NoError(t, err)
	assert.Equal(t, 1, c.count())
}

func TestTrigger_TargetLookupError(t *testing.T) {
	d := NewDispatcher(&staticTargets{err: errors.New("db down")}, testConfig(), zap.NewNop())
	_, err := d.Trigger(context.Background(), models.WebhookTypeIdeaRetry, ideaPayload())
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNoWebhookConfigured))
}

func TestTrigger_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}))
	defer srv.Close()

	targets := make([]Target, 6)
	for i := range targets {
		targets[i] = Target{ID: uuid.New(), URL: srv.URL}
	}
	d := NewDispatcher(&staticTargets{targets: targets}, testConfig(), zap.NewNop())

	result, err := d.Trigger(context.Background(), models.WebhookTypeIdeaRetry, ideaPayload())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Succeeded())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
