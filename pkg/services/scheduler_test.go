package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/config"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

type recordingCleanup struct {
	opts   models.CleanupOptions
	source models.ProvenanceSource
}

func (r *recordingCleanup) RunCleanup(ctx context.Context, opts models.CleanupOptions) (*models.CleanupResult, error) {
	r.opts = opts
	r.source = models.ProvenanceOrSystem(ctx).Source
	return &models.CleanupResult{}, nil
}

func (r *recordingCleanup) FetchCleanupCandidates(ctx context.Context, olderThanDays int) (*models.CleanupCandidates, error) {
	return &models.CleanupCandidates{}, nil
}

func TestScheduler_RunTimeoutSweepUsesSystemScope(t *testing.T) {
	h := newTimeoutHarness(t)
	h.ideas.put(uuid.New(), processingIdea("user-1", time.Hour))
	scopes := &fakeScopes{}

	s := NewScheduler(scopes, h.svc, &recordingCleanup{}, config.SchedulerConfig{}, zap.NewNop())
	require.NoError(t, s.RunTimeoutSweep(context.Background()))

	assert.Equal(t, 1, scopes.system)
	assert.Equal(t, 1, scopes.released)
	timeouts := h.audit.withAction(models.AuditActionTimeout)
	require.Len(t, timeouts, 1)
	assert.Equal(t, models.SourceScheduler, timeouts[0].Source)
}

func TestScheduler_RunScheduledCleanupUsesConfig(t *testing.T) {
	cleanup := &recordingCleanup{}
	cfg := config.SchedulerConfig{CleanupOlderThanDays: 45, CleanupBatchSize: 250}

	s := NewScheduler(&fakeScopes{}, newTimeoutHarness(t).svc, cleanup, cfg, zap.NewNop())
	_, err := s.RunScheduledCleanup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.CleanupOptions{OlderThanDays: 45, BatchSize: 250}, cleanup.opts)
	assert.Equal(t, models.SourceScheduler, cleanup.source)
}

func TestScheduler_ScopeFailure(t *testing.T) {
	scopes := &fakeScopes{err: errors.New("pool exhausted")}
	s := NewScheduler(scopes, newTimeoutHarness(t).svc, &recordingCleanup{}, config.SchedulerConfig{}, zap.NewNop())

	err := s.RunTimeoutSweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool exhausted")
}

func TestScheduler_RunRejectsInvalidCron(t *testing.T) {
	cfg := config.SchedulerConfig{TimeoutSweepCron: "every five minutes"}
	s := NewScheduler(&fakeScopes{}, newTimeoutHarness(t).svc, &recordingCleanup{}, cfg, zap.NewNop())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_sweep")
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	cfg := config.SchedulerConfig{TimeoutSweepCron: "*/5 * * * *", CleanupCron: ""}
	s := NewScheduler(&fakeScopes{}, newTimeoutHarness(t).svc, &recordingCleanup{}, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
