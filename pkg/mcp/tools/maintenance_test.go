package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

func TestForceTimeoutCheck_SweepsEveryUser(t *testing.T) {
	h := newToolHarness()
	h.timeouts.sweep = []*models.TimeoutCheckResult{
		{Kind: models.EntityKindIdea, UpdatedCount: 2},
		{Kind: models.EntityKindGeneralContent, UpdatedCount: 1},
	}

	resp := callTool(t, adminContext(), h.server, "force_timeout_check", nil)

	var out timeoutCheckResponse
	decodeText(t, resp, &out)
	assert.Equal(t, 3, out.TotalUpdated)
	assert.Equal(t, 1, h.timeouts.sweeps)
	assert.Equal(t, models.ProvenanceContext{Source: models.SourceMCP, UserID: "admin-1"}, h.timeouts.source)
	assert.Equal(t, 1, h.scopes.system)
	assert.Equal(t, 1, h.scopes.released)
}

func TestForceTimeoutCheck_OneUser(t *testing.T) {
	h := newToolHarness()

	resp := callTool(t, adminContext(), h.server, "force_timeout_check", map[string]any{"user_id": "user-9"})

	var out timeoutCheckResponse
	decodeText(t, resp, &out)
	assert.Equal(t, "user-9", h.timeouts.userID)
	assert.Equal(t, services.TimeoutKinds, h.timeouts.checked)
	assert.Equal(t, len(services.TimeoutKinds), out.TotalUpdated)
	assert.Zero(t, h.timeouts.sweeps)
}

func TestForceTimeoutCheck_KindRequiresUser(t *testing.T) {
	h := newToolHarness()

	resp := callTool(t, adminContext(), h.server, "force_timeout_check", map[string]any{"kind": "content_idea"})

	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "invalid_parameters")
	assert.Zero(t, h.scopes.system)
}

func TestForceTimeoutCheck_RequiresClaims(t *testing.T) {
	h := newToolHarness()

	resp := callTool(t, context.Background(), h.server, "force_timeout_check", nil)

	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "authentication_required")
	assert.Zero(t, h.timeouts.sweeps)
}

func TestRunCleanup_PassesOptions(t *testing.T) {
	h := newToolHarness()
	h.cleanup.result = &models.CleanupResult{
		Counts:       map[models.CleanupCollection]int{models.CleanupIdeas: 4},
		TotalCleaned: 4,
		DryRun:       true,
	}

	resp := callTool(t, adminContext(), h.server, "run_cleanup", map[string]any{
		"older_than_days": 30,
		"batch_size":      200,
		"dry_run":         true,
	})

	var out models.CleanupResult
	decodeText(t, resp, &out)
	assert.Equal(t, 4, out.TotalCleaned)
	assert.Equal(t, models.CleanupOptions{OlderThanDays: 30, BatchSize: 200, DryRun: true}, h.cleanup.opts)
	assert.Equal(t, models.SourceMCP, h.cleanup.source.Source)
}

func TestRunCleanup_ValidationErrorIsToolResult(t *testing.T) {
	h := newToolHarness()
	h.cleanup.err = apperrors.NewValidationError("cleanup", "older_than_days must be at least 1")

	resp := callTool(t, adminContext(), h.server, "run_cleanup", map[string]any{"older_than_days": -1})

	require.Nil(t, resp.Error)
	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "validation_error")
}

func TestRunCleanup_SystemFailureIsProtocolError(t *testing.T) {
	h := newToolHarness()
	h.cleanup.err = errors.New("connection reset")

	resp := callTool(t, adminContext(), h.server, "run_cleanup", nil)

	require.NotNil(t, resp.Error)
	assert.Equal(t, 1, h.scopes.released)
}

func TestCleanupCandidates(t *testing.T) {
	h := newToolHarness()
	h.cleanup.candidates = &models.CleanupCandidates{OlderThanDays: 60, Total: 12}

	resp := callTool(t, adminContext(), h.server, "cleanup_candidates", map[string]any{"older_than_days": 60})

	var out models.CleanupCandidates
	decodeText(t, resp, &out)
	assert.Equal(t, 12, out.Total)
	assert.Equal(t, 60, h.cleanup.days)
}

func TestMaintenanceTools_ScopeFailure(t *testing.T) {
	h := newToolHarness()
	h.scopes.err = errors.New("pool closed")

	resp := callTool(t, adminContext(), h.server, "cleanup_candidates", nil)

	require.NotNil(t, resp.Error)
	assert.Zero(t, h.cleanup.days)
}
