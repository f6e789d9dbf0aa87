package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

type fakeScopes struct {
	system   int
	released int
	err      error
}

func (f *fakeScopes) WithUserScope(ctx context.Context, _ string) (context.Context, func(), error) {
	return nil, nil, errors.New("user scope not expected")
}

func (f *fakeScopes) WithSystemScope(ctx context.Context) (context.Context, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.system++
	return ctx, func() { f.released++ }, nil
}

type fakeTimeouts struct {
	sweep   []*models.TimeoutCheckResult
	err     error
	checked []models.EntityKind
	userID  string
	sweeps  int
	source  models.ProvenanceContext
}

func (f *fakeTimeouts) ForceTimeoutCheck(ctx context.Context, userID string, kind models.EntityKind) (*models.TimeoutCheckResult, error) {
	f.userID = userID
	f.checked = append(f.checked, kind)
	f.source = models.ProvenanceOrSystem(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return &models.TimeoutCheckResult{Kind: kind, UpdatedCount: 1}, nil
}

func (f *fakeTimeouts) SweepAll(ctx context.Context) ([]*models.TimeoutCheckResult, error) {
	f.sweeps++
	f.source = models.ProvenanceOrSystem(ctx)
	return f.sweep, f.err
}

type fakeCleanup struct {
	result     *models.CleanupResult
	candidates *models.CleanupCandidates
	err        error
	opts       models.CleanupOptions
	days       int
	source     models.ProvenanceContext
}

func (f *fakeCleanup) RunCleanup(ctx context.Context, opts models.CleanupOptions) (*models.CleanupResult, error) {
	f.opts = opts
	f.source = models.ProvenanceOrSystem(ctx)
	return f.result, f.err
}

func (f *fakeCleanup) FetchCleanupCandidates(_ context.Context, olderThanDays int) (*models.CleanupCandidates, error) {
	f.days = olderThanDays
	return f.candidates, f.err
}

type toolHarness struct {
	server   *server.MCPServer
	scopes   *fakeScopes
	timeouts *fakeTimeouts
	cleanup  *fakeCleanup
}

func newToolHarness() *toolHarness {
	h := &toolHarness{
		server:   server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true)),
		scopes:   &fakeScopes{},
		timeouts: &fakeTimeouts{},
		cleanup:  &fakeCleanup{},
	}
	RegisterMaintenanceTools(h.server, &MaintenanceToolDeps{
		Scopes:   h.scopes,
		Timeouts: h.timeouts,
		Cleanup:  h.cleanup,
		Logger:   zap.NewNop(),
	})
	return h
}

func adminContext() context.Context {
	claims := &auth.Claims{}
	claims.Subject = "admin-1"
	return auth.WithClaims(context.Background(), claims, "tok")
}

type toolCallResponse struct {
	Result struct {
		Content []mcp.TextContent `json:"content"`
		IsError bool              `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool sends a tools/call message and decodes the response.
func callTool(t *testing.T, ctx context.Context, s *server.MCPServer, name string, args map[string]any) toolCallResponse {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(ctx, msg))
	require.NoError(t, err)

	var resp toolCallResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// decodeText unmarshals the first text content of a successful call.
func decodeText(t *testing.T, resp toolCallResponse, dst any) {
	t.Helper()
	require.Nil(t, resp.Error)
	require.NotEmpty(t, resp.Result.Content)
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), dst))
}
