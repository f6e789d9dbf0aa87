package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveMCP(t *testing.T, reqBody, respBody string) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The wrapped handler must still see the full request body.
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, reqBody, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
	rec := httptest.NewRecorder()
	MCPRequestLogger(zap.New(core))(handler).ServeHTTP(rec, req)

	assert.Equal(t, respBody, rec.Body.String())
	return logs
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"run_cleanup","arguments":{"older_than_days":90,"dry_run":true}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`,
		)

		require.Equal(t, 2, logs.Len())
		requestLog := logs.All()[0]
		assert.Equal(t, "MCP request", requestLog.Message)
		assert.Equal(t, "tools/call", requestLog.ContextMap()["method"])
		assert.Equal(t, "run_cleanup", requestLog.ContextMap()["tool"])

		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response success", responseLog.Message)
		assert.NotNil(t, responseLog.ContextMap()["duration"])
	})

	t.Run("logs protocol error", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`,
			`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"tool not found"}}`,
		)

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response error", responseLog.Message)
		assert.Equal(t, int64(-32602), responseLog.ContextMap()["error_code"])
		assert.Equal(t, "tool not found", responseLog.ContextMap()["error_message"])
	})

	t.Run("logs tool error result", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"force_timeout_check","arguments":{"kind":"bogus"}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"unknown kind"}]}}`,
		)

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, "MCP tool error", logs.All()[1].Message)
	})

	t.Run("skips response log for non-JSON responses", func(t *testing.T) {
		logs := serveMCP(t,
			`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			"event: message\ndata: {}\n\n",
		)

		assert.Equal(t, 1, logs.Len())
	})

	t.Run("nil logger passes through", func(t *testing.T) {
		called := false
		handler := MCPRequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", nil))
		assert.True(t, called)
	})
}

func TestSanitizeArguments(t *testing.T) {
	args := map[string]any{
		"older_than_days": float64(30),
		"api_key":         "abc",
		"signing_secret":  "super-secret-value",
		"note":            strings.Repeat("x", 300),
	}

	got := sanitizeArguments(args)

	assert.Equal(t, float64(30), got["older_than_days"])
	assert.Equal(t, "[REDACTED]", got["api_key"])
	assert.Equal(t, "[REDACTED]", got["signing_secret"])
	assert.Len(t, got["note"], maxLoggedArgumentLength+3)
	assert.Nil(t, sanitizeArguments(nil))
}
