package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
)

// CallLogger records every MCP tool call with its caller, outcome and duration.
type CallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallLogger creates a CallLogger.
func NewCallLogger(logger *zap.Logger) *CallLogger {
	return &CallLogger{logger: logger.Named("mcp-calls")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (c *CallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *CallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *CallLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := c.elapsed(id)
	ok := result == nil || !result.IsError

	metrics.RecordToolCall(req.Params.Name, ok, duration.Seconds())
	c.logger.Info("MCP tool call",
		zap.String("tool", req.Params.Name),
		zap.String("user_id", auth.GetUserIDFromContext(ctx)),
		zap.Bool("success", ok),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
}

func (c *CallLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	duration := c.elapsed(id)
	metrics.RecordToolCall(req.Params.Name, false, duration.Seconds())
	c.logger.Warn("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.String("user_id", auth.GetUserIDFromContext(ctx)),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Error(err),
	)
}

func (c *CallLogger) elapsed(id any) time.Duration {
	if v, ok := c.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}
