package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type healthResult struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server version and the state of each dependency.
func RegisterHealthTool(s *server.MCPServer, version string, checks map[string]HealthCheck) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and dependency checks"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()

		result := healthResult{Status: "ok", Version: version}
		if len(checks) > 0 {
			result.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				result.Checks[name] = "unavailable"
				result.Status = "degraded"
				continue
			}
			result.Checks[name] = "ok"
		}

		out, err := jsonResult(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return out, nil
	})
}
