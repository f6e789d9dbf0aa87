package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// RegisterMaintenanceTools adds the timeout and cleanup tools.
func RegisterMaintenanceTools(s *server.MCPServer, deps *MaintenanceToolDeps) {
	registerForceTimeoutCheckTool(s, deps)
	registerCleanupCandidatesTool(s, deps)
	registerRunCleanupTool(s, deps)
}

type timeoutCheckResponse struct {
	Results      []*models.TimeoutCheckResult `json:"results"`
	TotalUpdated int                          `json:"total_updated"`
}

func registerForceTimeoutCheckTool(s *server.MCPServer, deps *MaintenanceToolDeps) {
	tool := mcp.NewTool(
		"force_timeout_check",
		mcp.WithDescription(
			"Mark processing items whose deadline has passed as failed. "+
				"Without user_id every user is swept. Returns the items that were failed. "+
				"A second call right after the first reports zero updates.",
		),
		mcp.WithString(
			"user_id",
			mcp.Description("Restrict the check to one user"),
		),
		mcp.WithString(
			"kind",
			mcp.Description("Entity kind to check; requires user_id"),
			mcp.Enum(kindStrings(services.TimeoutKinds)...),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID := getOptionalString(req, "user_id")
		kind := models.EntityKind(getOptionalString(req, "kind"))
		if kind != "" && userID == "" {
			return NewErrorResult("invalid_parameters", "kind requires user_id; omit both to sweep every user"), nil
		}

		scoped, cleanup, err := AcquireSystemAccess(ctx, deps)
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		var results []*models.TimeoutCheckResult
		if userID == "" {
			results, err = deps.Timeouts.SweepAll(scoped)
		} else {
			kinds := services.TimeoutKinds
			if kind != "" {
				kinds = []models.EntityKind{kind}
			}
			results, err = checkUser(scoped, deps.Timeouts, userID, kinds)
		}
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("timeout check: %w", err)
		}

		resp := timeoutCheckResponse{Results: results}
		for _, r := range results {
			resp.TotalUpdated += r.UpdatedCount
		}
		deps.Logger.Info("MCP timeout check",
			zap.String("user_id", userID),
			zap.Int("total_updated", resp.TotalUpdated))
		return jsonResult(resp)
	})
}

func checkUser(ctx context.Context, timeouts services.TimeoutService, userID string, kinds []models.EntityKind) ([]*models.TimeoutCheckResult, error) {
	results := make([]*models.TimeoutCheckResult, 0, len(kinds))
	for _, kind := range kinds {
		r, err := timeouts.ForceTimeoutCheck(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func registerCleanupCandidatesTool(s *server.MCPServer, deps *MaintenanceToolDeps) {
	tool := mcp.NewTool(
		"cleanup_candidates",
		mcp.WithDescription(
			"Count the rows per collection that a cleanup with the same threshold would delete. Never deletes.",
		),
		mcp.WithNumber(
			"older_than_days",
			mcp.Description(fmt.Sprintf("Age threshold in days (default: %d)", models.DefaultCleanupOlderThanDays)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days, _ := getOptionalInt(req, "older_than_days")

		scoped, cleanup, err := AcquireSystemAccess(ctx, deps)
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		candidates, err := deps.Cleanup.FetchCleanupCandidates(scoped, days)
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		return jsonResult(candidates)
	})
}

func registerRunCleanupTool(s *server.MCPServer, deps *MaintenanceToolDeps) {
	tool := mcp.NewTool(
		"run_cleanup",
		mcp.WithDescription(
			"Delete derivatives, content items, briefs, suggestions and ideas in terminal states older than the threshold. "+
				"Runs in one transaction. Use dry_run=true first to preview the counts.",
		),
		mcp.WithNumber(
			"older_than_days",
			mcp.Description(fmt.Sprintf("Age threshold in days (default: %d)", models.DefaultCleanupOlderThanDays)),
		),
		mcp.WithNumber(
			"batch_size",
			mcp.Description(fmt.Sprintf("Rows deleted per statement (default: %d)", models.DefaultCleanupBatchSize)),
		),
		mcp.WithBoolean(
			"dry_run",
			mcp.Description("Only count qualifying rows (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var opts models.CleanupOptions
		opts.OlderThanDays, _ = getOptionalInt(req, "older_than_days")
		opts.BatchSize, _ = getOptionalInt(req, "batch_size")
		opts.DryRun, _ = getOptionalBool(req, "dry_run")

		scoped, cleanup, err := AcquireSystemAccess(ctx, deps)
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		result, err := deps.Cleanup.RunCleanup(scoped, opts)
		if err != nil {
			if toolErr := serviceErrorResult(err); toolErr != nil {
				return toolErr, nil
			}
			return nil, err
		}
		return jsonResult(result)
	})
}

func kindStrings(kinds []models.EntityKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
