package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// toolAccessError is an access failure the caller should see as a tool result.
type toolAccessError struct {
	code    string
	message string
}

func (e *toolAccessError) Error() string { return e.message }

// AsToolAccessResult converts access errors into tool results. Returns nil
// for any other error.
func AsToolAccessResult(err error) *mcp.CallToolResult {
	var accessErr *toolAccessError
	if errors.As(err, &accessErr) {
		return NewErrorResult(accessErr.code, accessErr.message)
	}
	return nil
}

// AcquireSystemAccess opens a system scope for a maintenance tool and tags it
// with MCP provenance for the calling operator. The returned cleanup must be
// called when the tool finishes.
func AcquireSystemAccess(ctx context.Context, deps *MaintenanceToolDeps) (context.Context, func(), error) {
	claims, ok := auth.GetClaims(ctx)
	if !ok {
		return nil, nil, &toolAccessError{code: "authentication_required", message: "authentication required"}
	}

	scoped, release, err := deps.Scopes.WithSystemScope(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return models.WithMCPProvenance(scoped, claims.Subject), release, nil
}
