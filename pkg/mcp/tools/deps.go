// Package tools registers the operator tools exposed over MCP.
package tools

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// MaintenanceToolDeps contains the dependencies of the maintenance tools.
type MaintenanceToolDeps struct {
	Scopes   database.ScopeProvider
	Timeouts services.TimeoutService
	Cleanup  services.CleanupService
	Logger   *zap.Logger
}
