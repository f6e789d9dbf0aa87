// Package cli implements the content-engine command line: the HTTP server,
// schema migrations and the maintenance jobs that otherwise run on a schedule.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/config"
	"github.com/ekaya-inc/content-engine/pkg/logging"
)

// options carries the persistent flags and the factories commands build
// their dependencies with.
type options struct {
	version    string
	configPath string

	// openMaintenance is replaced in tests.
	openMaintenance func(ctx context.Context, o *options) (*maintenanceDeps, func(), error)
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(version).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&options{version: version, openMaintenance: openMaintenanceDeps})
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "content-engine",
		Short: "Content marketing workflow backend",
		Long: `content-engine tracks ideas, suggestions, briefs, content items and
derivatives through their processing lifecycle, dispatches work to external
automation webhooks and applies their callbacks.

Examples:
  content-engine serve --config ./config.yaml
  content-engine migrate up
  content-engine check-timeouts
  content-engine cleanup --days 30 --dry-run`,
		Version:       o.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		newServeCommand(o),
		newMigrateCommand(o),
		newCheckTimeoutsCommand(o),
		newCleanupCommand(o),
	)
	return root
}

// load reads the configuration and builds the logger it selects.
func (o *options) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(o.configPath, o.version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
