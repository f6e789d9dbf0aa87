package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// maintenanceDeps is what check-timeouts and cleanup run against.
type maintenanceDeps struct {
	Scopes   database.ScopeProvider
	Timeouts services.TimeoutService
	Cleanup  services.CleanupService
}

func openMaintenanceDeps(ctx context.Context, o *options) (*maintenanceDeps, func(), error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	c, err := openCore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		c.Close()
		_ = logger.Sync()
	}
	return &maintenanceDeps{Scopes: c.scopes, Timeouts: c.timeouts, Cleanup: c.cleanup}, release, nil
}

// withSystemAccess runs fn under a system scope with command line provenance.
func (o *options) withSystemAccess(ctx context.Context, fn func(ctx context.Context, deps *maintenanceDeps) error) error {
	deps, closeDeps, err := o.openMaintenance(ctx, o)
	if err != nil {
		return err
	}
	defer closeDeps()

	scoped, release, err := deps.Scopes.WithSystemScope(ctx)
	if err != nil {
		return fmt.Errorf("acquire system scope: %w", err)
	}
	defer release()

	scoped = models.WithProvenance(scoped, models.ProvenanceContext{Source: models.SourceCLI})
	return fn(scoped, deps)
}

func newCheckTimeoutsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check-timeouts",
		Short: "Fail every entity that has been processing longer than the timeout",
		Long: `Sweep ideas, suggestions and general content for every user and mark the
ones stuck in processing as failed. The server runs the same sweep on the
scheduler.timeout_sweep_cron schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSystemAccess(cmd.Context(), func(ctx context.Context, deps *maintenanceDeps) error {
				results, err := deps.Timeouts.SweepAll(ctx)
				if err != nil {
					return fmt.Errorf("timeout sweep: %w", err)
				}
				total := 0
				for _, r := range results {
					total += r.UpdatedCount
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"results":       results,
					"total_updated": total,
				})
			})
		},
	}
}

func newCleanupCommand(o *options) *cobra.Command {
	var (
		opts       models.CleanupOptions
		candidates bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete terminal records older than the retention window",
		Long: `Delete discarded, failed and published records older than --days.

Examples:
  content-engine cleanup --candidates
  content-engine cleanup --days 30 --dry-run
  content-engine cleanup --days 180 --batch 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSystemAccess(cmd.Context(), func(ctx context.Context, deps *maintenanceDeps) error {
				if candidates {
					found, err := deps.Cleanup.FetchCleanupCandidates(ctx, opts.OlderThanDays)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), found)
				}
				result, err := deps.Cleanup.RunCleanup(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().IntVar(&opts.OlderThanDays, "days", models.DefaultCleanupOlderThanDays, "delete records last updated more than this many days ago")
	cmd.Flags().IntVar(&opts.BatchSize, "batch", models.DefaultCleanupBatchSize, "maximum rows deleted per collection")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "count what would be deleted without deleting")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "only report eligible record counts")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
