package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/config"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// schedulerJobTimeout bounds a single cron run.
const schedulerJobTimeout = 10 * time.Minute

// Scheduler runs the timeout sweep and retention cleanup on cron schedules.
type Scheduler struct {
	scopes   database.ScopeProvider
	timeouts TimeoutService
	cleanup  CleanupService
	cfg      config.SchedulerConfig
	logger   *zap.Logger
}

// NewScheduler creates a Scheduler. Jobs with an empty cron expression are not scheduled.
func NewScheduler(scopes database.ScopeProvider, timeouts TimeoutService, cleanup CleanupService, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scopes:   scopes,
		timeouts: timeouts,
		cleanup:  cleanup,
		cfg:      cfg,
		logger:   logger.Named("scheduler"),
	}
}

// Run schedules the jobs and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ctab := crontab.New()
	defer ctab.Shutdown()

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"timeout_sweep", s.cfg.TimeoutSweepCron, s.RunTimeoutSweep},
		{"cleanup", s.cfg.CleanupCron, func(ctx context.Context) error {
			_, err := s.RunScheduledCleanup(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			s.logger.Info("Job disabled", zap.String("job", job.name))
			continue
		}
		name, run := job.name, job.run
		err := ctab.AddJob(job.spec, func() {
			jobCtx, cancel := context.WithTimeout(ctx, schedulerJobTimeout)
			defer cancel()
			if err := run(jobCtx); err != nil {
				s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.spec, err)
		}
		s.logger.Info("Job scheduled", zap.String("job", job.name), zap.String("cron", job.spec))
	}

	<-ctx.Done()
	return nil
}

// RunTimeoutSweep fails every overdue entity across all users.
func (s *Scheduler) RunTimeoutSweep(ctx context.Context) error {
	scoped, release, err := s.systemScope(ctx)
	if err != nil {
		return err
	}
	defer release()

	results, err := s.timeouts.SweepAll(scoped)
	if err != nil {
		return fmt.Errorf("timeout sweep: %w", err)
	}
	total := 0
	for _, r := range results {
		total += r.UpdatedCount
	}
	if total > 0 {
		s.logger.Info("Timeout sweep finished", zap.Int("timed_out", total))
	}
	return nil
}

// RunScheduledCleanup deletes terminal rows using the configured retention window.
func (s *Scheduler) RunScheduledCleanup(ctx context.Context) (*models.CleanupResult, error) {
	scoped, release, err := s.systemScope(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.cleanup.RunCleanup(scoped, models.CleanupOptions{
		OlderThanDays: s.cfg.CleanupOlderThanDays,
		BatchSize:     s.cfg.CleanupBatchSize,
	})
}

func (s *Scheduler) systemScope(ctx context.Context) (context.Context, func(), error) {
	scoped, release, err := s.scopes.WithSystemScope(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire system scope: %w", err)
	}
	return models.WithProvenance(scoped, models.ProvenanceContext{Source: models.SourceScheduler}), release, nil
}
