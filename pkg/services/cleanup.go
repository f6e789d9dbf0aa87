package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/audit"
	"github.com/ekaya-inc/content-engine/pkg/database"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// TxRunner runs fn in a transaction on the scoped connection in ctx.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// CleanupService purges historical rows in terminal states.
//
// A row qualifies when updated_at is at or before the cutoff and its status is
// terminal for its collection. A real run deletes collections children first in
// batches inside one transaction: any error rolls everything back and no counts
// are returned. A dry run only counts.
type CleanupService interface {
	RunCleanup(ctx context.Context, opts models.CleanupOptions) (*models.CleanupResult, error)
	FetchCleanupCandidates(ctx context.Context, olderThanDays int) (*models.CleanupCandidates, error)
}

type cleanupService struct {
	repo     repositories.CleanupRepository
	runInTx  TxRunner
	audit    AuditService
	security *audit.SecurityAuditor
	now      func() time.Time
	logger   *zap.Logger
}

// NewCleanupService creates a new CleanupService. A nil runInTx uses database.RunInTx.
func NewCleanupService(
	repo repositories.CleanupRepository,
	runInTx TxRunner,
	auditService AuditService,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) CleanupService {
	if runInTx == nil {
		runInTx = database.RunInTx
	}
	return &cleanupService{
		repo:     repo,
		runInTx:  runInTx,
		audit:    auditService,
		security: security,
		now:      time.Now,
		logger:   logger.Named("cleanup"),
	}
}

var _ CleanupService = (*cleanupService)(nil)

func (s *cleanupService) RunCleanup(ctx context.Context, opts models.CleanupOptions) (*models.CleanupResult, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, apperrors.NewValidationError("cleanup", err.Error())
	}
	cutoff := s.cutoff(opts.OlderThanDays)

	var (
		counts map[models.CleanupCollection]int
		err    error
	)
	if opts.DryRun {
		counts, err = s.countAll(ctx, cutoff)
	} else {
		err = s.runInTx(ctx, func(ctx context.Context) error {
			var txErr error
			counts, txErr = s.deleteAll(ctx, cutoff, opts.BatchSize)
			return txErr
		})
	}

	details := audit.CleanupDetails{
		OlderThanDays: opts.OlderThanDays,
		BatchSize:     opts.BatchSize,
		DryRun:        opts.DryRun,
		Source:        models.ProvenanceOrSystem(ctx).Source.String(),
	}
	if err != nil {
		details.Error = err.Error()
		s.security.LogCleanupRun(ctx, details)
		return nil, fmt.Errorf("cleanup historical data: %w", err)
	}

	result := &models.CleanupResult{Counts: counts, DryRun: opts.DryRun}
	for _, n := range counts {
		result.TotalCleaned += n
	}
	details.TotalCleaned = result.TotalCleaned
	s.security.LogCleanupRun(ctx, details)

	if !opts.DryRun {
		s.recordDeleted(ctx, counts)
	}

	s.logger.Info("Cleanup finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("older_than_days", opts.OlderThanDays),
		zap.Int("total_cleaned", result.TotalCleaned),
		zap.String("summary", cleanupSummary(counts)))
	return result, nil
}

func (s *cleanupService) FetchCleanupCandidates(ctx context.Context, olderThanDays int) (*models.CleanupCandidates, error) {
	if olderThanDays == 0 {
		olderThanDays = models.DefaultCleanupOlderThanDays
	}
	if olderThanDays < 1 {
		return nil, apperrors.NewValidationError("older_than_days", "must be at least 1")
	}

	counts, err := s.countAll(ctx, s.cutoff(olderThanDays))
	if err != nil {
		return nil, fmt.Errorf("fetch cleanup candidates: %w", err)
	}
	candidates := &models.CleanupCandidates{OlderThanDays: olderThanDays, Counts: counts}
	for _, n := range counts {
		candidates.Total += n
	}
	return candidates, nil
}

func (s *cleanupService) cutoff(olderThanDays int) time.Time {
	return s.now().UTC().AddDate(0, 0, -olderThanDays)
}

func (s *cleanupService) countAll(ctx context.Context, cutoff time.Time) (map[models.CleanupCollection]int, error) {
	counts := make(map[models.CleanupCollection]int, len(models.CleanupOrder))
	for _, col := range models.CleanupOrder {
		n, err := s.repo.CountCandidates(ctx, col, cutoff)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", col, err)
		}
		counts[col] = n
	}
	return counts, nil
}

func (s *cleanupService) deleteAll(ctx context.Context, cutoff time.Time, batchSize int) (map[models.CleanupCollection]int, error) {
	counts := make(map[models.CleanupCollection]int, len(models.CleanupOrder))
	for _, col := range models.CleanupOrder {
		for {
			n, err := s.repo.DeleteBatch(ctx, col, cutoff, batchSize)
			if err != nil {
				return nil, fmt.Errorf("delete %s: %w", col, err)
			}
			counts[col] += n
			// A short batch means nothing qualifying is left.
			if n < batchSize {
				break
			}
		}
	}
	return counts, nil
}

func (s *cleanupService) recordDeleted(ctx context.Context, counts map[models.CleanupCollection]int) {
	for _, col := range models.CleanupOrder {
		n := counts[col]
		if n == 0 {
			continue
		}
		metrics.RecordCleaned(string(col), n)
		s.audit.Record(ctx, collectionKind(col), nil, models.AuditActionCleanup,
			map[string]models.FieldChange{"deleted": {Old: nil, New: n}})
	}
}

// collectionKind maps a table to its entity kind.
func collectionKind(col models.CleanupCollection) models.EntityKind {
	switch col {
	case models.CleanupIdeas:
		return models.EntityKindIdea
	case models.CleanupSuggestions:
		return models.EntityKindSuggestion
	case models.CleanupBriefs:
		return models.EntityKindBrief
	case models.CleanupContentItems:
		return models.EntityKindContentItem
	default:
		return models.EntityKindDerivative
	}
}

// cleanupSummary renders counts in cleanup order, e.g. "2 content derivatives, 1 content idea".
func cleanupSummary(counts map[models.CleanupCollection]int) string {
	var parts []string
	for _, col := range models.CleanupOrder {
		if n := counts[col]; n > 0 {
			parts = append(parts, countNoun(n, kindNoun(collectionKind(col))))
		}
	}
	if len(parts) == 0 {
		return "nothing to clean"
	}
	return strings.Join(parts, ", ")
}
