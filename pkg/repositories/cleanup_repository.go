package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// CleanupRepository counts and deletes historical rows in terminal states.
// It is used from a system scope and spans all users.
type CleanupRepository interface {
	// CountCandidates returns rows in collection that would be removed by a cleanup with this cutoff.
	CountCandidates(ctx context.Context, collection models.CleanupCollection, cutoff time.Time) (int, error)
	// DeleteBatch deletes at most batchSize qualifying rows and returns the number deleted.
	DeleteBatch(ctx context.Context, collection models.CleanupCollection, cutoff time.Time, batchSize int) (int, error)
}

type cleanupRepository struct{}

// NewCleanupRepository creates a new CleanupRepository.
func NewCleanupRepository() CleanupRepository {
	return &cleanupRepository{}
}

var _ CleanupRepository = (*cleanupRepository)(nil)

func (r *cleanupRepository) CountCandidates(ctx context.Context, collection models.CleanupCollection, cutoff time.Time) (int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return 0, err
	}
	table, statuses, err := cleanupTarget(collection)
	if err != nil {
		return 0, err
	}

	var count int
	if err := scope.Conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE updated_at <= $1 AND status = ANY($2)`, table), cutoff, statuses,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s cleanup candidates: %w", table, err)
	}
	return count, nil
}

func (r *cleanupRepository) DeleteBatch(ctx context.Context, collection models.CleanupCollection, cutoff time.Time, batchSize int) (int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return 0, err
	}
	table, statuses, err := cleanupTarget(collection)
	if err != nil {
		return 0, err
	}

	tag, err := scope.Conn.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE id IN (
			SELECT id FROM %[1]s
			WHERE updated_at <= $1 AND status = ANY($2)
			ORDER BY updated_at
			LIMIT $3
		)`, table), cutoff, statuses, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s batch: %w", table, err)
	}
	return int(tag.RowsAffected()), nil
}

// cleanupTarget resolves a collection to its table name and terminal statuses.
// Only known collections are accepted, so the table name is safe to interpolate.
func cleanupTarget(collection models.CleanupCollection) (string, []string, error) {
	statuses := collection.TerminalStatuses()
	if len(statuses) == 0 {
		return "", nil, fmt.Errorf("unknown cleanup collection %q", collection)
	}
	return string(collection), statuses, nil
}
