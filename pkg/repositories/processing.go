package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// processingTable names a table carrying the retry/timeout columns.
type processingTable struct {
	name    string
	kind    models.EntityKind
	columns string
}

// beginProcessing moves a row into processing. The update only applies while
// the row still has the status and retry_count the caller read, so two
// concurrent retries cannot both succeed.
func beginProcessing(
	ctx context.Context,
	tbl processingTable,
	userID string,
	id uuid.UUID,
	expectedStatus string,
	expectedRetryCount int,
	next models.ProcessingFields,
) (pgx.Row, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'processing',
		    retry_count = $5,
		    processing_started_at = $6,
		    processing_timeout_at = $7,
		    last_error_message = NULL
		WHERE id = $1 AND user_id = $2 AND status = $3 AND retry_count = $4
		RETURNING %s`, tbl.name, tbl.columns)

	return scope.Conn.QueryRow(ctx, query,
		id, userID, expectedStatus, expectedRetryCount,
		next.RetryCount, next.ProcessingStartedAt, next.ProcessingTimeoutAt,
	), nil
}

// conflictOnNoRows maps a missed conditional update to ErrConflict.
func conflictOnNoRows(err error, what string) error {
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%s changed concurrently: %w", what, apperrors.ErrConflict)
	}
	return fmt.Errorf("failed to update %s: %w", what, err)
}

// markTimedOut flips every row of tbl that is processing past its deadline to
// failed in a single statement. An empty userID sweeps every user; this is
// only reachable from a system scope.
func markTimedOut(ctx context.Context, tbl processingTable, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	where := newWhere("status = 'processing'")
	where.add("processing_timeout_at < ?", now)
	if userID != "" {
		where.add("user_id = ?", userID)
	}
	messageArg := where.next()
	args := append(where.args, message)

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'failed', last_error_message = $%d
		WHERE %s
		RETURNING id, user_id, title, last_error_message`, tbl.name, messageArg, where)

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to mark timed out %s rows: %w", tbl.name, err)
	}
	defer rows.Close()

	items := make([]*models.TimedOutItem, 0)
	for rows.Next() {
		item := &models.TimedOutItem{Kind: tbl.kind}
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.LastErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan timed out row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timed out rows: %w", err)
	}
	return items, nil
}
