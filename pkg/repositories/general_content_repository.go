package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// GeneralContentRepository provides data access for standalone content items.
type GeneralContentRepository interface {
	Create(ctx context.Context, item *models.GeneralContentItem) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error)
	List(ctx context.Context, userID string, filters models.GeneralContentFilters) ([]*models.GeneralContentItem, int, error)
	UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.GeneralContentStatus, lastError *string) (*models.GeneralContentItem, error)
	// Complete stores generated content and moves the item to completed.
	Complete(ctx context.Context, userID string, id uuid.UUID, content string) (*models.GeneralContentItem, error)
	BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.GeneralContentStatus, expectedRetryCount int, next models.ProcessingFields) (*models.GeneralContentItem, error)
	MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error)
}

type generalContentRepository struct{}

// NewGeneralContentRepository creates a new GeneralContentRepository.
func NewGeneralContentRepository() GeneralContentRepository {
	return &generalContentRepository{}
}

var _ GeneralContentRepository = (*generalContentRepository)(nil)

const generalContentColumns = `id, user_id, title, prompt, content, category, derivative_type, status,
	retry_count, processing_started_at, processing_timeout_at, last_error_message,
	created_at, updated_at`

var generalContentTable = processingTable{name: "general_content_items", kind: models.EntityKindGeneralContent, columns: generalContentColumns}

func (r *generalContentRepository) Create(ctx context.Context, item *models.GeneralContentItem) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = models.GeneralContentStatusPending
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO general_content_items (
			id, user_id, title, prompt, content, category, derivative_type, status,
			retry_count, processing_started_at, processing_timeout_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		item.ID, item.UserID, item.Title, item.Prompt, item.Content, item.Category,
		item.DerivativeType, item.Status, item.RetryCount,
		item.ProcessingStartedAt, item.ProcessingTimeoutAt,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create general content item: %w", err)
	}
	return nil
}

func (r *generalContentRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.GeneralContentItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanGeneralContent(scope.Conn.QueryRow(ctx, `SELECT `+generalContentColumns+`
		FROM general_content_items WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "general content item")
	}
	return item, nil
}

func (r *generalContentRepository) List(ctx context.Context, userID string, filters models.GeneralContentFilters) ([]*models.GeneralContentItem, int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePageParams(filters.Limit, filters.Offset)
	where := newWhere("user_id = ?", userID)
	if filters.Status != "" {
		where.add("status = ?", filters.Status)
	}
	if filters.Category != "" {
		where.add("category = ?", filters.Category)
	}

	var total int
	if err := scope.Conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM general_content_items WHERE %s`, where), where.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count general content: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM general_content_items WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, generalContentColumns, where, where.next(), where.next()+1),
		append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list general content: %w", err)
	}
	defer rows.Close()

	items := make([]*models.GeneralContentItem, 0)
	for rows.Next() {
		item, err := scanGeneralContent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan general content item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating general content: %w", err)
	}
	return items, total, nil
}

func (r *generalContentRepository) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.GeneralContentStatus, lastError *string) (*models.GeneralContentItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanGeneralContent(scope.Conn.QueryRow(ctx, `
		UPDATE general_content_items SET status = $3, last_error_message = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+generalContentColumns, id, userID, status, lastError))
	if err != nil {
		return nil, notFound(err, "general content item")
	}
	return item, nil
}

func (r *generalContentRepository) Complete(ctx context.Context, userID string, id uuid.UUID, content string) (*models.GeneralContentItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanGeneralContent(scope.Conn.QueryRow(ctx, `
		UPDATE general_content_items
		SET status = 'completed', content = $3, last_error_message = NULL
		WHERE id = $1 AND user_id = $2
		RETURNING `+generalContentColumns, id, userID, content))
	if err != nil {
		return nil, notFound(err, "general content item")
	}
	return item, nil
}

func (r *generalContentRepository) BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.GeneralContentStatus, expectedRetryCount int, next models.ProcessingFields) (*models.GeneralContentItem, error) {
	row, err := beginProcessing(ctx, generalContentTable, userID, id, string(expectedStatus), expectedRetryCount, next)
	if err != nil {
		return nil, err
	}
	item, err := scanGeneralContent(row)
	if err != nil {
		return nil, conflictOnNoRows(err, "general content item")
	}
	return item, nil
}

func (r *generalContentRepository) MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	return markTimedOut(ctx, generalContentTable, userID, now, message)
}

func scanGeneralContent(row pgx.Row) (*models.GeneralContentItem, error) {
	var g models.GeneralContentItem
	err := row.Scan(
		&g.ID, &g.UserID, &g.Title, &g.Prompt, &g.Content, &g.Category, &g.DerivativeType,
		&g.Status, &g.RetryCount, &g.ProcessingStartedAt, &g.ProcessingTimeoutAt,
		&g.LastErrorMessage, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
