package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// IdeaRepository provides data access for content ideas.
type IdeaRepository interface {
	Create(ctx context.Context, idea *models.ContentIdea) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error)
	List(ctx context.Context, userID string, filters models.IdeaFilters) ([]*models.ContentIdea, int, error)
	Update(ctx context.Context, idea *models.ContentIdea) error
	// UpdateStatus sets status and last_error_message. The row is returned as stored.
	UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.IdeaStatus, lastError *string) (*models.ContentIdea, error)
	// BeginProcessing applies next if the row still has expectedStatus and expectedRetryCount.
	// Returns apperrors.ErrConflict otherwise.
	BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.IdeaStatus, expectedRetryCount int, next models.ProcessingFields) (*models.ContentIdea, error)
	MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error)
}

type ideaRepository struct{}

// NewIdeaRepository creates a new IdeaRepository.
func NewIdeaRepository() IdeaRepository {
	return &ideaRepository{}
}

var _ IdeaRepository = (*ideaRepository)(nil)

const ideaColumns = `id, user_id, title, description, content_type, target_audience, status,
	source_type, source_data, retry_count, processing_started_at, processing_timeout_at,
	last_error_message, created_at, updated_at`

var ideaTable = processingTable{name: "content_ideas", kind: models.EntityKindIdea, columns: ideaColumns}

func (r *ideaRepository) Create(ctx context.Context, idea *models.ContentIdea) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	sourceJSON, err := json.Marshal(idea.SourceData)
	if err != nil {
		return fmt.Errorf("failed to marshal source_data: %w", err)
	}
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	if idea.Status == "" {
		idea.Status = models.IdeaStatusSubmitted
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO content_ideas (
			id, user_id, title, description, content_type, target_audience, status,
			source_type, source_data, retry_count, processing_started_at, processing_timeout_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		idea.ID, idea.UserID, idea.Title, idea.Description, idea.ContentType, idea.TargetAudience,
		idea.Status, idea.SourceType, sourceJSON, idea.RetryCount,
		idea.ProcessingStartedAt, idea.ProcessingTimeoutAt,
	).Scan(&idea.CreatedAt, &idea.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	return nil
}

func (r *ideaRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentIdea, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+ideaColumns+`
		FROM content_ideas WHERE id = $1 AND user_id = $2`, id, userID)
	idea, err := scanIdea(row)
	if err != nil {
		return nil, notFound(err, "idea")
	}
	return idea, nil
}

func (r *ideaRepository) List(ctx context.Context, userID string, filters models.IdeaFilters) ([]*models.ContentIdea, int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePageParams(filters.Limit, filters.Offset)

	where := newWhere("user_id = ?", userID)
	if filters.Status != "" {
		where.add("status = ?", filters.Status)
	}
	if filters.ContentType != "" {
		where.add("content_type = ?", filters.ContentType)
	}
	if filters.TargetAudience != "" {
		where.add("target_audience = ?", filters.TargetAudience)
	}
	if filters.Search != "" {
		where.add("(title ILIKE '%' || ? || '%' OR description ILIKE '%' || ? || '%')", filters.Search, filters.Search)
	}

	var total int
	if err := scope.Conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM content_ideas WHERE %s`, where), where.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ideas: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM content_ideas WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, ideaColumns, where, where.next(), where.next()+1)
	rows, err := scope.Conn.Query(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	ideas := make([]*models.ContentIdea, 0)
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating ideas: %w", err)
	}
	return ideas, total, nil
}

func (r *ideaRepository) Update(ctx context.Context, idea *models.ContentIdea) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE content_ideas SET title = $3, description = $4
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		idea.ID, idea.UserID, idea.Title, idea.Description,
	).Scan(&idea.UpdatedAt)
	if err != nil {
		return notFound(err, "idea")
	}
	return nil
}

func (r *ideaRepository) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.IdeaStatus, lastError *string) (*models.ContentIdea, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	row := scope.Conn.QueryRow(ctx, `
		UPDATE content_ideas SET status = $3, last_error_message = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+ideaColumns, id, userID, status, lastError)
	idea, err := scanIdea(row)
	if err != nil {
		return nil, notFound(err, "idea")
	}
	return idea, nil
}

func (r *ideaRepository) BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.IdeaStatus, expectedRetryCount int, next models.ProcessingFields) (*models.ContentIdea, error) {
	row, err := beginProcessing(ctx, ideaTable, userID, id, string(expectedStatus), expectedRetryCount, next)
	if err != nil {
		return nil, err
	}
	idea, err := scanIdea(row)
	if err != nil {
		return nil, conflictOnNoRows(err, "idea")
	}
	return idea, nil
}

func (r *ideaRepository) MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	return markTimedOut(ctx, ideaTable, userID, now, message)
}

func scanIdea(row pgx.Row) (*models.ContentIdea, error) {
	var idea models.ContentIdea
	var sourceJSON []byte
	err := row.Scan(
		&idea.ID, &idea.UserID, &idea.Title, &idea.Description, &idea.ContentType,
		&idea.TargetAudience, &idea.Status, &idea.SourceType, &sourceJSON,
		&idea.RetryCount, &idea.ProcessingStartedAt, &idea.ProcessingTimeoutAt,
		&idea.LastErrorMessage, &idea.CreatedAt, &idea.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	idea.SourceData, err = models.DecodeSourceData(idea.SourceType, sourceJSON)
	if err != nil {
		return nil, fmt.Errorf("stored idea %s: %w", idea.ID, err)
	}
	return &idea, nil
}
