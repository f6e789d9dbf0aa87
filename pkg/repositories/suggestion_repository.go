package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// SuggestionRepository provides data access for content suggestions.
type SuggestionRepository interface {
	// CreateBatch inserts suggestions produced by the worker for one idea.
	CreateBatch(ctx context.Context, suggestions []*models.ContentSuggestion) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error)
	ListByIdea(ctx context.Context, userID string, ideaID uuid.UUID) ([]*models.ContentSuggestion, error)
	UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.SuggestionStatus, lastError *string) (*models.ContentSuggestion, error)
	BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.SuggestionStatus, expectedRetryCount int, next models.ProcessingFields) (*models.ContentSuggestion, error)
	MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error)
}

type suggestionRepository struct{}

// NewSuggestionRepository creates a new SuggestionRepository.
func NewSuggestionRepository() SuggestionRepository {
	return &suggestionRepository{}
}

var _ SuggestionRepository = (*suggestionRepository)(nil)

const suggestionColumns = `id, user_id, content_idea_id, title, description, relevance_score, status,
	retry_count, processing_started_at, processing_timeout_at, last_error_message,
	created_at, updated_at`

var suggestionTable = processingTable{name: "content_suggestions", kind: models.EntityKindSuggestion, columns: suggestionColumns}

func (r *suggestionRepository) CreateBatch(ctx context.Context, suggestions []*models.ContentSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, s := range suggestions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.Status == "" {
			s.Status = models.SuggestionStatusPending
		}
		batch.Queue(`
			INSERT INTO content_suggestions (id, user_id, content_idea_id, title, description, relevance_score, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			s.ID, s.UserID, s.ContentIdeaID, s.Title, s.Description, s.RelevanceScore, s.Status,
		)
	}

	results := scope.Conn.SendBatch(ctx, batch)
	defer results.Close()
	for _, s := range suggestions {
		if err := results.QueryRow().Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create suggestion: %w", err)
		}
	}
	return nil
}

func (r *suggestionRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentSuggestion, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSuggestion(scope.Conn.QueryRow(ctx, `SELECT `+suggestionColumns+`
		FROM content_suggestions WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "suggestion")
	}
	return s, nil
}

func (r *suggestionRepository) ListByIdea(ctx context.Context, userID string, ideaID uuid.UUID) ([]*models.ContentSuggestion, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+suggestionColumns+`
		FROM content_suggestions
		WHERE user_id = $1 AND content_idea_id = $2
		ORDER BY relevance_score DESC, created_at ASC`, userID, ideaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]*models.ContentSuggestion, 0)
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return suggestions, nil
}

func (r *suggestionRepository) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.SuggestionStatus, lastError *string) (*models.ContentSuggestion, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSuggestion(scope.Conn.QueryRow(ctx, `
		UPDATE content_suggestions SET status = $3, last_error_message = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+suggestionColumns, id, userID, status, lastError))
	if err != nil {
		return nil, notFound(err, "suggestion")
	}
	return s, nil
}

func (r *suggestionRepository) BeginProcessing(ctx context.Context, userID string, id uuid.UUID, expectedStatus models.SuggestionStatus, expectedRetryCount int, next models.ProcessingFields) (*models.ContentSuggestion, error) {
	row, err := beginProcessing(ctx, suggestionTable, userID, id, string(expectedStatus), expectedRetryCount, next)
	if err != nil {
		return nil, err
	}
	s, err := scanSuggestion(row)
	if err != nil {
		return nil, conflictOnNoRows(err, "suggestion")
	}
	return s, nil
}

func (r *suggestionRepository) MarkTimedOut(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error) {
	return markTimedOut(ctx, suggestionTable, userID, now, message)
}

func scanSuggestion(row pgx.Row) (*models.ContentSuggestion, error) {
	var s models.ContentSuggestion
	err := row.Scan(
		&s.ID, &s.UserID, &s.ContentIdeaID, &s.Title, &s.Description, &s.RelevanceScore,
		&s.Status, &s.RetryCount, &s.ProcessingStartedAt, &s.ProcessingTimeoutAt,
		&s.LastErrorMessage, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
