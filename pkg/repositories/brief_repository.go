package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// BriefRepository provides data access for content briefs.
type BriefRepository interface {
	Create(ctx context.Context, brief *models.ContentBrief) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error)
	List(ctx context.Context, userID string, filters models.BriefFilters) ([]*models.ContentBrief, int, error)
	Update(ctx context.Context, brief *models.ContentBrief) error
	UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.BriefStatus) (*models.ContentBrief, error)
}

type briefRepository struct{}

// NewBriefRepository creates a new BriefRepository.
func NewBriefRepository() BriefRepository {
	return &briefRepository{}
}

var _ BriefRepository = (*briefRepository)(nil)

const briefColumns = `id, user_id, source_type, source_id, title, brief_content, brief_type,
	target_audience, status, created_at, updated_at`

func (r *briefRepository) Create(ctx context.Context, brief *models.ContentBrief) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}
	if brief.ID == uuid.Nil {
		brief.ID = uuid.New()
	}
	if brief.Status == "" {
		brief.Status = models.BriefStatusReadyForReview
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO content_briefs (
			id, user_id, source_type, source_id, title, brief_content, brief_type, target_audience, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		brief.ID, brief.UserID, brief.SourceType, brief.SourceID, brief.Title,
		brief.BriefContent, brief.BriefType, brief.TargetAudience, brief.Status,
	).Scan(&brief.CreatedAt, &brief.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create brief: %w", err)
	}
	return nil
}

func (r *briefRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentBrief, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	brief, err := scanBrief(scope.Conn.QueryRow(ctx, `SELECT `+briefColumns+`
		FROM content_briefs WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "brief")
	}
	return brief, nil
}

func (r *briefRepository) List(ctx context.Context, userID string, filters models.BriefFilters) ([]*models.ContentBrief, int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePageParams(filters.Limit, filters.Offset)
	where := newWhere("user_id = ?", userID)
	if filters.Status != "" {
		where.add("status = ?", filters.Status)
	}

	var total int
	if err := scope.Conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM content_briefs WHERE %s`, where), where.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count briefs: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM content_briefs WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, briefColumns, where, where.next(), where.next()+1),
		append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list briefs: %w", err)
	}
	defer rows.Close()

	briefs := make([]*models.ContentBrief, 0)
	for rows.Next() {
		brief, err := scanBrief(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan brief: %w", err)
		}
		briefs = append(briefs, brief)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating briefs: %w", err)
	}
	return briefs, total, nil
}

func (r *briefRepository) Update(ctx context.Context, brief *models.ContentBrief) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE content_briefs
		SET title = $3, brief_content = $4, brief_type = $5, target_audience = $6
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		brief.ID, brief.UserID, brief.Title, brief.BriefContent, brief.BriefType, brief.TargetAudience,
	).Scan(&brief.UpdatedAt)
	if err != nil {
		return notFound(err, "brief")
	}
	return nil
}

func (r *briefRepository) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.BriefStatus) (*models.ContentBrief, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	brief, err := scanBrief(scope.Conn.QueryRow(ctx, `
		UPDATE content_briefs SET status = $3
		WHERE id = $1 AND user_id = $2
		RETURNING `+briefColumns, id, userID, status))
	if err != nil {
		return nil, notFound(err, "brief")
	}
	return brief, nil
}

func scanBrief(row pgx.Row) (*models.ContentBrief, error) {
	var b models.ContentBrief
	err := row.Scan(
		&b.ID, &b.UserID, &b.SourceType, &b.SourceID, &b.Title, &b.BriefContent,
		&b.BriefType, &b.TargetAudience, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
