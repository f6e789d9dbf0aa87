package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// DerivativeRepository provides data access for content derivatives.
type DerivativeRepository interface {
	CreateBatch(ctx context.Context, derivatives []*models.ContentDerivative) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentDerivative, error)
	ListByItem(ctx context.Context, userID string, itemID uuid.UUID) ([]*models.ContentDerivative, error)
	// Update writes status and body.
	Update(ctx context.Context, d *models.ContentDerivative) error
	// CountsByItem returns one entry per requested item, including items with no derivatives.
	CountsByItem(ctx context.Context, userID string, itemIDs []uuid.UUID) ([]*models.DerivativeCounts, error)
}

type derivativeRepository struct{}

// NewDerivativeRepository creates a new DerivativeRepository.
func NewDerivativeRepository() DerivativeRepository {
	return &derivativeRepository{}
}

var _ DerivativeRepository = (*derivativeRepository)(nil)

const derivativeColumns = `id, user_id, content_item_id, derivative_type, title, status, content_type,
	content, file_url, file_path, file_size, mime_type, created_at, updated_at`

func (r *derivativeRepository) CreateBatch(ctx context.Context, derivatives []*models.ContentDerivative) error {
	if len(derivatives) == 0 {
		return nil
	}
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, d := range derivatives {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if d.Status == "" {
			d.Status = models.DerivativeStatusDraft
		}
		content, fileURL, filePath, fileSize, mimeType := bodyColumns(d.Body)
		batch.Queue(`
			INSERT INTO content_derivatives (
				id, user_id, content_item_id, derivative_type, title, status, content_type,
				content, file_url, file_path, file_size, mime_type
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at`,
			d.ID, d.UserID, d.ContentItemID, d.DerivativeType, d.Title, d.Status, d.Body.ContentType,
			content, fileURL, filePath, fileSize, mimeType,
		)
	}

	results := scope.Conn.SendBatch(ctx, batch)
	defer results.Close()
	for _, d := range derivatives {
		if err := results.QueryRow().Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create derivative: %w", err)
		}
	}
	return nil
}

func (r *derivativeRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentDerivative, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	d, err := scanDerivative(scope.Conn.QueryRow(ctx, `SELECT `+derivativeColumns+`
		FROM content_derivatives WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "derivative")
	}
	return d, nil
}

func (r *derivativeRepository) ListByItem(ctx context.Context, userID string, itemID uuid.UUID) ([]*models.ContentDerivative, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+derivativeColumns+`
		FROM content_derivatives
		WHERE user_id = $1 AND content_item_id = $2
		ORDER BY derivative_type, created_at`, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list derivatives: %w", err)
	}
	defer rows.Close()

	derivatives := make([]*models.ContentDerivative, 0)
	for rows.Next() {
		d, err := scanDerivative(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan derivative: %w", err)
		}
		derivatives = append(derivatives, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating derivatives: %w", err)
	}
	return derivatives, nil
}

func (r *derivativeRepository) Update(ctx context.Context, d *models.ContentDerivative) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	content, fileURL, filePath, fileSize, mimeType := bodyColumns(d.Body)
	err = scope.Conn.QueryRow(ctx, `
		UPDATE content_derivatives
		SET status = $3, content_type = $4, content = $5, file_url = $6, file_path = $7,
		    file_size = $8, mime_type = $9
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		d.ID, d.UserID, d.Status, d.Body.ContentType, content, fileURL, filePath, fileSize, mimeType,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return notFound(err, "derivative")
	}
	return nil
}

func (r *derivativeRepository) CountsByItem(ctx context.Context, userID string, itemIDs []uuid.UUID) ([]*models.DerivativeCounts, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]*models.DerivativeCounts, len(itemIDs))
	ordered := make([]*models.DerivativeCounts, 0, len(itemIDs))
	for _, id := range itemIDs {
		if _, seen := counts[id]; seen {
			continue
		}
		c := &models.DerivativeCounts{ContentItemID: id, ByStatus: map[models.DerivativeStatus]int{}}
		counts[id] = c
		ordered = append(ordered, c)
	}
	if len(ordered) == 0 {
		return ordered, nil
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT content_item_id, status, COUNT(*)
		FROM content_derivatives
		WHERE user_id = $1 AND content_item_id = ANY($2)
		GROUP BY content_item_id, status`, userID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count derivatives: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID uuid.UUID
		var status models.DerivativeStatus
		var n int
		if err := rows.Scan(&itemID, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan derivative count: %w", err)
		}
		c := counts[itemID]
		c.ByStatus[status] = n
		c.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating derivative counts: %w", err)
	}
	return ordered, nil
}

// bodyColumns splits a DerivativeBody into its nullable column values.
func bodyColumns(b models.DerivativeBody) (content, fileURL, filePath *string, fileSize *int64, mimeType *string) {
	switch {
	case b.Text != nil:
		content = &b.Text.Content
	case b.File != nil:
		fileURL = &b.File.FileURL
		filePath = &b.File.FilePath
		fileSize = &b.File.FileSize
		mimeType = &b.File.MimeType
	}
	return
}

func scanDerivative(row pgx.Row) (*models.ContentDerivative, error) {
	var d models.ContentDerivative
	var content, fileURL, filePath, mimeType *string
	var fileSize *int64
	err := row.Scan(
		&d.ID, &d.UserID, &d.ContentItemID, &d.DerivativeType, &d.Title, &d.Status,
		&d.Body.ContentType, &content, &fileURL, &filePath, &fileSize, &mimeType, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	switch d.Body.ContentType {
	case models.DerivativeContentFile:
		d.Body.File = &models.FileBody{
			FileURL:  deref(fileURL),
			FilePath: deref(filePath),
			MimeType: deref(mimeType),
		}
		if fileSize != nil {
			d.Body.File.FileSize = *fileSize
		}
	default:
		d.Body.Text = &models.TextBody{Content: deref(content)}
	}
	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
