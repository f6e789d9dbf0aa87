package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// ContentItemRepository provides data access for content items.
type ContentItemRepository interface {
	Create(ctx context.Context, item *models.ContentItem) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error)
	List(ctx context.Context, userID string, filters models.ContentItemFilters) ([]*models.ContentItem, int, error)
	// Update writes the editable fields: title, content, word_count, tags, resources, status.
	Update(ctx context.Context, item *models.ContentItem) error
	UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.ContentItemStatus) (*models.ContentItem, error)
	MarkPublished(ctx context.Context, userID string, id uuid.UUID, postID int64, url string, at time.Time) (*models.ContentItem, error)
}

type contentItemRepository struct{}

// NewContentItemRepository creates a new ContentItemRepository.
func NewContentItemRepository() ContentItemRepository {
	return &contentItemRepository{}
}

var _ ContentItemRepository = (*contentItemRepository)(nil)

const contentItemColumns = `id, user_id, content_brief_id, title, content, word_count, tags, resources,
	status, wordpress_post_id, published_url, published_at, created_at, updated_at`

func (r *contentItemRepository) Create(ctx context.Context, item *models.ContentItem) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = models.ContentItemStatusDraft
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if item.Resources == nil {
		item.Resources = []string{}
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO content_items (
			id, user_id, content_brief_id, title, content, word_count, tags, resources, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		item.ID, item.UserID, item.ContentBriefID, item.Title, item.Content, item.WordCount,
		item.Tags, item.Resources, item.Status,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create content item: %w", err)
	}
	return nil
}

func (r *contentItemRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ContentItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanContentItem(scope.Conn.QueryRow(ctx, `SELECT `+contentItemColumns+`
		FROM content_items WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "content item")
	}
	return item, nil
}

func (r *contentItemRepository) List(ctx context.Context, userID string, filters models.ContentItemFilters) ([]*models.ContentItem, int, error) {
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
		fmt.Sprintf(`SELECT COUNT(*) FROM content_items WHERE %s`, where), where.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count content items: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM content_items WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, contentItemColumns, where, where.next(), where.next()+1),
		append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list content items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ContentItem, 0)
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating content items: %w", err)
	}
	return items, total, nil
}

func (r *contentItemRepository) Update(ctx context.Context, item *models.ContentItem) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE content_items
		SET title = $3, content = $4, word_count = $5, tags = $6, resources = $7, status = $8
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`,
		item.ID, item.UserID, item.Title, item.Content, item.WordCount, item.Tags, item.Resources, item.Status,
	).Scan(&item.UpdatedAt)
	if err != nil {
		return notFound(err, "content item")
	}
	return nil
}

func (r *contentItemRepository) UpdateStatus(ctx context.Context, userID string, id uuid.UUID, status models.ContentItemStatus) (*models.ContentItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanContentItem(scope.Conn.QueryRow(ctx, `
		UPDATE content_items SET status = $3
		WHERE id = $1 AND user_id = $2
		RETURNING `+contentItemColumns, id, userID, status))
	if err != nil {
		return nil, notFound(err, "content item")
	}
	return item, nil
}

func (r *contentItemRepository) MarkPublished(ctx context.Context, userID string, id uuid.UUID, postID int64, url string, at time.Time) (*models.ContentItem, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	item, err := scanContentItem(scope.Conn.QueryRow(ctx, `
		UPDATE content_items
		SET status = 'published', wordpress_post_id = $3, published_url = $4, published_at = $5
		WHERE id = $1 AND user_id = $2
		RETURNING `+contentItemColumns, id, userID, postID, url, at))
	if err != nil {
		return nil, notFound(err, "content item")
	}
	return item, nil
}

func scanContentItem(row pgx.Row) (*models.ContentItem, error) {
	var item models.ContentItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.ContentBriefID, &item.Title, &item.Content, &item.WordCount,
		&item.Tags, &item.Resources, &item.Status, &item.WordPressPostID, &item.PublishedURL,
		&item.PublishedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
