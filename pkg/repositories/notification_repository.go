package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// NotificationRepository provides data access for user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) error
	// MarkAllRead returns the number of notifications changed.
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type notificationRepository struct{}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository() NotificationRepository {
	return &notificationRepository{}
}

var _ NotificationRepository = (*notificationRepository)(nil)

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, related_entity_id, related_entity_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedEntityID, n.RelatedEntityType,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	limit, offset := normalizePageParams(filters.Limit, filters.Offset)
	where := newWhere("user_id = ?", userID)
	if filters.UnreadOnly {
		where.add("NOT is_read")
	}

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, type, title, message, related_entity_id, related_entity_type, is_read, created_at
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, where.next(), where.next()+1),
		append(where.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	scope, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.RelatedEntityID, &n.RelatedEntityType, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return &n, nil
}
