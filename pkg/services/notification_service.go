package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// NotificationService records and serves user notifications.
type NotificationService interface {
	// Notify stores a notification. Failures are logged, not returned:
	// a lost notification must not fail the operation that produced it.
	Notify(ctx context.Context, userID, notificationType, title, message string, kind models.EntityKind, entityID *uuid.UUID)

	List(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type notificationService struct {
	repo   repositories.NotificationRepository
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo repositories.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		logger: logger.Named("notification-service"),
	}
}

var _ NotificationService = (*notificationService)(nil)

func (s *notificationService) Notify(ctx context.Context, userID, notificationType, title, message string, kind models.EntityKind, entityID *uuid.UUID) {
	if userID == "" {
		return
	}
	n := &models.Notification{
		UserID:          userID,
		Type:            notificationType,
		Title:           title,
		Message:         message,
		RelatedEntityID: entityID,
	}
	if kind != "" {
		n.RelatedEntityType = &kind
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to record notification",
			zap.String("user_id", userID),
			zap.String("type", notificationType),
			zap.Error(err))
	}
}

func (s *notificationService) List(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	return s.repo.List(ctx, userID, filters)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
