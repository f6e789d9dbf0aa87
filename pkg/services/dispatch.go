package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/logging"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

// entityPayload builds the webhook payload for an entity event.
func entityPayload(webhookType string, kind models.EntityKind, id uuid.UUID, actingUserID string, retryCount int, entity any, now time.Time) webhook.Payload {
	return webhook.Payload{
		Type:       webhookType,
		EntityKind: kind,
		EntityID:   id,
		UserID:     actingUserID,
		RetryCount: retryCount,
		Timestamp:  now,
		Entity:     entity,
	}
}

// processingPayload is entityPayload for an entity with retry bookkeeping.
func processingPayload(webhookType string, p models.Processable, actingUserID string, now time.Time) webhook.Payload {
	return entityPayload(webhookType, p.Kind(), p.EntityID(), actingUserID, p.Processing().RetryCount, p, now)
}

// webhookNotifier triggers a webhook and tells the user when nothing could be delivered.
type webhookNotifier struct {
	trigger       webhook.Trigger
	notifications NotificationService
	logger        *zap.Logger
}

// dispatch returns the dispatcher error wrapped with the webhook type. A
// partial failure is logged and is not an error.
func (n webhookNotifier) dispatch(ctx context.Context, payload webhook.Payload) error {
	result, err := n.trigger.Trigger(ctx, payload.Type, payload)
	if err == nil {
		if failed := len(result.Deliveries) - result.Succeeded(); failed > 0 {
			n.logger.Warn("Webhook partially delivered",
				zap.String("webhook_type", payload.Type),
				zap.String("entity_id", payload.EntityID.String()),
				zap.Int("failed", failed),
				zap.Int("targets", len(result.Deliveries)))
		}
		return nil
	}

	n.logger.Warn("Webhook dispatch failed",
		zap.String("webhook_type", payload.Type),
		zap.String("entity_type", payload.EntityKind.String()),
		zap.String("entity_id", payload.EntityID.String()),
		zap.String("error", logging.SanitizeError(err)))

	id := payload.EntityID
	n.notifications.Notify(ctx, payload.UserID, models.NotificationWebhookFailed,
		"Processing could not be started", dispatchFailureMessage(payload.Type, err),
		payload.EntityKind, &id)

	return fmt.Errorf("dispatch %s: %w", payload.Type, err)
}

func dispatchFailureMessage(webhookType string, err error) string {
	if errors.Is(err, apperrors.ErrNoWebhookConfigured) {
		return fmt.Sprintf("No active %s webhook is configured. Configure a webhook and try again.", webhookType)
	}
	return fmt.Sprintf("The %s webhook could not be delivered. Try again once the endpoint is reachable.", webhookType)
}
