package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/audit"
	"github.com/ekaya-inc/content-engine/pkg/crypto"
	"github.com/ekaya-inc/content-engine/pkg/logging"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
	"github.com/ekaya-inc/content-engine/pkg/webhook"
)

// WebhookConfigService manages webhook targets. Signing secrets are encrypted
// before they reach the repository and decrypted only for delivery.
type WebhookConfigService interface {
	webhook.TargetSource

	List(ctx context.Context) ([]*models.WebhookConfiguration, error)
	Create(ctx context.Context, userID string, req *models.CreateWebhookRequest) (*models.WebhookConfiguration, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.WebhookConfiguration, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type webhookConfigService struct {
	repo      repositories.WebhookConfigRepository
	encryptor *crypto.SecretEncryptor
	security  *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewWebhookConfigService creates a new WebhookConfigService. encryptor may be
// nil, in which case configurations cannot carry signing secrets.
func NewWebhookConfigService(
	repo repositories.WebhookConfigRepository,
	encryptor *crypto.SecretEncryptor,
	security *audit.SecurityAuditor,
	logger *zap.Logger,
) WebhookConfigService {
	return &webhookConfigService{
		repo:      repo,
		encryptor: encryptor,
		security:  security,
		logger:    logger.Named("webhook-config"),
	}
}

var _ WebhookConfigService = (*webhookConfigService)(nil)

func (s *webhookConfigService) ActiveTargets(ctx context.Context, webhookType string) ([]webhook.Target, error) {
	configs, err := s.repo.ListActiveByType(ctx, webhookType)
	if err != nil {
		return nil, err
	}

	targets := make([]webhook.Target, 0, len(configs))
	for _, cfg := range configs {
		target := webhook.Target{ID: cfg.ID, URL: cfg.WebhookURL}
		if cfg.SigningSecret != "" {
			secret, err := s.decrypt(cfg.SigningSecret)
			if err != nil {
				// An unreadable secret would produce signatures the receiver rejects.
				s.logger.Error("Skipping webhook with undecryptable signing secret",
					zap.String("webhook_id", cfg.ID.String()),
					zap.String("webhook_type", webhookType),
					zap.Error(err))
				continue
			}
			target.Secret = secret
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (s *webhookConfigService) List(ctx context.Context) ([]*models.WebhookConfiguration, error) {
	return s.repo.List(ctx)
}

func (s *webhookConfigService) Create(ctx context.Context, userID string, req *models.CreateWebhookRequest) (*models.WebhookConfiguration, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !models.ValidWebhookType(req.WebhookType) {
		return nil, apperrors.NewValidationError("webhook_type", fmt.Sprintf("unknown webhook type %q", req.WebhookType))
	}

	cfg := &models.WebhookConfiguration{
		WebhookType: req.WebhookType,
		WebhookURL:  req.WebhookURL,
		IsActive:    valueOr(req.IsActive, true),
		CreatedBy:   userID,
	}
	if req.SigningSecret != "" {
		if s.encryptor == nil {
			return nil, apperrors.NewValidationError("signing_secret",
				"signing secrets require SECRETS_ENCRYPTION_KEY to be set on the server")
		}
		encrypted, err := s.encryptor.Encrypt(req.SigningSecret)
		if err != nil {
			return nil, fmt.Errorf("encrypt signing secret: %w", err)
		}
		cfg.SigningSecret = encrypted
		cfg.HasSecret = true
	}

	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create webhook configuration: %w", err)
	}
	s.logChange(ctx, "create", cfg)
	return cfg, nil
}

func (s *webhookConfigService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.WebhookConfiguration, error) {
	if err := models.ValidateStruct(req); err != nil {
		return nil, err
	}
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	action := "update"
	if req.WebhookURL != nil {
		cfg.WebhookURL = *req.WebhookURL
	}
	if req.IsActive != nil && *req.IsActive != cfg.IsActive {
		cfg.IsActive = *req.IsActive
		action = "deactivate"
		if cfg.IsActive {
			action = "activate"
		}
	}

	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update webhook configuration: %w", err)
	}
	s.logChange(ctx, action, cfg)
	return cfg, nil
}

func (s *webhookConfigService) Delete(ctx context.Context, id uuid.UUID) error {
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete webhook configuration: %w", err)
	}
	s.logChange(ctx, "delete", cfg)
	return nil
}

func (s *webhookConfigService) decrypt(secret string) (string, error) {
	if s.encryptor == nil {
		return "", fmt.Errorf("signing secret stored but no encryption key configured")
	}
	return s.encryptor.Decrypt(secret)
}

func (s *webhookConfigService) logChange(ctx context.Context, action string, cfg *models.WebhookConfiguration) {
	s.security.LogWebhookConfigChange(ctx, audit.WebhookChangeDetails{
		Action:      action,
		WebhookID:   cfg.ID.String(),
		WebhookType: cfg.WebhookType,
		WebhookURL:  logging.SanitizeURL(cfg.WebhookURL),
	})
}
