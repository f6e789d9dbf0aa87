package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// WebhookConfigRepository provides data access for webhook configurations.
// Configurations are global, not per user. SigningSecret holds the encrypted
// value; encryption is handled by the service layer.
type WebhookConfigRepository interface {
	Create(ctx context.Context, cfg *models.WebhookConfiguration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookConfiguration, error)
	List(ctx context.Context) ([]*models.WebhookConfiguration, error)
	ListActiveByType(ctx context.Context, webhookType string) ([]*models.WebhookConfiguration, error)
	Update(ctx context.Context, cfg *models.WebhookConfiguration) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type webhookConfigRepository struct{}

// NewWebhookConfigRepository creates a new WebhookConfigRepository.
func NewWebhookConfigRepository() WebhookConfigRepository {
	return &webhookConfigRepository{}
}

var _ WebhookConfigRepository = (*webhookConfigRepository)(nil)

const webhookColumns = `id, webhook_type, webhook_url, is_active, coalesce(signing_secret, ''),
	created_by, created_at, updated_at`

func (r *webhookConfigRepository) Create(ctx context.Context, cfg *models.WebhookConfiguration) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO webhook_configurations (id, webhook_type, webhook_url, is_active, signing_secret, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING created_at, updated_at`,
		cfg.ID, cfg.WebhookType, cfg.WebhookURL, cfg.IsActive, cfg.SigningSecret, cfg.CreatedBy,
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook configuration: %w", err)
	}
	cfg.HasSecret = cfg.SigningSecret != ""
	return nil
}

func (r *webhookConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookConfiguration, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := scanWebhook(scope.Conn.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhook_configurations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "webhook configuration")
	}
	return cfg, nil
}

func (r *webhookConfigRepository) List(ctx context.Context) ([]*models.WebhookConfiguration, error) {
	return r.query(ctx, `SELECT `+webhookColumns+`
		FROM webhook_configurations ORDER BY webhook_type, created_at`)
}

func (r *webhookConfigRepository) ListActiveByType(ctx context.Context, webhookType string) ([]*models.WebhookConfiguration, error) {
	return r.query(ctx, `SELECT `+webhookColumns+`
		FROM webhook_configurations
		WHERE webhook_type = $1 AND is_active
		ORDER BY created_at`, webhookType)
}

func (r *webhookConfigRepository) Update(ctx context.Context, cfg *models.WebhookConfiguration) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	err = scope.Conn.QueryRow(ctx, `
		UPDATE webhook_configurations SET webhook_url = $2, is_active = $3
		WHERE id = $1
		RETURNING updated_at`, cfg.ID, cfg.WebhookURL, cfg.IsActive,
	).Scan(&cfg.UpdatedAt)
	if err != nil {
		return notFound(err, "webhook configuration")
	}
	return nil
}

func (r *webhookConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM webhook_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook configuration: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *webhookConfigRepository) query(ctx context.Context, sql string, args ...any) ([]*models.WebhookConfiguration, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook configurations: %w", err)
	}
	defer rows.Close()

	configs := make([]*models.WebhookConfiguration, 0)
	for rows.Next() {
		cfg, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook configuration: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook configurations: %w", err)
	}
	return configs, nil
}

func scanWebhook(row pgx.Row) (*models.WebhookConfiguration, error) {
	var cfg models.WebhookConfiguration
	err := row.Scan(
		&cfg.ID, &cfg.WebhookType, &cfg.WebhookURL, &cfg.IsActive, &cfg.SigningSecret,
		&cfg.CreatedBy, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.HasSecret = cfg.SigningSecret != ""
	return &cfg, nil
}
