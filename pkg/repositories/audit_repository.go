package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/content-engine/pkg/models"
)

// AuditRepository provides data access for the workflow audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// List returns entries matching filters, newest first.
	List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditLogEntry, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	scope, err := conn(ctx)
	if err != nil {
		return err
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var changedFieldsJSON []byte
	if len(entry.ChangedFields) > 0 {
		changedFieldsJSON, err = json.Marshal(entry.ChangedFields)
		if err != nil {
			return fmt.Errorf("failed to marshal changed_fields: %w", err)
		}
	}

	err = scope.Conn.QueryRow(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, source, user_id, changed_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.Source, entry.UserID, changedFieldsJSON,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters models.AuditFilters) ([]*models.AuditLogEntry, error) {
	scope, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	limit, _ := normalizePageParams(filters.Limit, 0)
	where := newWhere("true")
	if filters.EntityType != "" {
		where.add("entity_type = ?", filters.EntityType)
	}
	if filters.EntityID != nil {
		where.add("entity_id = ?", *filters.EntityID)
	}
	if filters.Action != "" {
		where.add("action = ?", filters.Action)
	}

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`
		SELECT id, entity_type, entity_id, action, source, user_id, changed_fields, created_at
		FROM audit_log
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`, where, where.next()), append(where.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}
	return entries, nil
}

func scanAuditLogEntry(row pgx.Row) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var changedFieldsJSON []byte

	err := row.Scan(
		&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action,
		&entry.Source, &entry.UserID, &changedFieldsJSON, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	if len(changedFieldsJSON) > 0 {
		if err := json.Unmarshal(changedFieldsJSON, &entry.ChangedFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changed_fields: %w", err)
		}
	}
	return &entry, nil
}
