// Package repository provides Postgres persistence for the change ledger.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"makerflow/backend/internal/db"
	"makerflow/backend/internal/ledger/domain"
)

// PostgresRepository implements Repository over a DBTX so it can run inside
// the same transaction as the mutation it records.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository builds a ledger repository over the given querier.
func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create inserts the entry and fills in its generated ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var rollbackData any
	if entry.Rollback != nil {
		raw, err := json.Marshal(entry.Rollback)
		if err != nil {
			return fmt.Errorf("marshal rollback: %w", err)
		}
		rollbackData = raw
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO audit_log (organization_id, actor_id, action, target_table, target_id, payload, rollback_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		entry.TenantID, entry.ActorID, entry.Action, entry.TargetTable, entry.TargetID,
		payload, rollbackData,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit_log: %w", err)
	}
	return nil
}

// GetByIDForTenant fetches an entry by id scoped to the organization.
// Returns (nil, nil) when no entry matches.
func (r *PostgresRepository) GetByIDForTenant(ctx context.Context, id int64, tenantID int64) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, actor_id, action, target_table, target_id, payload, rollback_data, created_at
		FROM audit_log
		WHERE id = $1 AND organization_id = $2`, id, tenantID)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// ListByTenant returns the organization's entries, newest first.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int32) ([]*domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, actor_id, action, target_table, target_id, payload, rollback_data, created_at
		FROM audit_log
		WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit_log: %w", err)
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (*domain.Entry, error) {
	var (
		entry       domain.Entry
		payloadRaw  []byte
		rollbackRaw []byte
		tenantID    sql.NullInt64
		actorID     sql.NullInt64
	)
	err := scan(&entry.ID, &tenantID, &actorID, &entry.Action, &entry.TargetTable,
		&entry.TargetID, &payloadRaw, &rollbackRaw, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tenantID.Valid {
		entry.TenantID = &tenantID.Int64
	}
	if actorID.Valid {
		entry.ActorID = &actorID.Int64
	}
	if len(payloadRaw) > 0 {
		// Tolerate malformed payloads; they are display data only.
		_ = json.Unmarshal(payloadRaw, &entry.Payload)
	}
	if len(rollbackRaw) > 0 {
		var rb domain.Rollback
		if err := json.Unmarshal(rollbackRaw, &rb); err != nil {
			return nil, fmt.Errorf("unmarshal rollback: %w", err)
		}
		entry.Rollback = &rb
	}
	return &entry, nil
}
