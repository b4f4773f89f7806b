package repository

import (
	"context"

	"makerflow/backend/internal/ledger/domain"
)

// Repository persists ledger entries. Get methods return (nil, nil) when no
// entry matches.
type Repository interface {
	Create(ctx context.Context, entry *domain.Entry) error
	GetByIDForTenant(ctx context.Context, id int64, tenantID int64) (*domain.Entry, error)
	ListByTenant(ctx context.Context, tenantID int64, limit, offset int32) ([]*domain.Entry, error)
}
