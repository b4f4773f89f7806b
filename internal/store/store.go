// Package store defines the unit-of-work boundary used by the lifecycle,
// rollback and cleanup services. A Unit bundles generic row access and the
// ledger recorder over a single transaction, so the mutation and its ledger
// entry always commit or roll back together.
package store

import (
	"context"

	"makerflow/backend/internal/ledger"
	"makerflow/backend/internal/ledger/domain"
)

// Records is the generic row access available inside a unit of work.
type Records interface {
	Columns(ctx context.Context, table string) ([]string, error)
	Get(ctx context.Context, table string, id int64, tenantID *int64) (domain.Snapshot, error)
	Insert(ctx context.Context, table string, fields domain.Snapshot) error
	UpdateFields(ctx context.Context, table string, id int64, tenantID *int64, fields domain.Snapshot) (bool, error)
	Delete(ctx context.Context, table string, id int64, tenantID *int64) (bool, error)
	ListDeleted(ctx context.Context, table string, tenantID int64, limit int32) ([]domain.Snapshot, error)
	MatchingIDs(ctx context.Context, table string, tenantID *int64, fields []string, keyword string) ([]int64, error)
	DeleteByIDs(ctx context.Context, table string, ids []int64) (int64, error)
	DeleteWhere(ctx context.Context, table string, tenantID *int64, field string, value any) (int64, error)
	CountWhere(ctx context.Context, table string, tenantID *int64, field string, value any) (int64, error)
}

// Ledger is the ledger access available inside a unit of work.
type Ledger interface {
	Record(ctx context.Context, in ledger.RecordInput) (*domain.Entry, error)
	GetByIDForTenant(ctx context.Context, id int64, tenantID int64) (*domain.Entry, error)
}

// Unit is one transactional scope.
type Unit interface {
	Records() Records
	Ledger() Ledger
}

// Runner opens a unit of work, runs fn inside it and commits on nil error.
type Runner interface {
	RunTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error
}
