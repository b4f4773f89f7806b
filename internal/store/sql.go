package store

import (
	"context"
	"database/sql"

	"makerflow/backend/internal/db"
	"makerflow/backend/internal/ledger"
	"makerflow/backend/internal/ledger/repository"
	"makerflow/backend/internal/record"
	"makerflow/backend/internal/registry"
)

// SQLRunner runs units of work over database transactions.
type SQLRunner struct {
	db           *sql.DB
	allow        *registry.AllowList
	source       string
	summaryLimit int
}

// NewSQLRunner builds a Runner over the given connection. allow, source and
// summaryLimit configure the ledger recorder created for each transaction.
func NewSQLRunner(conn *sql.DB, allow *registry.AllowList, source string, summaryLimit int) *SQLRunner {
	return &SQLRunner{db: conn, allow: allow, source: source, summaryLimit: summaryLimit}
}

type sqlUnit struct {
	records *record.Store
	ledger  *ledger.Recorder
}

func (u *sqlUnit) Records() Records { return u.records }
func (u *sqlUnit) Ledger() Ledger   { return u.ledger }

// RunTx opens a transaction, builds a Unit over it and runs fn. The
// transaction commits on nil error and rolls back otherwise.
func (r *SQLRunner) RunTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		unit := &sqlUnit{
			records: record.New(tx),
			ledger:  ledger.NewRecorder(repository.NewPostgresRepository(tx), r.allow, r.source, r.summaryLimit),
		}
		return fn(ctx, unit)
	})
}
