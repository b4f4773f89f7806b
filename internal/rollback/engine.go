// Package rollback reverses ledger-recorded mutations. Reversal is driven
// solely by the entry's rollback metadata and the table's live columns, so
// snapshots taken before a schema change still apply after it.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"makerflow/backend/internal/ledger"
	"makerflow/backend/internal/ledger/domain"
	"makerflow/backend/internal/platform/actor"
	"makerflow/backend/internal/registry"
	"makerflow/backend/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotFound is returned when the entry does not exist in the
	// organization, or a creation-undo targets a row that is already gone.
	ErrNotFound = errors.New("not_found")
	// ErrNotRollbackable is returned for entries without reversal metadata.
	ErrNotRollbackable = errors.New("not_rollbackable")
	// ErrTableNotAllowed is returned when the metadata names a table outside
	// the allow list.
	ErrTableNotAllowed = errors.New("table_not_allowed")
	// ErrNoRestorableFields is returned when none of the snapshot's columns
	// survive in the live schema.
	ErrNoRestorableFields = errors.New("no_restorable_fields")
	// ErrConflict is returned by strict rollbacks when the row changed after
	// the entry was written.
	ErrConflict = errors.New("conflict")
)

// Options tune a rollback. Strict refuses to overwrite a row whose
// updated_at no longer matches the entry's after-snapshot; the default is a
// blind overwrite.
type Options struct {
	Strict bool
}

// Emitter publishes committed ledger entries to downstream consumers.
type Emitter interface {
	Emit(ctx context.Context, entry *domain.Entry)
}

// Engine applies rollbacks.
type Engine struct {
	runner  store.Runner
	allow   *registry.AllowList
	emitter Emitter
	tracer  trace.Tracer
}

// NewEngine builds a rollback engine. emitter may be nil.
func NewEngine(runner store.Runner, allow *registry.AllowList, emitter Emitter) *Engine {
	return &Engine{
		runner:  runner,
		allow:   allow,
		emitter: emitter,
		tracer:  otel.Tracer("makerflow/rollback"),
	}
}

// Rollback reverses the mutation recorded by the given ledger entry and
// records the reversal as a new entry, itself rollbackable.
func (e *Engine) Rollback(ctx context.Context, tenantID int64, act actor.Actor, entryID int64, opts Options) error {
	ctx, span := e.tracer.Start(ctx, "rollback.Rollback", trace.WithAttributes(
		attribute.Int64("entry_id", entryID),
		attribute.Bool("strict", opts.Strict),
	))
	defer span.End()

	var committed *domain.Entry
	err := e.runner.RunTx(ctx, func(ctx context.Context, u store.Unit) error {
		entry, err := u.Ledger().GetByIDForTenant(ctx, entryID, tenantID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrNotFound
		}
		rb := entry.Rollback
		if rb == nil {
			return ErrNotRollbackable
		}
		if !e.allow.Contains(rb.Table) {
			return ErrTableNotAllowed
		}

		cols, err := u.Records().Columns(ctx, rb.Table)
		if err != nil {
			return err
		}
		colSet := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			colSet[c] = struct{}{}
		}

		cur, err := u.Records().Get(ctx, rb.Table, rb.EntityID, &tenantID)
		if err != nil {
			return err
		}

		if opts.Strict && cur != nil {
			curStamp, curOK := cur["updated_at"]
			wantStamp, wantOK := entry.Payload.After["updated_at"]
			if curOK && wantOK && curStamp != wantStamp {
				return ErrConflict
			}
		}

		var after domain.Snapshot
		if rb.Before == nil {
			after, err = e.undoCreation(ctx, u, rb, cur, colSet, act, &tenantID)
		} else {
			after, err = e.restoreSnapshot(ctx, u, rb, cur, colSet, &tenantID)
		}
		if err != nil {
			return err
		}

		reversal, err := u.Ledger().Record(ctx, ledger.RecordInput{
			TenantID: &tenantID,
			ActorID:  act.IDPtr(),
			Action:   domain.ActionRollbackApplied,
			Table:    rb.Table,
			EntityID: rb.EntityID,
			Before:   cur,
			After:    after,
			Summary:  fmt.Sprintf("Rolled back ledger entry #%d (%s)", entry.ID, entry.Action),
		})
		if err != nil {
			return err
		}
		committed = reversal
		return nil
	})
	if err != nil {
		return err
	}
	if e.emitter != nil && committed != nil {
		e.emitter.Emit(ctx, committed)
	}
	return nil
}

// undoCreation removes the row the entry created. Tables that carry the
// soft-delete columns get a soft delete so the undo itself stays reversible;
// others lose the row outright.
func (e *Engine) undoCreation(ctx context.Context, u store.Unit, rb *domain.Rollback, cur domain.Snapshot, colSet map[string]struct{}, act actor.Actor, tenantID *int64) (domain.Snapshot, error) {
	if cur == nil {
		return nil, ErrNotFound
	}
	if _, ok := colSet["deleted_at"]; ok {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		var by any
		if act.ID != 0 {
			by = act.ID
		}
		fields := domain.Snapshot{"deleted_at": now, "deleted_by": by}
		if _, err := u.Records().UpdateFields(ctx, rb.Table, rb.EntityID, tenantID, fields); err != nil {
			return nil, err
		}
		after := cur.Clone()
		after["deleted_at"] = now
		after["deleted_by"] = by
		return after, nil
	}
	if _, err := u.Records().Delete(ctx, rb.Table, rb.EntityID, tenantID); err != nil {
		return nil, err
	}
	return nil, nil
}

// restoreSnapshot writes the before-snapshot back, keeping only columns that
// still exist. A live row gets its surviving columns updated; a purged row
// is re-created under its original id.
func (e *Engine) restoreSnapshot(ctx context.Context, u store.Unit, rb *domain.Rollback, cur domain.Snapshot, colSet map[string]struct{}, tenantID *int64) (domain.Snapshot, error) {
	restore := make(domain.Snapshot, len(rb.Before))
	for k, v := range rb.Before {
		if _, ok := colSet[k]; ok {
			restore[k] = v
		}
	}

	if cur != nil {
		delete(restore, "id")
		if len(restore) == 0 {
			return nil, ErrNoRestorableFields
		}
		if _, err := u.Records().UpdateFields(ctx, rb.Table, rb.EntityID, tenantID, restore); err != nil {
			return nil, err
		}
		after := cur.Clone()
		for k, v := range restore {
			after[k] = v
		}
		return after, nil
	}

	if len(restore) == 0 {
		return nil, ErrNoRestorableFields
	}
	restore["id"] = rb.EntityID
	if err := u.Records().Insert(ctx, rb.Table, restore); err != nil {
		return nil, err
	}
	return restore.Clone(), nil
}
