// Package lifecycle implements the reversible soft-delete flow for registry
// entities. Every transition writes a ledger entry in the same transaction
// as the row mutation.
package lifecycle

import (
	"context"
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

// Gate authorizes an actor role against a policy's minimum role.
type Gate interface {
	Allow(ctx context.Context, actorRole, minRole string) (bool, error)
}

// Emitter publishes committed ledger entries to downstream consumers.
type Emitter interface {
	Emit(ctx context.Context, entry *domain.Entry)
}

// DeletedItem is one trash listing row.
type DeletedItem struct {
	ID        int64
	Title     string
	Status    string
	DeletedAt string
	DeletedBy *int64
}

// Service runs lifecycle transitions.
type Service struct {
	runner  store.Runner
	reg     *registry.Registry
	gate    Gate
	emitter Emitter
	tracer  trace.Tracer
}

// NewService builds a lifecycle service. gate and emitter may be nil; a nil
// gate skips role checks and a nil emitter skips stream publishing.
func NewService(runner store.Runner, reg *registry.Registry, gate Gate, emitter Emitter) *Service {
	return &Service{
		runner:  runner,
		reg:     reg,
		gate:    gate,
		emitter: emitter,
		tracer:  otel.Tracer("makerflow/lifecycle"),
	}
}

// SoftDelete marks the row as deleted, recording who deleted it and when.
// Entities whose policy lists ready statuses must be in one of them first.
func (s *Service) SoftDelete(ctx context.Context, tenantID int64, act actor.Actor, entity registry.EntityType, id int64) error {
	ctx, span := s.startSpan(ctx, "lifecycle.SoftDelete", entity, id)
	defer span.End()

	policy, err := s.authorize(ctx, act, entity)
	if err != nil {
		return err
	}

	var committed *domain.Entry
	err = s.runner.RunTx(ctx, func(ctx context.Context, u store.Unit) error {
		row, err := u.Records().Get(ctx, policy.Table, id, &tenantID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if row["deleted_at"] != nil {
			return ErrAlreadyDeleted
		}
		if len(policy.ReadyStatuses) > 0 {
			status, _ := row[policy.StatusField].(string)
			if !contains(policy.ReadyStatuses, status) {
				return &StatusRequiredError{Allowed: policy.ReadyStatuses}
			}
		}

		before := row.Clone()
		now := time.Now().UTC().Format(time.RFC3339Nano)
		fields := domain.Snapshot{"deleted_at": now, "deleted_by": deletedBy(act)}
		if policy.UpdatedField != "" {
			fields[policy.UpdatedField] = now
		}
		if _, err := u.Records().UpdateFields(ctx, policy.Table, id, &tenantID, fields); err != nil {
			return err
		}
		after := before.Clone()
		for k, v := range fields {
			after[k] = v
		}

		entry, err := u.Ledger().Record(ctx, ledger.RecordInput{
			TenantID: &tenantID,
			ActorID:  act.IDPtr(),
			Action:   domain.ActionSoftDeleted,
			Table:    policy.Table,
			EntityID: id,
			Before:   before,
			After:    after,
			Summary:  fmt.Sprintf("%s %q moved to trash", policy.Label, title(row, policy)),
		})
		if err != nil {
			return err
		}
		committed = entry
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, committed)
	return nil
}

// Restore brings a soft-deleted row back by clearing its deletion marks.
func (s *Service) Restore(ctx context.Context, tenantID int64, act actor.Actor, entity registry.EntityType, id int64) error {
	ctx, span := s.startSpan(ctx, "lifecycle.Restore", entity, id)
	defer span.End()

	policy, err := s.authorize(ctx, act, entity)
	if err != nil {
		return err
	}

	var committed *domain.Entry
	err = s.runner.RunTx(ctx, func(ctx context.Context, u store.Unit) error {
		row, err := u.Records().Get(ctx, policy.Table, id, &tenantID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if row["deleted_at"] == nil {
			return ErrNotDeleted
		}

		before := row.Clone()
		fields := domain.Snapshot{"deleted_at": nil, "deleted_by": nil}
		if _, err := u.Records().UpdateFields(ctx, policy.Table, id, &tenantID, fields); err != nil {
			return err
		}
		after := before.Clone()
		after["deleted_at"] = nil
		after["deleted_by"] = nil

		entry, err := u.Ledger().Record(ctx, ledger.RecordInput{
			TenantID: &tenantID,
			ActorID:  act.IDPtr(),
			Action:   domain.ActionRestored,
			Table:    policy.Table,
			EntityID: id,
			Before:   before,
			After:    after,
			Summary:  fmt.Sprintf("%s %q restored from trash", policy.Label, title(row, policy)),
		})
		if err != nil {
			return err
		}
		committed = entry
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, committed)
	return nil
}

// Purge permanently removes a row that is already soft-deleted. The ledger
// entry's reversal snapshot allows the purge itself to be undone.
func (s *Service) Purge(ctx context.Context, tenantID int64, act actor.Actor, entity registry.EntityType, id int64) error {
	ctx, span := s.startSpan(ctx, "lifecycle.Purge", entity, id)
	defer span.End()

	policy, err := s.authorize(ctx, act, entity)
	if err != nil {
		return err
	}

	var committed *domain.Entry
	err = s.runner.RunTx(ctx, func(ctx context.Context, u store.Unit) error {
		row, err := u.Records().Get(ctx, policy.Table, id, &tenantID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if row["deleted_at"] == nil {
			return ErrNotDeleted
		}

		if _, err := u.Records().Delete(ctx, policy.Table, id, &tenantID); err != nil {
			return err
		}

		entry, err := u.Ledger().Record(ctx, ledger.RecordInput{
			TenantID: &tenantID,
			ActorID:  act.IDPtr(),
			Action:   domain.ActionPurged,
			Table:    policy.Table,
			EntityID: id,
			Before:   row,
			After:    nil,
			Summary:  fmt.Sprintf("%s %q permanently deleted", policy.Label, title(row, policy)),
		})
		if err != nil {
			return err
		}
		committed = entry
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, committed)
	return nil
}

// ListDeleted returns the organization's trash for the entity, most recently
// deleted first.
func (s *Service) ListDeleted(ctx context.Context, tenantID int64, act actor.Actor, entity registry.EntityType, limit int32) ([]DeletedItem, error) {
	ctx, span := s.startSpan(ctx, "lifecycle.ListDeleted", entity, 0)
	defer span.End()

	policy, err := s.authorize(ctx, act, entity)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	var items []DeletedItem
	err = s.runner.RunTx(ctx, func(ctx context.Context, u store.Unit) error {
		rows, err := u.Records().ListDeleted(ctx, policy.Table, tenantID, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			item := DeletedItem{Title: title(row, policy)}
			item.ID, _ = row["id"].(int64)
			item.Status, _ = row[policy.StatusField].(string)
			item.DeletedAt, _ = row["deleted_at"].(string)
			if by, ok := row["deleted_by"].(int64); ok {
				item.DeletedBy = &by
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) authorize(ctx context.Context, act actor.Actor, entity registry.EntityType) (registry.DeletePolicy, error) {
	policy, ok := s.reg.PolicyFor(entity)
	if !ok {
		return registry.DeletePolicy{}, ErrInvalidEntity
	}
	if s.gate != nil {
		allowed, err := s.gate.Allow(ctx, string(act.Role), policy.MinRole)
		if err != nil {
			return registry.DeletePolicy{}, err
		}
		if !allowed {
			return registry.DeletePolicy{}, ErrRoleDenied
		}
	}
	return policy, nil
}

func (s *Service) startSpan(ctx context.Context, name string, entity registry.EntityType, id int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("entity", string(entity)),
		attribute.Int64("entity_id", id),
	))
}

func (s *Service) emit(ctx context.Context, entry *domain.Entry) {
	if s.emitter != nil && entry != nil {
		s.emitter.Emit(ctx, entry)
	}
}

func deletedBy(act actor.Actor) any {
	if act.ID == 0 {
		return nil
	}
	return act.ID
}

func title(row domain.Snapshot, policy registry.DeletePolicy) string {
	t, _ := row[policy.TitleField].(string)
	return t
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
