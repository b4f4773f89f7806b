package lifecycle

import (
	"context"
	"errors"
	"testing"

	"makerflow/backend/internal/ledger/domain"
	"makerflow/backend/internal/platform/actor"
	"makerflow/backend/internal/registry"
	"makerflow/backend/internal/store"
)

const tenantID = int64(1)

func newMemory() *store.Memory {
	m := store.NewMemory(registry.DefaultAllowList(), "makerflow-test", 0)
	m.AddTable("tasks",
		"id", "organization_id", "title", "description", "status",
		"deleted_at", "deleted_by", "created_at", "updated_at")
	m.AddTable("equipment_assets",
		"id", "organization_id", "name", "space", "asset_type", "status",
		"deleted_at", "deleted_by", "created_at", "updated_at")
	return m
}

func seedTask(m *store.Memory, title, status string) int64 {
	return m.SeedRow("tasks", domain.Snapshot{
		"organization_id": tenantID,
		"title":           title,
		"status":          status,
		"deleted_at":      nil,
		"deleted_by":      nil,
		"updated_at":      "2026-01-01T00:00:00Z",
	})
}

func actorWith(id int64, role string) actor.Actor {
	return actor.Actor{ID: id, Role: actor.Role(role)}
}

func TestSoftDelete_MarksRowAndWritesLedger(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")

	act := actorWith(4, "staff")
	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	row := m.Row("tasks", id)
	if row["deleted_at"] == nil {
		t.Error("deleted_at should be set")
	}
	if row["deleted_by"] != int64(4) {
		t.Errorf("deleted_by = %v, want 4", row["deleted_by"])
	}

	entries := m.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Action != domain.ActionSoftDeleted {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.Rollback == nil {
		t.Fatal("soft delete entry needs rollback metadata")
	}
	if entry.Rollback.Before["deleted_at"] != nil {
		t.Error("rollback before must capture the pre-delete state")
	}
	if entry.Payload.After["deleted_at"] == nil {
		t.Error("payload after must show the deletion marks")
	}
}

func TestSoftDelete_AlreadyDeleted(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("first SoftDelete: %v", err)
	}
	err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id)
	if !errors.Is(err, ErrAlreadyDeleted) {
		t.Fatalf("second SoftDelete = %v, want ErrAlreadyDeleted", err)
	}
	// The failed attempt must not add a ledger entry.
	if len(m.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(m.Entries()))
	}
}

func TestSoftDelete_NotFoundAndInvalidEntity(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	act := actorWith(4, "staff")

	err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing row = %v, want ErrNotFound", err)
	}

	err = svc.SoftDelete(context.Background(), tenantID, act, "widget", 1)
	if !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("unknown entity = %v, want ErrInvalidEntity", err)
	}
}

func TestSoftDelete_TenantScoping(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	err := svc.SoftDelete(context.Background(), int64(2), act, registry.EntityTask, id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant SoftDelete = %v, want ErrNotFound", err)
	}
	if m.Row("tasks", id)["deleted_at"] != nil {
		t.Error("row must be untouched")
	}
}

func TestSoftDelete_StatusRequired(t *testing.T) {
	// A policy with ready statuses refuses rows in any other status and
	// names the acceptable ones in the error.
	m := newMemory()
	reg := registry.New(map[registry.EntityType]registry.DeletePolicy{
		registry.EntityTask: {
			Label: "Task", Table: "tasks",
			TitleField: "title", StatusField: "status", UpdatedField: "updated_at",
			MinRole: "student", ReadyStatuses: []string{"Cancelled"},
		},
	})
	svc := NewService(m, reg, nil, nil)
	id := seedTask(m, "Build shelf", "In Progress")
	act := actorWith(4, "staff")

	err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id)
	var statusErr *StatusRequiredError
	if !errors.As(err, &statusErr) {
		t.Fatalf("SoftDelete = %v, want StatusRequiredError", err)
	}
	if statusErr.Error() != "status_required:Cancelled" {
		t.Errorf("error = %q", statusErr.Error())
	}

	// Move the row to a ready status and the delete goes through.
	_ = m.RunTx(context.Background(), func(ctx context.Context, u store.Unit) error {
		_, err := u.Records().UpdateFields(ctx, "tasks", id, nil, domain.Snapshot{"status": "Cancelled"})
		return err
	})
	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("SoftDelete after status change: %v", err)
	}
}

func TestSoftDelete_AssetRequiresRetired(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := m.SeedRow("equipment_assets", domain.Snapshot{
		"organization_id": tenantID, "name": "Laser Cutter A", "status": "Operational",
		"deleted_at": nil, "deleted_by": nil, "updated_at": "2026-01-01T00:00:00Z",
	})
	act := actorWith(4, "manager")

	err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityAsset, id)
	var statusErr *StatusRequiredError
	if !errors.As(err, &statusErr) {
		t.Fatalf("SoftDelete = %v, want StatusRequiredError", err)
	}
}

func TestRestore_ClearsDeletionMarks(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := svc.Restore(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	row := m.Row("tasks", id)
	if row["deleted_at"] != nil || row["deleted_by"] != nil {
		t.Errorf("deletion marks should be cleared: %v / %v", row["deleted_at"], row["deleted_by"])
	}

	entries := m.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1].Action != domain.ActionRestored {
		t.Errorf("action = %q", entries[1].Action)
	}
}

func TestRestore_NotDeleted(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	err := svc.Restore(context.Background(), tenantID, act, registry.EntityTask, id)
	if !errors.Is(err, ErrNotDeleted) {
		t.Fatalf("Restore on live row = %v, want ErrNotDeleted", err)
	}
}

func TestPurge_RequiresSoftDelete(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	err := svc.Purge(context.Background(), tenantID, act, registry.EntityTask, id)
	if !errors.Is(err, ErrNotDeleted) {
		t.Fatalf("Purge on live row = %v, want ErrNotDeleted", err)
	}
	if m.Row("tasks", id) == nil {
		t.Error("row must survive a refused purge")
	}
}

func TestPurge_RemovesRowAndKeepsSnapshot(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := svc.Purge(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if m.Row("tasks", id) != nil {
		t.Error("row should be gone after purge")
	}

	// Purge is terminal; a second call finds nothing.
	if err := svc.Purge(context.Background(), tenantID, act, registry.EntityTask, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Purge = %v, want ErrNotFound", err)
	}

	entries := m.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	purge := entries[1]
	if purge.Action != domain.ActionPurged {
		t.Errorf("action = %q", purge.Action)
	}
	if purge.Rollback == nil || purge.Rollback.Before == nil {
		t.Fatal("purge entry must keep the full row snapshot for undo")
	}
	if purge.Rollback.Before["title"] != "Build shelf" {
		t.Errorf("snapshot title = %v", purge.Rollback.Before["title"])
	}
}

func TestListDeleted(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	act := actorWith(4, "staff")

	first := seedTask(m, "First", "Todo")
	second := seedTask(m, "Second", "Todo")
	seedTask(m, "Live", "Todo")

	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, first); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, second); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	items, err := svc.ListDeleted(context.Background(), tenantID, act, registry.EntityTask, 0)
	if err != nil {
		t.Fatalf("ListDeleted: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.Title == "" || item.DeletedAt == "" {
			t.Errorf("incomplete item: %+v", item)
		}
		if item.DeletedBy == nil || *item.DeletedBy != 4 {
			t.Errorf("DeletedBy = %v, want 4", item.DeletedBy)
		}
	}
}

func TestRestoreThenSoftDeleteCycle(t *testing.T) {
	// Active -> SoftDeleted -> Active -> SoftDeleted leaves three ordered
	// entries and a fresh deleted_at on the final state.
	m := newMemory()
	svc := NewService(m, registry.Default(), nil, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")
	ctx := context.Background()

	if err := svc.SoftDelete(ctx, tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	firstDeletedAt := m.Row("tasks", id)["deleted_at"]

	if err := svc.Restore(ctx, tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := svc.SoftDelete(ctx, tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("second SoftDelete: %v", err)
	}

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	wantActions := []string{domain.ActionSoftDeleted, domain.ActionRestored, domain.ActionSoftDeleted}
	for i, want := range wantActions {
		if entries[i].Action != want {
			t.Errorf("entry %d action = %q, want %q", i, entries[i].Action, want)
		}
	}

	row := m.Row("tasks", id)
	if row["deleted_at"] == nil {
		t.Fatal("final state should be soft-deleted")
	}
	if row["deleted_at"] == firstDeletedAt {
		t.Error("second deletion should carry a fresh deleted_at")
	}
	if row["status"] != "Todo" {
		t.Errorf("status = %v, should be untouched by the lifecycle", row["status"])
	}
}

// denyGate denies everything below the configured role rank.
type denyGate struct {
	allowed bool
	err     error
}

func (g *denyGate) Allow(ctx context.Context, actorRole, minRole string) (bool, error) {
	return g.allowed, g.err
}

func TestSoftDelete_RoleDenied(t *testing.T) {
	m := newMemory()
	svc := NewService(m, registry.Default(), &denyGate{allowed: false}, nil)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "student")

	err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id)
	if !errors.Is(err, ErrRoleDenied) {
		t.Fatalf("SoftDelete = %v, want ErrRoleDenied", err)
	}
	if m.Row("tasks", id)["deleted_at"] != nil {
		t.Error("denied delete must not touch the row")
	}
	if len(m.Entries()) != 0 {
		t.Error("denied delete must not write a ledger entry")
	}
}

// recordingEmitter captures emitted entries.
type recordingEmitter struct {
	entries []*domain.Entry
}

func (e *recordingEmitter) Emit(ctx context.Context, entry *domain.Entry) {
	e.entries = append(e.entries, entry)
}

func TestSoftDelete_EmitsAfterCommit(t *testing.T) {
	m := newMemory()
	emitter := &recordingEmitter{}
	svc := NewService(m, registry.Default(), nil, emitter)
	id := seedTask(m, "Build shelf", "Todo")
	act := actorWith(4, "staff")

	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if len(emitter.entries) != 1 {
		t.Fatalf("emitted = %d, want 1", len(emitter.entries))
	}
	if emitter.entries[0].Action != domain.ActionSoftDeleted {
		t.Errorf("emitted action = %q", emitter.entries[0].Action)
	}

	// A failed operation emits nothing.
	if err := svc.SoftDelete(context.Background(), tenantID, act, registry.EntityTask, id); err == nil {
		t.Fatal("second SoftDelete should fail")
	}
	if len(emitter.entries) != 1 {
		t.Errorf("emitted = %d after failure, want 1", len(emitter.entries))
	}
}
