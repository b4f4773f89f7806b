// Package domain holds the ledger entry model shared by the recorder,
// repositories and the rollback engine.
package domain

import "time"

// Action verbs written by the lifecycle, rollback and cleanup services.
const (
	ActionSoftDeleted     = "item_soft_deleted"
	ActionRestored        = "item_restored"
	ActionPurged          = "item_purged"
	ActionRollbackApplied = "audit_rollback_applied"
	ActionTestDataPurged  = "test_data_purged"
)

// Snapshot is a full-row capture keyed by column name. Values are normalized
// to JSON-safe forms before storage (see internal/record).
type Snapshot map[string]any

// Clone returns a shallow copy of the snapshot. Values are assumed to be
// normalized scalars, so a shallow copy is sufficient.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Rollback is the reversal metadata attached to mutations on allow-listed
// tables. Before is nil when the entry records a creation; undoing it means
// removing the row again.
type Rollback struct {
	Table    string   `json:"table"`
	EntityID int64    `json:"entity_id"`
	Before   Snapshot `json:"before"`
}

// Payload is the display-oriented part of a ledger entry. Summary may be
// truncated for storage; Before and After are informational copies and are
// never used to drive a rollback.
type Payload struct {
	Source  string   `json:"source,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Before  Snapshot `json:"before,omitempty"`
	After   Snapshot `json:"after,omitempty"`
}

// Entry is one append-only ledger record.
type Entry struct {
	ID          int64
	TenantID    *int64
	ActorID     *int64
	Action      string
	TargetTable string
	TargetID    string
	Payload     Payload
	Rollback    *Rollback
	CreatedAt   time.Time
}
