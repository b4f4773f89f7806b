// Package stream publishes committed ledger entries to Kafka for downstream
// consumers. Publishing is post-commit and best effort; the ledger row is
// the source of truth.
package stream

import (
	"time"

	"makerflow/backend/internal/ledger/domain"

	"github.com/google/uuid"
)

// Event is the wire form of one committed ledger entry. Snapshots and
// reversal metadata stay in the database; the event carries only the
// display fields.
type Event struct {
	EventID     string    `json:"event_id"`
	EntryID     int64     `json:"entry_id"`
	TenantID    *int64    `json:"tenant_id,omitempty"`
	ActorID     *int64    `json:"actor_id,omitempty"`
	Action      string    `json:"action"`
	TargetTable string    `json:"target_table,omitempty"`
	TargetID    string    `json:"target_id,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromEntry builds an event from a committed entry, assigning a fresh
// event id.
func FromEntry(entry *domain.Entry) Event {
	return Event{
		EventID:     uuid.NewString(),
		EntryID:     entry.ID,
		TenantID:    entry.TenantID,
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		TargetTable: entry.TargetTable,
		TargetID:    entry.TargetID,
		Summary:     entry.Payload.Summary,
		Source:      entry.Payload.Source,
		CreatedAt:   entry.CreatedAt,
	}
}
