// Package ledger writes change-ledger entries with reversal metadata.
package ledger

import (
	"context"
	"fmt"
	"strconv"

	"makerflow/backend/internal/ledger/domain"
	"makerflow/backend/internal/ledger/repository"
	"makerflow/backend/internal/registry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultSummaryLimit caps stored summaries when no limit is configured.
const DefaultSummaryLimit = 500

// RecordInput describes one ledger entry to write. Before and After are
// normalized snapshots; Before nil together with a non-empty Table marks a
// creation, whose undo removes the row.
type RecordInput struct {
	TenantID *int64
	ActorID  *int64
	Action   string
	Table    string
	EntityID int64
	Before   domain.Snapshot
	After    domain.Snapshot
	Summary  string
}

// Recorder appends entries to the ledger. Reversal metadata is attached only
// for tables on the rollback allow list; summary truncation never touches it.
type Recorder struct {
	repo         repository.Repository
	allow        *registry.AllowList
	source       string
	summaryLimit int

	entriesWritten metric.Int64Counter
}

// NewRecorder builds a Recorder. source tags every payload with the writing
// system; summaryLimit <= 0 falls back to DefaultSummaryLimit.
func NewRecorder(repo repository.Repository, allow *registry.AllowList, source string, summaryLimit int) *Recorder {
	if summaryLimit <= 0 {
		summaryLimit = DefaultSummaryLimit
	}
	meter := otel.Meter("makerflow/ledger")
	counter, err := meter.Int64Counter("ledger.entries.written",
		metric.WithDescription("Ledger entries written, by action"))
	if err != nil {
		counter = nil
	}
	return &Recorder{
		repo:           repo,
		allow:          allow,
		source:         source,
		summaryLimit:   summaryLimit,
		entriesWritten: counter,
	}
}

// Record writes one entry and returns it with its generated ID and CreatedAt.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (*domain.Entry, error) {
	entry := &domain.Entry{
		TenantID:    in.TenantID,
		ActorID:     in.ActorID,
		Action:      in.Action,
		TargetTable: in.Table,
		Payload: domain.Payload{
			Source:  r.source,
			Summary: truncateRunes(in.Summary, r.summaryLimit),
			Before:  in.Before,
			After:   in.After,
		},
	}
	if in.EntityID != 0 {
		entry.TargetID = strconv.FormatInt(in.EntityID, 10)
	}
	if in.Table != "" && r.allow != nil && r.allow.Contains(in.Table) {
		entry.Rollback = &domain.Rollback{
			Table:    in.Table,
			EntityID: in.EntityID,
			Before:   in.Before,
		}
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record ledger entry: %w", err)
	}
	if r.entriesWritten != nil {
		r.entriesWritten.Add(ctx, 1, metric.WithAttributes(attribute.String("action", in.Action)))
	}
	return entry, nil
}

// GetByIDForTenant fetches an entry scoped to the organization. Returns
// (nil, nil) when no entry matches.
func (r *Recorder) GetByIDForTenant(ctx context.Context, id int64, tenantID int64) (*domain.Entry, error) {
	return r.repo.GetByIDForTenant(ctx, id, tenantID)
}

// truncateRunes caps s at limit runes so multi-byte text is never split.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
