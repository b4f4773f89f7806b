package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"makerflow/backend/internal/ledger/domain"
)

// mockProducer implements Producer for tests.
type mockProducer struct {
	mu     sync.Mutex
	events []Event
	err    error
}

var _ Producer = (*mockProducer)(nil)

func (m *mockProducer) Publish(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockProducer) Close() error { return nil }

func (m *mockProducer) published() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func sampleEntry() *domain.Entry {
	tenantID := int64(1)
	actorID := int64(4)
	return &domain.Entry{
		ID:          12,
		TenantID:    &tenantID,
		ActorID:     &actorID,
		Action:      domain.ActionSoftDeleted,
		TargetTable: "tasks",
		TargetID:    "10",
		Payload:     domain.Payload{Source: "makerflow", Summary: "Task moved to trash"},
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFromEntry(t *testing.T) {
	entry := sampleEntry()
	ev := FromEntry(entry)

	if ev.EventID == "" {
		t.Error("EventID should be assigned")
	}
	if ev.EntryID != 12 {
		t.Errorf("EntryID = %d", ev.EntryID)
	}
	if ev.TenantID == nil || *ev.TenantID != 1 {
		t.Errorf("TenantID = %v", ev.TenantID)
	}
	if ev.Action != domain.ActionSoftDeleted {
		t.Errorf("Action = %q", ev.Action)
	}
	if ev.TargetTable != "tasks" || ev.TargetID != "10" {
		t.Errorf("target = %s/%s", ev.TargetTable, ev.TargetID)
	}
	if ev.Summary != "Task moved to trash" || ev.Source != "makerflow" {
		t.Errorf("payload fields = %q / %q", ev.Summary, ev.Source)
	}
	if !ev.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("CreatedAt = %v", ev.CreatedAt)
	}

	// Each emit gets its own event id.
	if other := FromEntry(entry); other.EventID == ev.EventID {
		t.Error("event ids must be unique per emit")
	}
}

func TestAsyncEmitter_Publishes(t *testing.T) {
	producer := &mockProducer{}
	emitter := NewAsyncEmitter(producer)

	emitter.Emit(context.Background(), sampleEntry())

	deadline := time.After(2 * time.Second)
	for {
		if events := producer.published(); len(events) == 1 {
			if events[0].EntryID != 12 {
				t.Errorf("EntryID = %d", events[0].EntryID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("emit never reached the producer")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAsyncEmitter_SwallowsProducerErrors(t *testing.T) {
	producer := &mockProducer{err: errors.New("broker down")}
	emitter := NewAsyncEmitter(producer)

	// Must not panic or block.
	emitter.Emit(context.Background(), sampleEntry())
	time.Sleep(50 * time.Millisecond)
}

func TestAsyncEmitter_IgnoresCanceledCaller(t *testing.T) {
	producer := &mockProducer{}
	emitter := NewAsyncEmitter(producer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emitter.Emit(ctx, sampleEntry())

	deadline := time.After(2 * time.Second)
	for {
		if len(producer.published()) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("publish should proceed despite the canceled caller context")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
