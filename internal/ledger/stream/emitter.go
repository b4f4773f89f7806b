package stream

import (
	"context"
	"log"
	"time"

	"makerflow/backend/internal/ledger/domain"
)

const emitTimeout = 5 * time.Second

// AsyncEmitter publishes entries without blocking the caller. The emit runs
// on its own goroutine with a detached context so a canceled request cannot
// abort a post-commit publish; failures are logged and dropped.
type AsyncEmitter struct {
	producer Producer
}

// NewAsyncEmitter wraps a producer.
func NewAsyncEmitter(producer Producer) *AsyncEmitter {
	return &AsyncEmitter{producer: producer}
}

// Emit publishes the entry in the background.
func (e *AsyncEmitter) Emit(_ context.Context, entry *domain.Entry) {
	ev := FromEntry(entry)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := e.producer.Publish(ctx, ev); err != nil {
			log.Printf("ledger stream: publish entry %d failed: %v", ev.EntryID, err)
		}
	}()
}
