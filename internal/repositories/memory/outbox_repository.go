package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
)

// OutboxRepository collects enqueued events in memory. Tests use it to assert
// what a use case emitted without a database.
type OutboxRepository struct {
	mu     sync.Mutex
	events []po.OutboxEvent
}

// NewOutboxRepository constructs an empty in-memory outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

// Enqueue appends the event. It satisfies services.OutboxWriter.
func (r *OutboxRepository) Enqueue(_ context.Context, _ txmanager.Session, msg services.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	availableAt := msg.AvailableAt
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}
	r.events = append(r.events, po.OutboxEvent{
		EventID:       msg.EventID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       append([]byte(nil), msg.Payload...),
		Headers:       append([]byte(nil), msg.Headers...),
		Status:        po.OutboxStatusPending,
		AvailableAt:   availableAt,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}

// Events returns a snapshot of everything enqueued so far.
func (r *OutboxRepository) Events() []po.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]po.OutboxEvent(nil), r.events...)
}

// ByAggregate filters the snapshot down to one aggregate id.
func (r *OutboxRepository) ByAggregate(aggregateID uuid.UUID) []po.OutboxEvent {
	var matched []po.OutboxEvent
	for _, evt := range r.Events() {
		if evt.AggregateID == aggregateID {
			matched = append(matched, evt)
		}
	}
	return matched
}
