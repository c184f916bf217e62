// Package events defines the domain events emitted by the order workflow and
// the JSON envelope they cross the outbox in.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Kind enumerates known event types.
type Kind string

const (
	KindOrderCreated   Kind = "order.created"
	KindOrderPaid      Kind = "order.paid"
	KindOrderCancelled Kind = "order.cancelled"
)

// AggregateTypeOrder is the only aggregate this service emits events for.
const AggregateTypeOrder = "order"

// SchemaVersionV1 tags the envelope layout carried in broker attributes.
const SchemaVersionV1 = "v1"

// DomainEvent is the envelope shared by every order event. Payload holds the
// per-kind body, already built by one of the constructors in this package.
type DomainEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	Kind          Kind            `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Version       int64           `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode marshals the envelope for the outbox payload column.
func Encode(evt *DomainEvent) ([]byte, error) {
	if evt == nil {
		return nil, fmt.Errorf("events: nil event")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s: %w", evt.Kind, err)
	}
	return data, nil
}

// Decode parses an envelope previously produced by Encode.
func Decode(data []byte) (*DomainEvent, error) {
	var evt DomainEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("events: unmarshal envelope: %w", err)
	}
	if evt.EventID == uuid.Nil {
		return nil, fmt.Errorf("events: envelope missing event_id")
	}
	return &evt, nil
}

// BuildAttributes returns the broker attribute map for an event. The trace id
// is included only when the surrounding span is recording, so consumers can
// stitch delivery back onto the producing trace.
func BuildAttributes(ctx context.Context, evt *DomainEvent) map[string]string {
	attrs := map[string]string{
		"event_id":       evt.EventID.String(),
		"event_type":     string(evt.Kind),
		"aggregate_id":   evt.AggregateID.String(),
		"schema_version": SchemaVersionV1,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs["trace_id"] = sc.TraceID().String()
	}
	return attrs
}

func newEnvelope(kind Kind, aggregateID, eventID uuid.UUID, version int64, occurredAt time.Time, body any) (*DomainEvent, error) {
	if aggregateID == uuid.Nil {
		return nil, fmt.Errorf("events: %s requires an aggregate id", kind)
	}
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s payload: %w", kind, err)
	}
	return &DomainEvent{
		EventID:       eventID,
		Kind:          kind,
		AggregateType: AggregateTypeOrder,
		AggregateID:   aggregateID,
		Version:       version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       payload,
	}, nil
}
