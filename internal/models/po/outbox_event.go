package po

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the dispatch state of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed" // attempts exhausted
)

// OutboxEvent maps the orders.outbox_events table. Rows are written in the
// same transaction as the aggregate change and drained by the dispatcher.
type OutboxEvent struct {
	EventID       uuid.UUID    `db:"event_id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   uuid.UUID    `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Headers       []byte       `db:"headers"`
	Status        OutboxStatus `db:"status"`
	Attempts      int32        `db:"attempts"`
	AvailableAt   time.Time    `db:"available_at"`
	PublishedAt   *time.Time   `db:"published_at"`
	LastError     *string      `db:"last_error"`
	CreatedAt     time.Time    `db:"created_at"`
}
