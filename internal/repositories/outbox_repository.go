package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository owns the orders.outbox_events table: the write side
// (Enqueue, inside the caller's transaction) and the dispatcher side
// (ClaimDue / MarkPublished / Reschedule / MarkFailed, on the pool).
type OutboxRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewOutboxRepository constructs the outbox adapter.
func NewOutboxRepository(db *pgxpool.Pool, logger log.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// Enqueue inserts an event row within the given transaction session. It
// satisfies services.OutboxWriter.
func (r *OutboxRepository) Enqueue(ctx context.Context, sess txmanager.Session, msg services.OutboxMessage) error {
	var q querier = r.db
	if sess != nil {
		q = sess.Tx()
	}

	availableAt := msg.AvailableAt.UTC()
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}

	const insert = `
INSERT INTO orders.outbox_events
       (event_id, aggregate_type, aggregate_id, event_type, payload, headers, status, attempts, available_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, $7, now())`

	if _, err := q.Exec(ctx, insert,
		msg.EventID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.Headers,
		availableAt,
	); err != nil {
		r.log.WithContext(ctx).Errorf("insert outbox event failed: event_id=%s err=%v", msg.EventID, err)
		return fmt.Errorf("insert outbox event: %w", err)
	}

	r.log.WithContext(ctx).Debugf("outbox event enqueued: aggregate=%s id=%s type=%s", msg.AggregateType, msg.AggregateID, msg.EventType)
	return nil
}

// ClaimDue atomically claims up to limit due pending events, bumping their
// attempt counter. SKIP LOCKED keeps concurrent dispatchers off the same rows.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int32, now time.Time) ([]po.OutboxEvent, error) {
	const claim = `
WITH due AS (
    SELECT event_id
      FROM orders.outbox_events
     WHERE status = 'pending' AND available_at <= $2
     ORDER BY available_at
     LIMIT $1
       FOR UPDATE SKIP LOCKED
)
UPDATE orders.outbox_events o
   SET attempts = o.attempts + 1
  FROM due
 WHERE o.event_id = due.event_id
RETURNING o.event_id, o.aggregate_type, o.aggregate_id, o.event_type, o.payload,
          o.headers, o.status, o.attempts, o.available_at, o.published_at,
          o.last_error, o.created_at`

	rows, err := r.db.Query(ctx, claim, limit, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []po.OutboxEvent
	for rows.Next() {
		var evt po.OutboxEvent
		var status string
		if err := rows.Scan(
			&evt.EventID,
			&evt.AggregateType,
			&evt.AggregateID,
			&evt.EventType,
			&evt.Payload,
			&evt.Headers,
			&status,
			&evt.Attempts,
			&evt.AvailableAt,
			&evt.PublishedAt,
			&evt.LastError,
			&evt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		evt.Status = po.OutboxStatus(status)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished finalises a delivered event.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error {
	const update = `
UPDATE orders.outbox_events
   SET status = 'published', published_at = $2, last_error = NULL
 WHERE event_id = $1`

	if _, err := r.db.Exec(ctx, update, eventID, publishedAt.UTC()); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// Reschedule keeps a failed event pending and pushes its next attempt out.
func (r *OutboxRepository) Reschedule(ctx context.Context, eventID uuid.UUID, nextAttempt time.Time, lastErr string) error {
	const update = `
UPDATE orders.outbox_events
   SET available_at = $2, last_error = $3
 WHERE event_id = $1`

	if _, err := r.db.Exec(ctx, update, eventID, nextAttempt.UTC(), lastErr); err != nil {
		return fmt.Errorf("reschedule outbox event: %w", err)
	}
	return nil
}

// MarkFailed parks an event whose attempts are exhausted.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, lastErr string) error {
	const update = `
UPDATE orders.outbox_events
   SET status = 'failed', last_error = $2
 WHERE event_id = $1`

	if _, err := r.db.Exec(ctx, update, eventID, lastErr); err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}
