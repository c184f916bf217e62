// Package outbox drains the transactional outbox: claim due events, publish
// them through the notification port, mark the result. Delivery is
// at-least-once; consumers de-duplicate on event_id.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/notifiers"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// EventStore is the dispatcher-side outbox port, satisfied by
// repositories.OutboxRepository.
type EventStore interface {
	ClaimDue(ctx context.Context, limit int32, now time.Time) ([]po.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error
	Reschedule(ctx context.Context, eventID uuid.UUID, nextAttempt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, lastErr string) error
}

// Config tunes the dispatch loop. Zero fields fall back to defaults.
type Config struct {
	BatchSize      int32
	TickInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int32
	PublishTimeout time.Duration
}

const (
	defaultBatchSize      int32 = 50
	defaultTickInterval         = 2 * time.Second
	defaultInitialBackoff       = 5 * time.Second
	defaultMaxBackoff           = 5 * time.Minute
	defaultMaxAttempts    int32 = 10
	defaultPublishTimeout       = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	return c
}

// Dispatcher polls the outbox and publishes due events. It implements the
// kratos transport.Server contract so the composition root can host it next
// to real servers.
type Dispatcher struct {
	store    EventStore
	notifier notifiers.Notifier
	cfg      Config
	log      *log.Helper
	metrics  *dispatchMetrics
	clock    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// DispatcherParams collects the dispatcher dependencies.
type DispatcherParams struct {
	Store    EventStore
	Notifier notifiers.Notifier
	Config   Config
	Logger   log.Logger
}

// NewDispatcher validates the dependencies and builds a dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("outbox: event store is required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("outbox: notifier is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("outbox: logger is required")
	}
	helper := log.NewHelper(params.Logger)
	meter := otel.GetMeterProvider().Meter("orders-service.outbox")
	return &Dispatcher{
		store:    params.Store,
		notifier: params.Notifier,
		cfg:      params.Config.withDefaults(),
		log:      helper,
		metrics:  newDispatchMetrics(meter, helper),
		clock:    time.Now,
	}, nil
}

// WithClock replaces the time source, for tests.
func (d *Dispatcher) WithClock(fn func() time.Time) {
	if fn != nil {
		d.clock = fn
	}
}

// Start runs the dispatch loop until Stop or context cancellation. It blocks,
// matching the kratos server contract.
func (d *Dispatcher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	defer close(done)
	defer cancel()

	d.log.Infof("outbox dispatcher started: batch=%d tick=%s", d.cfg.BatchSize, d.cfg.TickInterval)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			d.log.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			d.drain(runCtx)
		}
	}
}

// Stop signals the loop and waits for the in-flight batch to finish.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain claims and publishes batches until the backlog is empty or the
// context ends.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := d.processBatch(ctx)
		if err != nil {
			d.log.WithContext(ctx).Errorf("outbox batch failed: err=%v", err)
			return
		}
		if processed < int(d.cfg.BatchSize) {
			return
		}
	}
}

// processBatch claims one batch and publishes each event. Returns the number
// of claimed events.
func (d *Dispatcher) processBatch(ctx context.Context) (int, error) {
	now := d.clock().UTC()
	events, err := d.store.ClaimDue(ctx, d.cfg.BatchSize, now)
	if err != nil {
		return 0, fmt.Errorf("claim due events: %w", err)
	}
	for i := range events {
		d.publishOne(ctx, &events[i])
	}
	return len(events), nil
}

// publishOne delivers a single event and records the outcome. Publish and
// mark are separate steps: a crash in between re-delivers the event, which
// at-least-once consumers tolerate.
func (d *Dispatcher) publishOne(ctx context.Context, evt *po.OutboxEvent) {
	started := d.clock()

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	err := d.notifier.Notify(pubCtx, notifiers.Message{
		Data:       evt.Payload,
		Attributes: decodeHeaders(evt),
	})
	cancel()

	if err == nil {
		publishedAt := d.clock().UTC()
		if markErr := d.store.MarkPublished(ctx, evt.EventID, publishedAt); markErr != nil {
			d.log.WithContext(ctx).Errorf("mark outbox published failed: event_id=%s err=%v", evt.EventID, markErr)
			return
		}
		d.metrics.recordSuccess(ctx, evt.EventType, d.clock().Sub(started))
		d.log.WithContext(ctx).Debugf("outbox event published: event_id=%s type=%s attempts=%d", evt.EventID, evt.EventType, evt.Attempts)
		return
	}

	d.metrics.recordFailure(ctx, evt.EventType, err)
	if evt.Attempts >= d.cfg.MaxAttempts {
		d.log.WithContext(ctx).Errorf("outbox event exhausted: event_id=%s attempts=%d err=%v", evt.EventID, evt.Attempts, err)
		if failErr := d.store.MarkFailed(ctx, evt.EventID, err.Error()); failErr != nil {
			d.log.WithContext(ctx).Errorf("mark outbox failed failed: event_id=%s err=%v", evt.EventID, failErr)
		}
		return
	}

	next := d.clock().UTC().Add(d.backoff(evt.Attempts))
	if resErr := d.store.Reschedule(ctx, evt.EventID, next, err.Error()); resErr != nil {
		d.log.WithContext(ctx).Errorf("reschedule outbox event failed: event_id=%s err=%v", evt.EventID, resErr)
		return
	}
	d.log.WithContext(ctx).Warnf("outbox event rescheduled: event_id=%s attempt=%d next=%s err=%v", evt.EventID, evt.Attempts, next.Format(time.RFC3339), err)
}

// backoff doubles per attempt from InitialBackoff, capped at MaxBackoff.
func (d *Dispatcher) backoff(attempts int32) time.Duration {
	delay := d.cfg.InitialBackoff
	for i := int32(1); i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	if delay > d.cfg.MaxBackoff {
		return d.cfg.MaxBackoff
	}
	return delay
}

// decodeHeaders restores broker attributes from the headers column, falling
// back to the row's own identifiers when the column is unreadable.
func decodeHeaders(evt *po.OutboxEvent) map[string]string {
	if len(evt.Headers) > 0 {
		var attrs map[string]string
		if err := json.Unmarshal(evt.Headers, &attrs); err == nil {
			return attrs
		}
	}
	return map[string]string{
		"event_id":     evt.EventID.String(),
		"event_type":   evt.EventType,
		"aggregate_id": evt.AggregateID.String(),
	}
}
