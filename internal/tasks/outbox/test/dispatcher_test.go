package outbox_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/notifiers"
	"github.com/avelinor/orders-service/internal/tasks/outbox"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

func newDispatcher(t *testing.T, store outbox.EventStore, notifier notifiers.Notifier, cfg outbox.Config) *outbox.Dispatcher {
	t.Helper()
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 5 * time.Millisecond
	}
	d, err := outbox.NewDispatcher(outbox.DispatcherParams{
		Store:    store,
		Notifier: notifier,
		Config:   cfg,
		Logger:   log.NewStdLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func runDispatcher(t *testing.T, d *outbox.Dispatcher) func() {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := d.Stop(stopCtx); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("Start returned: %v", err)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func dueEvent(attempts int32) po.OutboxEvent {
	return po.OutboxEvent{
		EventID:       uuid.New(),
		AggregateType: "order",
		AggregateID:   uuid.New(),
		EventType:     "order.created",
		Payload:       []byte(`{"event_type":"order.created"}`),
		Headers:       []byte(`{"event_type":"order.created"}`),
		Status:        po.OutboxStatusPending,
		Attempts:      attempts,
		AvailableAt:   time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestDispatcherPublishesClaimedEvents(t *testing.T) {
	first := dueEvent(1)
	second := dueEvent(1)
	store := &storeStub{queue: [][]po.OutboxEvent{{first, second}}}
	notifier := &notifierStub{}
	d := newDispatcher(t, store, notifier, outbox.Config{})

	stop := runDispatcher(t, d)
	defer stop()

	waitFor(t, func() bool { return len(store.publishedIDs()) == 2 }, "expected both events marked published")
	msgs := notifier.sent()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(msgs))
	}
	if msgs[0].Attributes["event_type"] != "order.created" {
		t.Fatalf("expected decoded headers as attributes, got %v", msgs[0].Attributes)
	}
}

func TestDispatcherReschedulesOnPublishFailure(t *testing.T) {
	evt := dueEvent(1)
	store := &storeStub{queue: [][]po.OutboxEvent{{evt}}}
	notifier := &notifierStub{err: errors.New("broker down")}
	d := newDispatcher(t, store, notifier, outbox.Config{
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		MaxAttempts:    5,
	})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	d.WithClock(func() time.Time { return base })

	stop := runDispatcher(t, d)
	defer stop()

	waitFor(t, func() bool { return len(store.rescheduledCalls()) >= 1 }, "expected a reschedule")
	call := store.rescheduledCalls()[0]
	if call.eventID != evt.EventID {
		t.Fatalf("unexpected event rescheduled: %s", call.eventID)
	}
	if !call.next.Equal(base.Add(time.Second)) {
		t.Fatalf("expected first retry after the initial backoff, got %s", call.next)
	}
	if call.lastErr == "" {
		t.Fatal("expected the publish error recorded")
	}
	if len(store.publishedIDs()) != 0 {
		t.Fatal("failed publish must not be marked published")
	}
}

func TestDispatcherCapsBackoff(t *testing.T) {
	evt := dueEvent(10)
	store := &storeStub{queue: [][]po.OutboxEvent{{evt}}}
	notifier := &notifierStub{err: errors.New("broker down")}
	d := newDispatcher(t, store, notifier, outbox.Config{
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		MaxAttempts:    20,
	})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	d.WithClock(func() time.Time { return base })

	stop := runDispatcher(t, d)
	defer stop()

	waitFor(t, func() bool { return len(store.rescheduledCalls()) >= 1 }, "expected a reschedule")
	call := store.rescheduledCalls()[0]
	if !call.next.Equal(base.Add(4 * time.Second)) {
		t.Fatalf("expected backoff capped at 4s, got %s", call.next.Sub(base))
	}
}

func TestDispatcherMarksFailedAfterMaxAttempts(t *testing.T) {
	evt := dueEvent(3)
	store := &storeStub{queue: [][]po.OutboxEvent{{evt}}}
	notifier := &notifierStub{err: errors.New("broker down")}
	d := newDispatcher(t, store, notifier, outbox.Config{MaxAttempts: 3})

	stop := runDispatcher(t, d)
	defer stop()

	waitFor(t, func() bool { return len(store.failedIDs()) == 1 }, "expected the event marked failed")
	if len(store.rescheduledCalls()) != 0 {
		t.Fatal("exhausted event must not be rescheduled")
	}
}

func TestDispatcherStopWithoutStart(t *testing.T) {
	store := &storeStub{}
	d := newDispatcher(t, store, &notifierStub{}, outbox.Config{})
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

type rescheduleCall struct {
	eventID uuid.UUID
	next    time.Time
	lastErr string
}

type storeStub struct {
	mu          sync.Mutex
	queue       [][]po.OutboxEvent
	published   []uuid.UUID
	rescheduled []rescheduleCall
	failed      []uuid.UUID
}

func (s *storeStub) ClaimDue(_ context.Context, _ int32, _ time.Time) ([]po.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil
	}
	batch := s.queue[0]
	s.queue = s.queue[1:]
	return batch, nil
}

func (s *storeStub) MarkPublished(_ context.Context, eventID uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, eventID)
	return nil
}

func (s *storeStub) Reschedule(_ context.Context, eventID uuid.UUID, next time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduled = append(s.rescheduled, rescheduleCall{eventID: eventID, next: next, lastErr: lastErr})
	return nil
}

func (s *storeStub) MarkFailed(_ context.Context, eventID uuid.UUID, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, eventID)
	return nil
}

func (s *storeStub) publishedIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.published...)
}

func (s *storeStub) rescheduledCalls() []rescheduleCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rescheduleCall(nil), s.rescheduled...)
}

func (s *storeStub) failedIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.failed...)
}

type notifierStub struct {
	mu       sync.Mutex
	err      error
	messages []notifiers.Message
}

func (n *notifierStub) Notify(_ context.Context, msg notifiers.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *notifierStub) sent() []notifiers.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifiers.Message(nil), n.messages...)
}
