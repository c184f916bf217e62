package services_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/avelinor/orders-service/internal/metadata"
	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func newCommandService(repo services.OrderCommandRepo, outbox services.OutboxWriter) *services.OrderCommandService {
	logger := log.NewStdLogger(io.Discard)
	return services.NewOrderCommandService(repo, outbox, noopTxManager{}, logger)
}

func TestCreateOrderEnqueuesOutbox(t *testing.T) {
	repo := &commandRepoStub{}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	created, err := svc.CreateOrder(context.Background(), services.CreateOrderInput{
		UserID:   uuid.New(),
		Currency: "usd",
		Items: []services.CreateOrderItem{
			{SKU: "SKU-1", Quantity: 2, UnitPriceMinor: 1500},
			{SKU: "SKU-2", Quantity: 1, UnitPriceMinor: 700},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.TotalMinor != 3700 {
		t.Fatalf("expected server-side total 3700, got %d", created.TotalMinor)
	}
	if created.Currency != "USD" {
		t.Fatalf("expected normalized currency USD, got %s", created.Currency)
	}
	if created.Status != string(po.OrderStatusPending) {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.Reused {
		t.Fatal("fresh create must not be marked as replay")
	}
	if len(outbox.messages) != 1 {
		t.Fatalf("expected 1 outbox message, got %d", len(outbox.messages))
	}
	if outbox.messages[0].EventType != "order.created" {
		t.Fatalf("unexpected event type: %s", outbox.messages[0].EventType)
	}
	if repo.inserted == nil || repo.inserted.Items[0].LineNo != 1 {
		t.Fatal("expected inserted order with 1-based line numbers")
	}
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	repo := &commandRepoStub{}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	_, err := svc.CreateOrder(context.Background(), services.CreateOrderInput{
		UserID:   uuid.New(),
		Currency: "USD",
	})
	if !kerrors.IsBadRequest(err) {
		t.Fatalf("expected BadRequest, got %v", err)
	}
	if repo.inserted != nil || len(outbox.messages) != 0 {
		t.Fatal("invalid input must not touch the repo or outbox")
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	userID := uuid.New()
	key := "req-42"
	existing := pendingOrder(userID)
	existing.IdempotencyKey = &key
	repo := &commandRepoStub{existing: existing}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	created, err := svc.CreateOrder(context.Background(), services.CreateOrderInput{
		UserID:         userID,
		Currency:       "USD",
		Items:          []services.CreateOrderItem{{SKU: "SKU-1", Quantity: 1, UnitPriceMinor: 100}},
		IdempotencyKey: &key,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created.Reused {
		t.Fatal("expected replay to be flagged")
	}
	if created.OrderID != existing.OrderID {
		t.Fatal("replay must return the original order")
	}
	if len(outbox.messages) != 0 {
		t.Fatal("replay must not enqueue a second event")
	}
}

func TestCreateOrderRecoversFromInsertRace(t *testing.T) {
	userID := uuid.New()
	key := "req-7"
	winner := pendingOrder(userID)
	repo := &commandRepoStub{insertErr: services.ErrIdempotencyConflict, conflictWinner: winner}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	created, err := svc.CreateOrder(context.Background(), services.CreateOrderInput{
		UserID:         userID,
		Currency:       "USD",
		Items:          []services.CreateOrderItem{{SKU: "SKU-1", Quantity: 1, UnitPriceMinor: 100}},
		IdempotencyKey: &key,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created.Reused || created.OrderID != winner.OrderID {
		t.Fatal("losing the insert race must return the winner's order")
	}
	if len(outbox.messages) != 0 {
		t.Fatal("race loser must not enqueue an event")
	}
}

func TestCreateOrderUsesContextIdempotencyKey(t *testing.T) {
	repo := &commandRepoStub{}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	ctx := metadata.Inject(context.Background(), metadata.RequestMetadata{IdempotencyKey: "ctx-key"})
	_, err := svc.CreateOrder(ctx, services.CreateOrderInput{
		UserID:   uuid.New(),
		Currency: "USD",
		Items:    []services.CreateOrderItem{{SKU: "SKU-1", Quantity: 1, UnitPriceMinor: 100}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.inserted == nil || repo.inserted.IdempotencyKey == nil || *repo.inserted.IdempotencyKey != "ctx-key" {
		t.Fatal("expected the context idempotency key on the inserted order")
	}
}

func TestCreateOrderOutboxError(t *testing.T) {
	repo := &commandRepoStub{}
	outbox := &outboxWriterStub{err: errors.New("outbox down")}
	svc := newCommandService(repo, outbox)

	_, err := svc.CreateOrder(context.Background(), services.CreateOrderInput{
		UserID:   uuid.New(),
		Currency: "USD",
		Items:    []services.CreateOrderItem{{SKU: "SKU-1", Quantity: 1, UnitPriceMinor: 100}},
	})
	if !kerrors.IsInternalServer(err) {
		t.Fatalf("expected InternalServer, got %v", err)
	}
}

func TestMarkOrderPaidEnqueuesOutbox(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &commandRepoStub{getOrder: order}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	changed, err := svc.MarkOrderPaid(context.Background(), services.MarkOrderPaidInput{
		OrderID:    order.OrderID,
		PaymentRef: "pay-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed.PreviousStatus != string(po.OrderStatusPending) || changed.Status != string(po.OrderStatusPaid) {
		t.Fatalf("unexpected transition %s -> %s", changed.PreviousStatus, changed.Status)
	}
	if len(outbox.messages) != 1 || outbox.messages[0].EventType != "order.paid" {
		t.Fatalf("expected one order.paid message, got %+v", outbox.messages)
	}
	if repo.updateInput.PaymentRef == nil || *repo.updateInput.PaymentRef != "pay-123" {
		t.Fatal("expected payment_ref forwarded to the repo")
	}
	if repo.updateInput.ExpectedVersion != order.Version {
		t.Fatal("expected optimistic version guard from the loaded order")
	}
}

func TestCancelOrderEnqueuesOutbox(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &commandRepoStub{getOrder: order}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	reason := "changed my mind"
	changed, err := svc.CancelOrder(context.Background(), services.CancelOrderInput{
		OrderID: order.OrderID,
		Reason:  &reason,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed.Status != string(po.OrderStatusCancelled) {
		t.Fatalf("expected cancelled, got %s", changed.Status)
	}
	if len(outbox.messages) != 1 || outbox.messages[0].EventType != "order.cancelled" {
		t.Fatalf("expected one order.cancelled message, got %+v", outbox.messages)
	}
}

func TestCancelOrderInvalidTransition(t *testing.T) {
	order := pendingOrder(uuid.New())
	order.Status = po.OrderStatusFulfilled
	repo := &commandRepoStub{getOrder: order}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	_, err := svc.CancelOrder(context.Background(), services.CancelOrderInput{OrderID: order.OrderID})
	if !kerrors.IsConflict(err) {
		t.Fatalf("expected Conflict, got %v", err)
	}
	if len(outbox.messages) != 0 {
		t.Fatal("rejected transition must not enqueue an event")
	}
}

func TestMarkOrderPaidNotFound(t *testing.T) {
	repo := &commandRepoStub{getErr: services.ErrOrderNotFound}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	_, err := svc.MarkOrderPaid(context.Background(), services.MarkOrderPaidInput{
		OrderID:    uuid.New(),
		PaymentRef: "pay-1",
	})
	if !kerrors.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestMarkOrderPaidVersionConflict(t *testing.T) {
	order := pendingOrder(uuid.New())
	repo := &commandRepoStub{getOrder: order, updateErr: services.ErrVersionConflict}
	outbox := &outboxWriterStub{}
	svc := newCommandService(repo, outbox)

	_, err := svc.MarkOrderPaid(context.Background(), services.MarkOrderPaidInput{
		OrderID:    order.OrderID,
		PaymentRef: "pay-1",
	})
	if !kerrors.IsConflict(err) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func pendingOrder(userID uuid.UUID) *po.Order {
	now := time.Now().UTC()
	orderID := uuid.New()
	return &po.Order{
		OrderID:    orderID,
		UserID:     userID,
		Currency:   "USD",
		TotalMinor: 100,
		Status:     po.OrderStatusPending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items: []po.OrderItem{
			{OrderID: orderID, LineNo: 1, SKU: "SKU-1", Quantity: 1, UnitPriceMinor: 100},
		},
	}
}

type commandRepoStub struct {
	existing       *po.Order
	conflictWinner *po.Order
	getOrder       *po.Order
	inserted       *po.Order
	updateInput    services.UpdateOrderStatusInput
	insertErr      error
	getErr         error
	updateErr      error
}

func (s *commandRepoStub) Insert(_ context.Context, _ txmanager.Session, order *po.Order) (*po.Order, error) {
	if s.insertErr != nil {
		if s.conflictWinner != nil {
			s.existing = s.conflictWinner
		}
		return nil, s.insertErr
	}
	s.inserted = order
	return order, nil
}

func (s *commandRepoStub) Get(_ context.Context, _ txmanager.Session, orderID uuid.UUID) (*po.Order, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.getOrder == nil || s.getOrder.OrderID != orderID {
		return nil, services.ErrOrderNotFound
	}
	return s.getOrder, nil
}

func (s *commandRepoStub) UpdateStatus(_ context.Context, _ txmanager.Session, input services.UpdateOrderStatusInput) (*po.Order, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updateInput = input
	updated := *s.getOrder
	updated.Status = input.Status
	updated.PaymentRef = input.PaymentRef
	updated.CancelReason = input.CancelReason
	updated.Version = input.ExpectedVersion + 1
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

func (s *commandRepoStub) FindByIdempotencyKey(_ context.Context, _ txmanager.Session, _ uuid.UUID, _ string) (*po.Order, error) {
	if s.existing == nil {
		return nil, services.ErrOrderNotFound
	}
	return s.existing, nil
}

type outboxWriterStub struct {
	messages []services.OutboxMessage
	err      error
}

func (s *outboxWriterStub) Enqueue(_ context.Context, _ txmanager.Session, msg services.OutboxMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type noopTxManager struct{}

type noopSession struct{}

func (noopSession) Tx() pgx.Tx               { return nil }
func (noopSession) Context() context.Context { return context.Background() }

func (noopTxManager) WithinTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, noopSession{})
}

func (noopTxManager) WithinReadOnlyTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, noopSession{})
}
