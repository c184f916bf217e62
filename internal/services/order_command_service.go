package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelinor/orders-service/internal/metadata"
	"github.com/avelinor/orders-service/internal/models/events"
	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/models/vo"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// CreateOrderInput carries everything a caller supplies to open an order.
// The total is always recomputed from the items; callers cannot set it.
type CreateOrderInput struct {
	UserID         uuid.UUID
	Currency       string
	Items          []CreateOrderItem
	IdempotencyKey *string // optional; context metadata is consulted when nil
}

// CreateOrderItem is one requested line.
type CreateOrderItem struct {
	SKU            string
	Quantity       int32
	UnitPriceMinor int64
}

// CancelOrderInput cancels a pending or paid order.
type CancelOrderInput struct {
	OrderID uuid.UUID
	Reason  *string
}

// MarkOrderPaidInput records a successful payment against a pending order.
type MarkOrderPaidInput struct {
	OrderID    uuid.UUID
	PaymentRef string
}

// OrderCommandService owns the write-side use cases. It depends on the ports
// in ports.go only; concrete adapters are bound in the composition root.
type OrderCommandService struct {
	repo      OrderCommandRepo
	outbox    OutboxWriter
	txManager txmanager.Manager
	log       *log.Helper
}

// NewOrderCommandService constructs the write-side service.
func NewOrderCommandService(repo OrderCommandRepo, outbox OutboxWriter, tx txmanager.Manager, logger log.Logger) *OrderCommandService {
	return &OrderCommandService{
		repo:      repo,
		outbox:    outbox,
		txManager: tx,
		log:       log.NewHelper(logger),
	}
}

// CreateOrder validates the input, persists the order and enqueues the
// order.created event in one transaction. When an idempotency key is present
// and already known for the user, the original order is returned instead of a
// duplicate.
func (s *OrderCommandService) CreateOrder(ctx context.Context, input CreateOrderInput) (*vo.OrderCreated, error) {
	if err := validateCreateOrder(input); err != nil {
		return nil, errors.BadRequest(ReasonOrderInvalid, err.Error())
	}

	idemKey := resolveIdempotencyKey(ctx, input.IdempotencyKey)

	var created *po.Order
	var eventID uuid.UUID
	var occurredAt time.Time
	var reused bool

	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		if idemKey != nil {
			existing, repoErr := s.repo.FindByIdempotencyKey(txCtx, sess, input.UserID, *idemKey)
			if repoErr == nil {
				created = existing
				reused = true
				return nil
			}
			if !errors.Is(repoErr, ErrOrderNotFound) {
				return repoErr
			}
		}

		order := buildOrder(input, idemKey)
		inserted, repoErr := s.repo.Insert(txCtx, sess, order)
		if repoErr != nil {
			if errors.Is(repoErr, ErrIdempotencyConflict) && idemKey != nil {
				// Lost the race against a concurrent submission with the
				// same key; the winner's row is the caller's order.
				existing, findErr := s.repo.FindByIdempotencyKey(txCtx, sess, input.UserID, *idemKey)
				if findErr != nil {
					return findErr
				}
				created = existing
				reused = true
				return nil
			}
			return repoErr
		}

		occurredAt = inserted.CreatedAt.UTC()
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		eventID = uuid.New()
		event, buildErr := events.NewOrderCreatedEvent(inserted, eventID, occurredAt)
		if buildErr != nil {
			return fmt.Errorf("build order created event: %w", buildErr)
		}
		if err := s.enqueueOutbox(txCtx, sess, event, occurredAt); err != nil {
			return err
		}

		created = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.WithContext(ctx).Warnf("create order timeout: user_id=%s", input.UserID)
			return nil, errors.GatewayTimeout(ReasonQueryTimeout, "create timeout")
		}
		s.log.WithContext(ctx).Errorf("create order failed: user_id=%s err=%v", input.UserID, err)
		return nil, errors.InternalServer(ReasonOrderWriteFailed, "failed to create order").WithCause(fmt.Errorf("create order: %w", err))
	}

	if reused {
		s.log.WithContext(ctx).Infof("CreateOrder replay: order_id=%s user_id=%s", created.OrderID, created.UserID)
		return vo.NewOrderCreated(created, uuid.Nil, created.CreatedAt.UTC(), true), nil
	}
	s.log.WithContext(ctx).Infof("CreateOrder: order_id=%s user_id=%s total=%d %s", created.OrderID, created.UserID, created.TotalMinor, created.Currency)
	return vo.NewOrderCreated(created, eventID, occurredAt, false), nil
}

// CancelOrder transitions a pending or paid order to cancelled and enqueues
// order.cancelled.
func (s *OrderCommandService) CancelOrder(ctx context.Context, input CancelOrderInput) (*vo.OrderStatusChanged, error) {
	if input.OrderID == uuid.Nil {
		return nil, errors.BadRequest(ReasonOrderInvalid, "order_id is required")
	}
	return s.transition(ctx, input.OrderID, po.OrderStatusCancelled, nil, input.Reason)
}

// MarkOrderPaid transitions a pending order to paid and enqueues order.paid.
func (s *OrderCommandService) MarkOrderPaid(ctx context.Context, input MarkOrderPaidInput) (*vo.OrderStatusChanged, error) {
	if input.OrderID == uuid.Nil {
		return nil, errors.BadRequest(ReasonOrderInvalid, "order_id is required")
	}
	if input.PaymentRef == "" {
		return nil, errors.BadRequest(ReasonOrderInvalid, "payment_ref is required")
	}
	return s.transition(ctx, input.OrderID, po.OrderStatusPaid, &input.PaymentRef, nil)
}

// transition loads the order, checks the lifecycle rule, persists the new
// status under the optimistic version and enqueues the matching event.
func (s *OrderCommandService) transition(ctx context.Context, orderID uuid.UUID, next po.OrderStatus, paymentRef, cancelReason *string) (*vo.OrderStatusChanged, error) {
	var updated *po.Order
	var previous po.OrderStatus
	var eventID uuid.UUID
	var occurredAt time.Time

	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		current, repoErr := s.repo.Get(txCtx, sess, orderID)
		if repoErr != nil {
			return repoErr
		}
		previous = current.Status
		if !previous.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, next)
		}

		order, repoErr := s.repo.UpdateStatus(txCtx, sess, UpdateOrderStatusInput{
			OrderID:         orderID,
			Status:          next,
			PaymentRef:      paymentRef,
			CancelReason:    cancelReason,
			ExpectedVersion: current.Version,
		})
		if repoErr != nil {
			return repoErr
		}

		occurredAt = order.UpdatedAt.UTC()
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		eventID = uuid.New()

		var event *events.DomainEvent
		var buildErr error
		switch next {
		case po.OrderStatusPaid:
			event, buildErr = events.NewOrderPaidEvent(order, eventID, occurredAt)
		case po.OrderStatusCancelled:
			event, buildErr = events.NewOrderCancelledEvent(order, previous, eventID, occurredAt)
		default:
			buildErr = fmt.Errorf("no event for transition to %s", next)
		}
		if buildErr != nil {
			return fmt.Errorf("build %s event: %w", next, buildErr)
		}
		if err := s.enqueueOutbox(txCtx, sess, event, occurredAt); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, errors.NotFound(ReasonOrderNotFound, "order not found")
		}
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrVersionConflict) {
			s.log.WithContext(ctx).Warnf("order transition rejected: order_id=%s next=%s err=%v", orderID, next, err)
			return nil, errors.Conflict(ReasonOrderStateConflict, fmt.Sprintf("order cannot move to %s", next))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.WithContext(ctx).Warnf("order transition timeout: order_id=%s", orderID)
			return nil, errors.GatewayTimeout(ReasonQueryTimeout, "transition timeout")
		}
		s.log.WithContext(ctx).Errorf("order transition failed: order_id=%s next=%s err=%v", orderID, next, err)
		return nil, errors.InternalServer(ReasonOrderWriteFailed, "failed to update order").WithCause(fmt.Errorf("transition order: %w", err))
	}

	s.log.WithContext(ctx).Infof("OrderTransition: order_id=%s %s -> %s", updated.OrderID, previous, updated.Status)
	return vo.NewOrderStatusChanged(updated, previous, eventID, occurredAt), nil
}

// enqueueOutbox encodes the event envelope and hands it to the outbox port
// within the caller's transaction session.
func (s *OrderCommandService) enqueueOutbox(ctx context.Context, sess txmanager.Session, event *events.DomainEvent, availableAt time.Time) error {
	payload, err := events.Encode(event)
	if err != nil {
		return err
	}
	headers, err := encodeHeaders(events.BuildAttributes(ctx, event))
	if err != nil {
		return err
	}
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}
	msg := OutboxMessage{
		EventID:       event.EventID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     string(event.Kind),
		Payload:       payload,
		Headers:       headers,
		AvailableAt:   availableAt,
	}
	if err := s.outbox.Enqueue(ctx, sess, msg); err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

// buildOrder assembles a fresh pending order aggregate from validated input.
func buildOrder(input CreateOrderInput, idemKey *string) *po.Order {
	now := time.Now().UTC()
	order := &po.Order{
		OrderID:        uuid.New(),
		UserID:         input.UserID,
		Currency:       normalizeCurrency(input.Currency),
		Status:         po.OrderStatusPending,
		IdempotencyKey: idemKey,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	items := make([]po.OrderItem, 0, len(input.Items))
	var total int64
	for i, line := range input.Items {
		item := po.OrderItem{
			OrderID:        order.OrderID,
			LineNo:         int32(i + 1),
			SKU:            line.SKU,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
		}
		total += item.Subtotal()
		items = append(items, item)
	}
	order.Items = items
	order.TotalMinor = total
	return order
}

// encodeHeaders serialises broker attributes for the outbox headers column.
func encodeHeaders(attrs map[string]string) ([]byte, error) {
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode outbox headers: %w", err)
	}
	return data, nil
}

// resolveIdempotencyKey prefers the explicit input key and falls back to the
// request metadata riding on the context.
func resolveIdempotencyKey(ctx context.Context, explicit *string) *string {
	if explicit != nil && *explicit != "" {
		return explicit
	}
	if key, ok := metadata.IdempotencyKeyFromContext(ctx); ok {
		return &key
	}
	return nil
}
