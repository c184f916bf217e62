package services

import (
	"context"
	"errors"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
)

// Port-level sentinels. Adapters translate their native failures (pgx.ErrNoRows,
// unique violations, missing map keys) into these so the use cases never see a
// driver error.
var (
	// ErrOrderNotFound is returned by adapters when no order matches.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVersionConflict is returned when an optimistic-lock update misses.
	ErrVersionConflict = errors.New("order version conflict")
	// ErrIdempotencyConflict is returned when an insert collides with an
	// existing (user_id, idempotency_key) pair.
	ErrIdempotencyConflict = errors.New("idempotency key already used")
	// ErrInvalidTransition marks a lifecycle rule violation.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderCommandRepo is the write-side persistence port owned by the command
// service. Implementations: repositories.OrderRepository (pgx) and
// memory.OrderRepository.
type OrderCommandRepo interface {
	Insert(ctx context.Context, sess txmanager.Session, order *po.Order) (*po.Order, error)
	Get(ctx context.Context, sess txmanager.Session, orderID uuid.UUID) (*po.Order, error)
	UpdateStatus(ctx context.Context, sess txmanager.Session, input UpdateOrderStatusInput) (*po.Order, error)
	FindByIdempotencyKey(ctx context.Context, sess txmanager.Session, userID uuid.UUID, key string) (*po.Order, error)
}

// UpdateOrderStatusInput drives a single status transition. ExpectedVersion
// guards against concurrent writers; adapters return ErrVersionConflict when
// the stored version moved on.
type UpdateOrderStatusInput struct {
	OrderID         uuid.UUID
	Status          po.OrderStatus
	PaymentRef      *string
	CancelReason    *string
	ExpectedVersion int64
}

// OrderQueryRepo is the read-side persistence port owned by the query service.
type OrderQueryRepo interface {
	FindByID(ctx context.Context, sess txmanager.Session, orderID uuid.UUID) (*po.Order, error)
	List(ctx context.Context, sess txmanager.Session, filter ListOrdersFilter) ([]*po.Order, int64, error)
}

// ListOrdersFilter narrows and pages a listing. Zero Limit falls back to the
// service default.
type ListOrdersFilter struct {
	UserID *uuid.UUID
	Status *po.OrderStatus
	Limit  int32
	Offset int32
}

// OutboxMessage is the event row handed to the outbox port, written in the
// same transaction as the aggregate change.
type OutboxMessage struct {
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	Headers       []byte
	AvailableAt   time.Time
}

// OutboxWriter is the notification-side port owned by the command service.
type OutboxWriter interface {
	Enqueue(ctx context.Context, sess txmanager.Session, msg OutboxMessage) error
}
