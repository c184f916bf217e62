// Package memory provides in-memory adapters for the service ports. They back
// unit tests and local compositions that run without PostgreSQL; semantics
// mirror the pgx adapters, including the port sentinels.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/avelinor/orders-service/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
)

// OrderRepository keeps orders in a mutex-guarded map. It implements
// services.OrderCommandRepo and services.OrderQueryRepo; transaction sessions
// are accepted and ignored.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*po.Order
	byKey  map[idemKey]uuid.UUID
}

type idemKey struct {
	userID uuid.UUID
	key    string
}

// NewOrderRepository constructs an empty in-memory order store.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[uuid.UUID]*po.Order),
		byKey:  make(map[idemKey]uuid.UUID),
	}
}

// Insert stores a copy of the order. Duplicate idempotency keys per user
// surface as services.ErrIdempotencyConflict, like the unique index does.
func (r *OrderRepository) Insert(_ context.Context, _ txmanager.Session, order *po.Order) (*po.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.IdempotencyKey != nil {
		key := idemKey{userID: order.UserID, key: *order.IdempotencyKey}
		if _, exists := r.byKey[key]; exists {
			return nil, services.ErrIdempotencyConflict
		}
		r.byKey[key] = order.OrderID
	}
	stored := cloneOrder(order)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
		stored.UpdatedAt = stored.CreatedAt
	}
	r.orders[order.OrderID] = stored
	return cloneOrder(stored), nil
}

// Get returns a copy of the stored order.
func (r *OrderRepository) Get(_ context.Context, _ txmanager.Session, orderID uuid.UUID) (*po.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// FindByID is the read-side alias of Get.
func (r *OrderRepository) FindByID(ctx context.Context, sess txmanager.Session, orderID uuid.UUID) (*po.Order, error) {
	return r.Get(ctx, sess, orderID)
}

// FindByIdempotencyKey resolves a previous submission with the same key.
func (r *OrderRepository) FindByIdempotencyKey(_ context.Context, _ txmanager.Session, userID uuid.UUID, key string) (*po.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byKey[idemKey{userID: userID, key: key}]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	order, ok := r.orders[orderID]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// UpdateStatus applies one transition under the optimistic version guard.
func (r *OrderRepository) UpdateStatus(_ context.Context, _ txmanager.Session, input services.UpdateOrderStatusInput) (*po.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[input.OrderID]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	if order.Version != input.ExpectedVersion {
		return nil, services.ErrVersionConflict
	}
	order.Status = input.Status
	if input.PaymentRef != nil {
		ref := *input.PaymentRef
		order.PaymentRef = &ref
	}
	if input.CancelReason != nil {
		reason := *input.CancelReason
		order.CancelReason = &reason
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

// List pages orders newest first, matching the pgx adapter's ordering.
func (r *OrderRepository) List(_ context.Context, _ txmanager.Session, filter services.ListOrdersFilter) ([]*po.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*po.Order
	for _, order := range r.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		matched = append(matched, order)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := int(filter.Offset)
	if start > len(matched) {
		start = len(matched)
	}
	end := start + int(filter.Limit)
	if filter.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	page := make([]*po.Order, 0, end-start)
	for _, order := range matched[start:end] {
		page = append(page, cloneOrder(order))
	}
	return page, total, nil
}

func cloneOrder(order *po.Order) *po.Order {
	if order == nil {
		return nil
	}
	clone := *order
	clone.Items = append([]po.OrderItem(nil), order.Items...)
	if order.PaymentRef != nil {
		ref := *order.PaymentRef
		clone.PaymentRef = &ref
	}
	if order.CancelReason != nil {
		reason := *order.CancelReason
		clone.CancelReason = &reason
	}
	if order.IdempotencyKey != nil {
		key := *order.IdempotencyKey
		clone.IdempotencyKey = &key
	}
	return &clone
}
