// Package po defines the persistent objects handled by the repository layer.
// PO structs map table rows one to one and are never returned past the
// service boundary.
package po

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // created, payment outstanding
	OrderStatusPaid      OrderStatus = "paid"      // payment confirmed
	OrderStatusFulfilled OrderStatus = "fulfilled" // shipped/delivered, terminal
	OrderStatusCancelled OrderStatus = "cancelled" // terminal
)

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusPaid || next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusFulfilled || next == OrderStatusCancelled
	default:
		return false
	}
}

// Order maps the orders.orders table.
type Order struct {
	OrderID        uuid.UUID   `db:"order_id"`
	UserID         uuid.UUID   `db:"user_id"`
	Currency       string      `db:"currency"`    // ISO 4217 code
	TotalMinor     int64       `db:"total_minor"` // sum of items, minor units
	Status         OrderStatus `db:"status"`
	PaymentRef     *string     `db:"payment_ref"`
	CancelReason   *string     `db:"cancel_reason"`
	IdempotencyKey *string     `db:"idempotency_key"`
	Version        int64       `db:"version"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`

	Items []OrderItem
}

// OrderItem maps the orders.order_items table. LineNo preserves the order
// the client submitted the items in.
type OrderItem struct {
	OrderID        uuid.UUID `db:"order_id"`
	LineNo         int32     `db:"line_no"`
	SKU            string    `db:"sku"`
	Quantity       int32     `db:"quantity"`
	UnitPriceMinor int64     `db:"unit_price_minor"`
}

// Subtotal returns the line total in minor units.
func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPriceMinor
}
