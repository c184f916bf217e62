// Package vo defines the view objects returned by the service layer,
// keeping callers off the persistence structs.
package vo

import (
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/google/uuid"
)

// OrderLine is one item line in a view.
type OrderLine struct {
	LineNo         int32  `json:"line_no"`
	SKU            string `json:"sku"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	SubtotalMinor  int64  `json:"subtotal_minor"`
}

// OrderDetail is the full read view of a single order.
type OrderDetail struct {
	OrderID      uuid.UUID   `json:"order_id"`
	UserID       uuid.UUID   `json:"user_id"`
	Currency     string      `json:"currency"`
	TotalMinor   int64       `json:"total_minor"`
	Status       string      `json:"status"`
	PaymentRef   *string     `json:"payment_ref,omitempty"`
	CancelReason *string     `json:"cancel_reason,omitempty"`
	Items        []OrderLine `json:"items"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewOrderDetail maps a persistent order onto its read view.
func NewOrderDetail(order *po.Order) *OrderDetail {
	if order == nil {
		return nil
	}
	lines := make([]OrderLine, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, OrderLine{
			LineNo:         it.LineNo,
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPriceMinor: it.UnitPriceMinor,
			SubtotalMinor:  it.Subtotal(),
		})
	}
	return &OrderDetail{
		OrderID:      order.OrderID,
		UserID:       order.UserID,
		Currency:     order.Currency,
		TotalMinor:   order.TotalMinor,
		Status:       string(order.Status),
		PaymentRef:   order.PaymentRef,
		CancelReason: order.CancelReason,
		Items:        lines,
		Version:      order.Version,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
}

// OrderCreated is returned by CreateOrder; it carries the identifiers a
// caller needs to correlate the write with the emitted event.
type OrderCreated struct {
	OrderID    uuid.UUID `json:"order_id"`
	Status     string    `json:"status"`
	TotalMinor int64     `json:"total_minor"`
	Currency   string    `json:"currency"`
	Reused     bool      `json:"reused"` // true when an idempotent replay returned the original
	EventID    uuid.UUID `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewOrderCreated builds the creation view. reused marks idempotent replays;
// replays enqueue no new event, so eventID is uuid.Nil for them.
func NewOrderCreated(order *po.Order, eventID uuid.UUID, occurredAt time.Time, reused bool) *OrderCreated {
	if order == nil {
		return nil
	}
	return &OrderCreated{
		OrderID:    order.OrderID,
		Status:     string(order.Status),
		TotalMinor: order.TotalMinor,
		Currency:   order.Currency,
		Reused:     reused,
		EventID:    eventID,
		OccurredAt: occurredAt,
	}
}

// OrderStatusChanged is returned by the cancel and pay operations.
type OrderStatusChanged struct {
	OrderID        uuid.UUID `json:"order_id"`
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
	EventID        uuid.UUID `json:"event_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewOrderStatusChanged builds the transition view.
func NewOrderStatusChanged(order *po.Order, previous po.OrderStatus, eventID uuid.UUID, occurredAt time.Time) *OrderStatusChanged {
	if order == nil {
		return nil
	}
	return &OrderStatusChanged{
		OrderID:        order.OrderID,
		PreviousStatus: string(previous),
		Status:         string(order.Status),
		Version:        order.Version,
		EventID:        eventID,
		OccurredAt:     occurredAt,
	}
}

// OrderSummary is one row of a ListOrders page.
type OrderSummary struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	Currency   string    `json:"currency"`
	TotalMinor int64     `json:"total_minor"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewOrderSummary maps a persistent order onto a list row. Items are not
// loaded for summaries.
func NewOrderSummary(order *po.Order) OrderSummary {
	return OrderSummary{
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		Currency:   order.Currency,
		TotalMinor: order.TotalMinor,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
	}
}

// OrderPage is a ListOrders result page.
type OrderPage struct {
	Orders []OrderSummary `json:"orders"`
	Total  int64          `json:"total"`
}
