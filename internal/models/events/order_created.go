package events

import (
	"fmt"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/google/uuid"
)

// OrderCreatedPayload is the order.created body.
type OrderCreatedPayload struct {
	OrderID    uuid.UUID          `json:"order_id"`
	UserID     uuid.UUID          `json:"user_id"`
	Currency   string             `json:"currency"`
	TotalMinor int64              `json:"total_minor"`
	Status     string             `json:"status"`
	Items      []OrderLinePayload `json:"items"`
}

// OrderLinePayload is one line item inside order.created.
type OrderLinePayload struct {
	LineNo         int32  `json:"line_no"`
	SKU            string `json:"sku"`
	Quantity       int32  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// NewOrderCreatedEvent builds the order.created envelope from a freshly
// persisted order.
func NewOrderCreatedEvent(order *po.Order, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if order == nil {
		return nil, fmt.Errorf("events: order.created requires an order")
	}
	items := make([]OrderLinePayload, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, OrderLinePayload{
			LineNo:         it.LineNo,
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPriceMinor: it.UnitPriceMinor,
		})
	}
	body := OrderCreatedPayload{
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		Currency:   order.Currency,
		TotalMinor: order.TotalMinor,
		Status:     string(order.Status),
		Items:      items,
	}
	return newEnvelope(KindOrderCreated, order.OrderID, eventID, order.Version, occurredAt, body)
}
