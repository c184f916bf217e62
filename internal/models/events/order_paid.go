package events

import (
	"fmt"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/google/uuid"
)

// OrderPaidPayload is the order.paid body.
type OrderPaidPayload struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	PaymentRef string    `json:"payment_ref"`
	TotalMinor int64     `json:"total_minor"`
	Currency   string    `json:"currency"`
}

// NewOrderPaidEvent builds the order.paid envelope after a successful
// pending to paid transition.
func NewOrderPaidEvent(order *po.Order, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if order == nil {
		return nil, fmt.Errorf("events: order.paid requires an order")
	}
	paymentRef := ""
	if order.PaymentRef != nil {
		paymentRef = *order.PaymentRef
	}
	body := OrderPaidPayload{
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		PaymentRef: paymentRef,
		TotalMinor: order.TotalMinor,
		Currency:   order.Currency,
	}
	return newEnvelope(KindOrderPaid, order.OrderID, eventID, order.Version, occurredAt, body)
}
