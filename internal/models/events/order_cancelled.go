package events

import (
	"fmt"
	"time"

	"github.com/avelinor/orders-service/internal/models/po"
	"github.com/google/uuid"
)

// OrderCancelledPayload is the order.cancelled body.
type OrderCancelledPayload struct {
	OrderID        uuid.UUID `json:"order_id"`
	UserID         uuid.UUID `json:"user_id"`
	PreviousStatus string    `json:"previous_status"`
	Reason         *string   `json:"reason,omitempty"`
}

// NewOrderCancelledEvent builds the order.cancelled envelope. previousStatus
// is the status the order held before cancellation.
func NewOrderCancelledEvent(order *po.Order, previousStatus po.OrderStatus, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if order == nil {
		return nil, fmt.Errorf("events: order.cancelled requires an order")
	}
	body := OrderCancelledPayload{
		OrderID:        order.OrderID,
		UserID:         order.UserID,
		PreviousStatus: string(previousStatus),
		Reason:         order.CancelReason,
	}
	return newEnvelope(KindOrderCancelled, order.OrderID, eventID, order.Version, occurredAt, body)
}
