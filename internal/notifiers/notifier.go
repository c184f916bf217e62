// Package notifiers defines the notification port the outbox dispatcher
// publishes through, plus its adapters. Swapping the broker touches only the
// composition root.
package notifiers

import "context"

// Message is a broker-agnostic notification: the encoded event envelope and
// its routing attributes.
type Message struct {
	Data       []byte
	Attributes map[string]string
}

// Notifier is the notification port. Implementations must be safe for
// concurrent use; delivery is at-least-once.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
