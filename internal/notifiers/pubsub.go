package notifiers

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"
)

// PubSubNotifier publishes notifications to a Google Pub/Sub topic.
type PubSubNotifier struct {
	publisher gcpubsub.Publisher
	log       *log.Helper
}

// NewPubSubNotifier wraps a gcpubsub publisher as a Notifier.
func NewPubSubNotifier(publisher gcpubsub.Publisher, logger log.Logger) *PubSubNotifier {
	return &PubSubNotifier{
		publisher: publisher,
		log:       log.NewHelper(logger),
	}
}

// Notify publishes one message and waits for the broker ack.
func (n *PubSubNotifier) Notify(ctx context.Context, msg Message) error {
	if n.publisher == nil {
		return fmt.Errorf("pubsub notifier: publisher not configured")
	}
	if _, err := n.publisher.Publish(ctx, gcpubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	n.log.WithContext(ctx).Debugf("notification published: event_id=%s type=%s", msg.Attributes["event_id"], msg.Attributes["event_type"])
	return nil
}
