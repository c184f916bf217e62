package notifiers

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// LogNotifier writes notifications to the structured log. It is the adapter
// bound when no broker is configured (local runs, tests).
type LogNotifier struct {
	log *log.Helper
}

// NewLogNotifier constructs the logging adapter.
func NewLogNotifier(logger log.Logger) *LogNotifier {
	return &LogNotifier{log: log.NewHelper(logger)}
}

// Notify records the notification and succeeds.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.log.WithContext(ctx).Infow(
		"msg", "notification dispatched",
		"event_id", msg.Attributes["event_id"],
		"event_type", msg.Attributes["event_type"],
		"aggregate_id", msg.Attributes["aggregate_id"],
		"payload_bytes", len(msg.Data),
	)
	return nil
}
