package outbox

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricNameDispatchSuccess = "outbox_publish_success_total"
	metricNameDispatchFailure = "outbox_publish_failure_total"
	metricNameDispatchLatency = "outbox_publish_latency_ms"
)

type dispatchMetrics struct {
	success metric.Int64Counter
	failure metric.Int64Counter
	latency metric.Float64Histogram
	helper  *log.Helper
	enabled bool
}

func newDispatchMetrics(meter metric.Meter, helper *log.Helper) *dispatchMetrics {
	m := &dispatchMetrics{helper: helper}
	if meter == nil {
		return m
	}

	var err error
	if m.success, err = meter.Int64Counter(metricNameDispatchSuccess,
		metric.WithDescription("Number of outbox events published successfully")); err != nil {
		helper.Warnf("outbox metrics: register success counter: %v", err)
		return m
	}
	if m.failure, err = meter.Int64Counter(metricNameDispatchFailure,
		metric.WithDescription("Number of outbox publish attempts that failed")); err != nil {
		helper.Warnf("outbox metrics: register failure counter: %v", err)
	}
	if m.latency, err = meter.Float64Histogram(metricNameDispatchLatency,
		metric.WithDescription("Publish latency per outbox event"), metric.WithUnit("ms")); err != nil {
		helper.Warnf("outbox metrics: register latency histogram: %v", err)
	}
	m.enabled = true
	return m
}

func (m *dispatchMetrics) recordSuccess(ctx context.Context, eventType string, elapsed time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	if m.success != nil {
		m.success.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		ms := float64(elapsed.Milliseconds())
		if ms < 0 {
			ms = 0
		}
		m.latency.Record(ctx, ms, attrs)
	}
}

func (m *dispatchMetrics) recordFailure(ctx context.Context, eventType string, err error) {
	if m == nil || !m.enabled {
		return
	}
	if m.failure != nil {
		m.failure.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	}
	if m.helper != nil {
		m.helper.WithContext(ctx).Warnw("msg", "outbox publish failed", "event_type", eventType, "error", err)
	}
}
