package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const billingSubsystem = "billing"

// BillingRecorder records webhook processing counters and latencies.
type BillingRecorder struct {
	events  *prometheus.CounterVec
	process *prometheus.HistogramVec
}

func NewBillingRecorder(reg prometheus.Registerer) *BillingRecorder {
	return &BillingRecorder{
		events:  register(reg, MetricsWebhookEvents).(*prometheus.CounterVec),
		process: register(reg, MetricsBusinessProcess).(*prometheus.HistogramVec),
	}
}

// register returns the already registered collector when the metric exists.
func register(reg prometheus.Registerer, m *Metric) prometheus.Collector {
	c := NewMetric(m, billingSubsystem)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			c = are.ExistingCollector
		}
	}
	return c
}

// ObserveWebhook counts one processed event and its handling latency.
func (r *BillingRecorder) ObserveWebhook(eventType, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	r.events.WithLabelValues(eventType, outcome).Inc()
	r.process.WithLabelValues("webhook", eventType).Observe(float64(elapsed) / float64(time.Millisecond))
}

var Module = fx.Options(
	fx.Provide(func() *BillingRecorder { return NewBillingRecorder(prometheus.DefaultRegisterer) }),
)
