package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook processing results
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultFailed    = "failed"
)

// WebhookMetrics records webhook and reconciliation activity
type WebhookMetrics interface {
	ObserveEvent(eventType, result string, elapsed time.Duration)
	AddDeactivated(n int)
	AddReactivated(n int)
	IncSweep(result string)
}

type webhookMetrics struct {
	events      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	deactivated prometheus.Counter
	reactivated prometheus.Counter
	sweeps      *prometheus.CounterVec
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewWebhookMetrics registers the webhook metrics on registry
func NewWebhookMetrics(registry prometheus.Registerer) WebhookMetrics {
	factory := promauto.With(registry)
	return &webhookMetrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatsync_webhook_events_total",
				Help: "Stripe webhook events by type and result",
			},
			[]string{"type", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatsync_webhook_processing_seconds",
				Help:    "Time spent processing a verified webhook event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		deactivated: factory.NewCounter(prometheus.CounterOpts{
			Name: "seatsync_members_deactivated_total",
			Help: "Members deactivated by downgrades and cancellations",
		}),
		reactivated: factory.NewCounter(prometheus.CounterOpts{
			Name: "seatsync_members_reactivated_total",
			Help: "Members reactivated when a subscription resumed",
		}),
		sweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatsync_reconcile_runs_total",
				Help: "Slot reconciliation sweeps by result",
			},
			[]string{"result"},
		),
	}
}

func (m *webhookMetrics) ObserveEvent(eventType, result string, elapsed time.Duration) {
	m.events.WithLabelValues(eventType, result).Inc()
	m.duration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *webhookMetrics) AddDeactivated(n int) {
	if n > 0 {
		m.deactivated.Add(float64(n))
	}
}

func (m *webhookMetrics) AddReactivated(n int) {
	if n > 0 {
		m.reactivated.Add(float64(n))
	}
}

func (m *webhookMetrics) IncSweep(result string) {
	m.sweeps.WithLabelValues(result).Inc()
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveEvent(string, string, time.Duration) {}
func (Nop) AddDeactivated(int)                         {}
func (Nop) AddReactivated(int)                         {}
func (Nop) IncSweep(string)                            {}
