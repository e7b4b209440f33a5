// Package metrics groups the Prometheus instruments exported by the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument on a private registry so that tests and
// multiple bots in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Updates          *prometheus.CounterVec
	UpdateDuration   *prometheus.HistogramVec
	RateLimited      prometheus.Counter
	Transitions      *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	Exchanges        *prometheus.CounterVec
	ExchangeDuration prometheus.Histogram
	ExchangesActive  prometheus.Gauge
	ArchiveErrors    prometheus.Counter
	Sends            *prometheus.CounterVec
}

// New registers all instruments under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound events by kind.",
		}, []string{"kind"}),
		UpdateDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_handling_seconds",
			Help:      "Time spent handling one Telegram update, by kind.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"kind"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Events dropped by the per-user cooldown.",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Conversation stage transitions.",
		}, []string{"from", "to"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Inputs rejected with corrective guidance, by reason.",
		}, []string{"reason"}),
		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responder_exchanges_total",
			Help:      "Responder exchanges by outcome (ok or error kind).",
		}, []string{"outcome"}),
		ExchangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "responder_exchange_seconds",
			Help:      "Wall time of responder exchanges.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		ExchangesActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "responder_exchanges_in_flight",
			Help:      "Responder exchanges currently running.",
		}),
		ArchiveErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Failed transcript archive writes.",
		}),
		Sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_sends_total",
			Help:      "Queued Bot API calls by action and result.",
		}, []string{"action", "result"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below are nil-safe so callers can run without metrics.

// IncUpdate counts an inbound event.
func (m *Metrics) IncUpdate(kind string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(kind).Inc()
}

// ObserveUpdate records how long a Telegram update took to handle.
func (m *Metrics) ObserveUpdate(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.UpdateDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// IncRateLimited counts an event dropped by the cooldown.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// IncTransition counts a stage change.
func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// IncRejection counts a rejected input.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

// ExchangeStarted marks a responder call in flight and returns the func that records its end.
func (m *Metrics) ExchangeStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.ExchangesActive.Inc()
	return func(outcome string) {
		m.ExchangesActive.Dec()
		m.Exchanges.WithLabelValues(outcome).Inc()
		m.ExchangeDuration.Observe(time.Since(start).Seconds())
	}
}

// IncArchiveError counts a failed archive write.
func (m *Metrics) IncArchiveError() {
	if m == nil {
		return
	}
	m.ArchiveErrors.Inc()
}

// IncSend counts a finished outbound Bot API call.
func (m *Metrics) IncSend(action, result string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(action, result).Inc()
}
