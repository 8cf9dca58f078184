// Package metrics holds the Prometheus instruments exported by a node.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for request metrics.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeMalformed = "malformed"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus metrics of a node. Each instance owns its own
// registry so several nodes can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	updateTotal     prometheus.Counter
	counterReads    *prometheus.CounterVec
	storeKeys       prometheus.Gauge
}

// New creates a new metrics instance.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heliokv_requests_total",
				Help: "Total number of key-value requests by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heliokv_request_duration_seconds",
				Help:    "Duration of key-value requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		updateTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "heliokv_updates_total",
				Help: "Total number of completed bump-and-restore cycles",
			},
		),
		counterReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heliokv_counter_reads_total",
				Help: "Counter reads split by whether the observed value was zero",
			},
			[]string{"observed"},
		),
		storeKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "heliokv_store_keys",
				Help: "Number of keys in the store",
			},
		),
	}
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(op, outcome string, d time.Duration) {
	m.requestTotal.WithLabelValues(op, outcome).Inc()
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveUpdate records one completed bump-and-restore cycle.
func (m *Metrics) ObserveUpdate(d time.Duration) {
	m.updateTotal.Inc()
	m.requestDuration.WithLabelValues("update").Observe(d.Seconds())
}

// ObserveCounterRead records the value seen by a counter read. A nonzero
// value means a torn bump-and-restore was observed.
func (m *Metrics) ObserveCounterRead(v int64) {
	if v == 0 {
		m.counterReads.WithLabelValues("zero").Inc()
		return
	}
	m.counterReads.WithLabelValues("nonzero").Inc()
}

// SetKeys updates the key gauge.
func (m *Metrics) SetKeys(n int) {
	m.storeKeys.Set(float64(n))
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
