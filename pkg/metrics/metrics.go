// Package metrics exposes Prometheus collectors for action dispatch and heartbeat sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcp"

// Metrics holds the service collectors on a dedicated registry.
// All methods are safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry       *prometheus.Registry
	invocations    *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeSessions prometheus.Gauge
	heartbeats     prometheus.Counter
	rateLimited    prometheus.Counter
}

// New creates the collectors for the named service.
func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "invocations_total",
			Help:        "Dispatched actions by action name and envelope status.",
			ConstLabels: labels,
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "invocation_duration_seconds",
			Help:        "Wall time spent inside the dispatcher per action.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"action"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sse_sessions_active",
			Help:        "Heartbeat sessions currently streaming.",
			ConstLabels: labels,
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sse_heartbeats_total",
			Help:        "Heartbeat events written to peers.",
			ConstLabels: labels,
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rate_limited_total",
			Help:        "Action requests rejected by the rate limiter.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(
		m.invocations,
		m.duration,
		m.activeSessions,
		m.heartbeats,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveInvocation records one dispatch outcome.
func (m *Metrics) ObserveInvocation(action, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(action, status).Inc()
	m.duration.WithLabelValues(action).Observe(d.Seconds())
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// HeartbeatSent counts one heartbeat event.
func (m *Metrics) HeartbeatSent() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

// RateLimited counts one rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
