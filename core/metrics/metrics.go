package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cityfix"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry           *prometheus.Registry
	RequestCounter     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestsInFlight   prometheus.Gauge
	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	ThreadAppends      *prometheus.CounterVec
	DBConnPoolStats    *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "transitions_total",
				Help:      "Committed report status transitions",
			},
			[]string{"event", "from", "to"},
		),
		TransitionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "transition_failures_total",
				Help:      "Refused report operations by error kind",
			},
			[]string{"operation", "kind"},
		),
		ThreadAppends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "thread_appends_total",
				Help:      "Messages and internal notes appended",
			},
			[]string{"thread"},
		),
		DBConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"},
		),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Inc()
}

func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Dec()
}

func (m *Metrics) TransitionCommitted(event, from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(event, from, to).Inc()
}

func (m *Metrics) TransitionRefused(operation, kind string) {
	if m == nil {
		return
	}
	m.TransitionFailures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) ThreadAppended(thread string) {
	if m == nil {
		return
	}
	m.ThreadAppends.WithLabelValues(thread).Inc()
}

func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
}

// Handler serves the registry; statsFn, when set, refreshes pool gauges per scrape.
func (m *Metrics) Handler(statsFn func() sql.DBStats) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if statsFn != nil {
			m.ObserveDBStats(statsFn())
		}
		inner.ServeHTTP(w, r)
	})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
