// Package metrics provides Prometheus metrics collection for the MWS client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mws"

// Collector holds all Prometheus metrics for the client and relay.
type Collector struct {
	// Call metrics
	CallsTotal    *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	CallsInFlight prometheus.Gauge
	CallRetries   *prometheus.CounterVec
	PayloadBytes  *prometheus.CounterVec
	ThrottleWait  *prometheus.HistogramVec

	// Relay metrics
	RelayRequests *prometheus.CounterVec

	// Catalog metrics
	CatalogReloads      prometheus.Counter
	CatalogReloadErrors prometheus.Counter
	CatalogLastReload   prometheus.Gauge
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of service calls by outcome",
			},
			[]string{"action", "outcome"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Service call duration in seconds, retries included",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"action"},
		),
		CallsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "calls_in_flight",
				Help:      "Number of service calls currently waiting on the wire",
			},
		),
		CallRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "call_retries_total",
				Help:      "Total number of repeated attempts",
			},
			[]string{"action"},
		),
		PayloadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payload_bytes_total",
				Help:      "Total bytes exchanged with the service",
			},
			[]string{"direction"},
		),
		ThrottleWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "throttle_wait_seconds",
				Help:      "Time calls were held back by a request quota",
				Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"action"},
		),
		RelayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_requests_total",
				Help:      "Total number of relay HTTP requests",
			},
			[]string{"route", "status"},
		),
		CatalogReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of successful catalog reloads",
			},
		),
		CatalogReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reload_errors_total",
				Help:      "Total number of catalog reload errors",
			},
		),
		CatalogLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_last_reload_timestamp",
				Help:      "Unix timestamp of last successful catalog reload",
			},
		),
	}
}

// ObserveCall records a finished call. Safe on a nil collector.
func (c *Collector) ObserveCall(action, outcome string, d time.Duration, attempts int, sent, received int64) {
	if c == nil {
		return
	}
	c.CallsTotal.WithLabelValues(action, outcome).Inc()
	c.CallDuration.WithLabelValues(action).Observe(d.Seconds())
	if attempts > 1 {
		c.CallRetries.WithLabelValues(action).Add(float64(attempts - 1))
	}
	c.PayloadBytes.WithLabelValues("out").Add(float64(sent))
	c.PayloadBytes.WithLabelValues("in").Add(float64(received))
}

// ObserveThrottleWait records time spent waiting on a quota. Safe on a nil
// collector.
func (c *Collector) ObserveThrottleWait(action string, d time.Duration) {
	if c == nil {
		return
	}
	c.ThrottleWait.WithLabelValues(action).Observe(d.Seconds())
}

// CallStarted increments the in-flight gauge and returns its release func.
func (c *Collector) CallStarted() func() {
	if c == nil {
		return func() {}
	}
	c.CallsInFlight.Inc()
	return c.CallsInFlight.Dec
}

// CatalogReloaded records a reload attempt.
func (c *Collector) CatalogReloaded(err error, at time.Time) {
	if c == nil {
		return
	}
	if err != nil {
		c.CatalogReloadErrors.Inc()
		return
	}
	c.CatalogReloads.Inc()
	c.CatalogLastReload.Set(float64(at.Unix()))
}

// StatusClass reduces an HTTP status to its class label (2xx, 4xx, ...).
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
