// Package metrics exposes Prometheus instruments for the shelter service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	commits     *prometheus.CounterVec
	subscribers prometheus.Gauge
	overruns    prometheus.Counter
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	relayed     *prometheus.CounterVec
}

// New registers every instrument plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelters",
			Name:      "update_results_total",
			Help:      "Availability update outcomes by result.",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shelters",
			Name:      "subscribers",
			Help:      "Live change subscriptions.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shelters",
			Name:      "subscriber_overruns_total",
			Help:      "Subscriptions dropped for falling behind.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelters",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelters",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelters",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Change events handed to the broker by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		m.commits, m.subscribers, m.overruns, m.requests, m.latency, m.relayed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CommitResult counts one update outcome.
func (m *Metrics) CommitResult(result string) { m.commits.WithLabelValues(result).Inc() }

// Subscribers sets the live subscription count.
func (m *Metrics) Subscribers(n int) { m.subscribers.Set(float64(n)) }

// Overrun counts one dropped subscription.
func (m *Metrics) Overrun() { m.overruns.Inc() }

// Relayed counts one broker publish attempt; outcome is "ok" or "error".
func (m *Metrics) Relayed(outcome string) { m.relayed.WithLabelValues(outcome).Inc() }

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records request counts and latency.  Routes are labelled by
// their pattern, never the raw path, to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
