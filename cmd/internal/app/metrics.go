package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsConnections   prometheus.Gauge
}

// NewMetrics builds a registry with process/go collectors plus the
// lyceum HTTP and websocket collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lyceum",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, path, and status class.",
		}, []string{"method", "path", "class"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lyceum",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lyceum",
			Subsystem: "ws",
			Name:      "session_connections",
			Help:      "Currently open session notifier websocket connections.",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.wsConnections)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WSConnectionOpened and WSConnectionClosed track the notifier gauge.
func (m *Metrics) WSConnectionOpened() { m.wsConnections.Inc() }
func (m *Metrics) WSConnectionClosed() { m.wsConnections.Dec() }

// WithMetrics instruments an http.Handler. The path label uses the raw
// request path only for the fixed route surface; everything else is
// bucketed as "other" to keep cardinality bounded.
func WithMetrics(next http.Handler, m *Metrics) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)

		path := metricPath(r.URL.Path)
		m.requestsTotal.WithLabelValues(r.Method, path, statusClass(lrw.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var knownMetricPaths = map[string]struct{}{
	"/":                    {},
	"/login":               {},
	"/signup":              {},
	"/dashboard":           {},
	"/dashboard/chat":      {},
	"/dashboard/questions": {},
	"/dashboard/analytics": {},
	"/api/auth/signup":     {},
	"/api/auth/login":      {},
	"/api/auth/refresh":    {},
	"/api/auth/logout":     {},
	"/api/auth/logout_all": {},
	"/api/auth/me":         {},
	"/ws/session":          {},
	"/healthz":             {},
	"/readyz":              {},
	"/metrics":             {},
}

func metricPath(p string) string {
	if _, ok := knownMetricPaths[p]; ok {
		return p
	}
	return "other"
}
