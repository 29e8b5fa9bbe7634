package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics served on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sourceCalls     *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	statsBuilds     *prometheus.CounterVec
	statsInvoices   prometheus.Histogram
}

// NewMetrics initialises the registry with HTTP, data source and stats metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_insights_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoice_insights_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	sourceCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_insights_source_calls_total",
		Help: "Invoice data source calls by backend, operation and outcome.",
	}, []string{"backend", "op", "outcome"})
	sourceDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoice_insights_source_call_duration_seconds",
		Help:    "Invoice data source call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})
	statsBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_insights_stats_builds_total",
		Help: "Stats computations by outcome (ok, degraded, shared).",
	}, []string{"outcome"})
	statsInvoices := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_insights_stats_input_invoices",
		Help:    "Number of invoices fed into a stats computation.",
		Buckets: []float64{0, 10, 50, 100, 500, 1000, 2500, 5000},
	})
	registry.MustRegister(requests, duration, sourceCalls, sourceDuration, statsBuilds, statsInvoices)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		sourceCalls:     sourceCalls,
		sourceDuration:  sourceDuration,
		statsBuilds:     statsBuilds,
		statsInvoices:   statsInvoices,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSourceCall records one data source call.
func (m *Metrics) ObserveSourceCall(backend, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sourceCalls.WithLabelValues(backend, op, outcome).Inc()
	m.sourceDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// ObserveStatsBuild records a stats computation and its input size.
func (m *Metrics) ObserveStatsBuild(outcome string, invoices int) {
	if m == nil {
		return
	}
	m.statsBuilds.WithLabelValues(outcome).Inc()
	if outcome != "degraded" {
		m.statsInvoices.Observe(float64(invoices))
	}
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
