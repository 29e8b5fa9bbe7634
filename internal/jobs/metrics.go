// Package jobmetrics instruments asynq task handlers.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded in the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics holds the task handler collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = register(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return register(registerer)
}

// Tracker measures one task run.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts measuring a run of task.
func (m *Metrics) Track(task string) *Tracker {
	t := &Tracker{metrics: m, task: task, start: time.Now()}
	if m != nil && task != "" {
		m.inFlight.WithLabelValues(task).Inc()
	}
	return t
}

// End records the outcome and returns err unchanged. Errors wrapping
// asynq.SkipRetry count as skipped, not failed, since asynq will not retry them.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	m := t.metrics
	m.inFlight.WithLabelValues(t.task).Dec()

	status := StatusSuccess
	switch {
	case errors.Is(err, asynq.SkipRetry):
		status = StatusSkipped
	case err != nil:
		status = StatusFailure
		m.failures.WithLabelValues(t.task).Inc()
	default:
		m.lastSuccess.WithLabelValues(t.task).SetToCurrentTime()
	}
	m.runs.WithLabelValues(t.task, status).Inc()
	m.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_insights_jobs_total",
			Help: "Task runs by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_insights_jobs_failures_total",
			Help: "Task runs that failed and will be retried.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoice_insights_job_duration_seconds",
			Help:    "Task run duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invoice_insights_jobs_in_flight",
			Help: "Task runs currently executing.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invoice_insights_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task.",
		}, []string{"job"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.inFlight, m.lastSuccess)
	return m
}
