package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects prediction counters, registered on its own prometheus registry
type Metrics struct {
	Registry *prometheus.Registry

	submitted prometheus.Counter
	running   prometheus.Gauge
	finished  *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics makes metrics with a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "boltzweb",
			Name:      "jobs_submitted_total",
			Help:      "Number of accepted prediction jobs.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "boltzweb",
			Name:      "jobs_running",
			Help:      "Number of prediction processes currently running.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boltzweb",
			Name:      "jobs_finished_total",
			Help:      "Number of finished prediction jobs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "boltzweb",
			Name:      "job_duration_seconds",
			Help:      "Wall time of prediction jobs from start to terminal message.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}),
	}
	m.Registry.MustRegister(m.submitted, m.running, m.finished, m.duration)
	return m
}

// JobSubmitted counts accepted submission
func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

// JobStarted marks job as running
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

// JobFinished records job outcome and duration in seconds
func (m *Metrics) JobFinished(o Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.finished.WithLabelValues(string(o)).Inc()
	m.duration.Observe(seconds)
}

// JobSkipped records outcome of a job which never started
func (m *Metrics) JobSkipped(o Outcome) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(string(o)).Inc()
}
