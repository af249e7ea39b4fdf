package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
)

// JobMetrics tracks job lifecycle counters for the /metrics endpoint.
type JobMetrics struct {
	registry *prometheus.Registry

	submitted prometheus.Counter
	active    prometheus.Gauge
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewJobMetrics builds the collectors on a fresh registry.
func NewJobMetrics() *JobMetrics {
	reg := prometheus.NewRegistry()
	m := &JobMetrics{
		registry: reg,
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfd2mcp_jobs_submitted_total",
			Help: "Jobs accepted for execution.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rfd2mcp_jobs_active",
			Help: "Jobs currently pending or running.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfd2mcp_jobs_finished_total",
			Help: "Jobs that reached a terminal status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rfd2mcp_job_duration_seconds",
			Help:    "Wall-clock duration of finished jobs.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"status"}),
	}
	reg.MustRegister(m.submitted, m.active, m.completed, m.duration)
	return m
}

// OnTransition records a job status change. Wire it as the job manager's
// transition hook.
func (m *JobMetrics) OnTransition(s jobs.Snapshot) {
	switch s.Status {
	case jobs.StatusPending:
		m.submitted.Inc()
		m.active.Inc()
	case jobs.StatusRunning:
		// active already counted at submission
	case jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCancelled:
		m.active.Dec()
		m.completed.WithLabelValues(string(s.Status)).Inc()
		if s.StartedAt != nil && s.FinishedAt != nil {
			m.duration.WithLabelValues(string(s.Status)).
				Observe(s.FinishedAt.Sub(*s.StartedAt).Seconds())
		}
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *JobMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
