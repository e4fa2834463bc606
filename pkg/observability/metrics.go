package observability

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "strata"

// Metrics holds the collectors fed by runner hooks.
type Metrics struct {
	JobsStarted    *prometheus.CounterVec
	JobsFinished   *prometheus.CounterVec
	JobsTerminated *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	SetupAttempts  *prometheus.CounterVec
	Sequences      *prometheus.CounterVec
	Running        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// It panics if they are already registered, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Solver jobs launched.",
		}, []string{"job"}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Solver jobs finished, by outcome.",
		}, []string{"job", "outcome"}),
		JobsTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_terminated_total",
			Help:      "Solver jobs stopped by the runner.",
		}, []string{"job"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of solver jobs.",
			// A minute up to roughly two days.
			Buckets: prometheus.ExponentialBuckets(60, 2, 12),
		}, []string{"job"}),
		SetupAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_attempts_total",
			Help:      "Job setup attempts, retries included.",
		}, []string{"job"}),
		Sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_total",
			Help:      "Job sequences run to the end, by outcome.",
		}, []string{"outcome"}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Solver jobs currently running.",
		}),
	}
	reg.MustRegister(m.JobsStarted, m.JobsFinished, m.JobsTerminated, m.JobDuration,
		m.SetupAttempts, m.Sequences, m.Running)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Hooks returns lifecycle callbacks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnJobSetup: func(_ context.Context, e *domain.JobEvent) {
			m.SetupAttempts.WithLabelValues(e.JobName).Inc()
		},
		OnJobStart: func(_ context.Context, e *domain.JobEvent) {
			m.JobsStarted.WithLabelValues(e.JobName).Inc()
			m.Running.Inc()
		},
		OnJobFinish: func(_ context.Context, e *domain.JobEvent) {
			m.Running.Dec()
			m.JobsFinished.WithLabelValues(e.JobName, outcome(e.Err)).Inc()
			m.JobDuration.WithLabelValues(e.JobName).Observe(e.Duration.Seconds())
		},
		OnJobTerminate: func(_ context.Context, e *domain.JobEvent) {
			m.JobsTerminated.WithLabelValues(e.JobName).Inc()
		},
		OnSequenceFinish: func(_ context.Context, e *domain.SequenceEvent) {
			m.Sequences.WithLabelValues(outcome(e.Err)).Inc()
		},
	}
}
