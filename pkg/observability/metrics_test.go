package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func jobEvent(t domain.EventType, name string) *domain.JobEvent {
	return &domain.JobEvent{EventBase: domain.EventBase{Type: t, Dir: "/scratch/si"}, Step: 1, JobName: name}
}

func TestMetricsHooks(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	h := m.Hooks()

	h.OnJobSetup(ctx, jobEvent(domain.EventJobSetup, "relax1"))
	h.OnJobSetup(ctx, jobEvent(domain.EventJobSetup, "relax1"))
	h.OnJobStart(ctx, jobEvent(domain.EventJobStart, "relax1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running))

	fin := jobEvent(domain.EventJobFinish, "relax1")
	fin.Duration = 90 * time.Second
	h.OnJobFinish(ctx, fin)

	h.OnJobStart(ctx, jobEvent(domain.EventJobStart, "relax2"))
	h.OnJobTerminate(ctx, jobEvent(domain.EventJobTerminate, "relax2"))
	failed := jobEvent(domain.EventJobFinish, "relax2")
	failed.Err = domain.ErrWallTimeExceeded
	h.OnJobFinish(ctx, failed)
	h.OnSequenceFinish(ctx, &domain.SequenceEvent{Steps: 2, Err: failed.Err})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SetupAttempts.WithLabelValues("relax1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("relax1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("relax2", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTerminated.WithLabelValues("relax2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sequences.WithLabelValues("failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Running))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP strata_jobs_started_total Solver jobs launched.
# TYPE strata_jobs_started_total counter
strata_jobs_started_total{job="relax1"} 1
strata_jobs_started_total{job="relax2"} 1
`), "strata_jobs_started_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, testutil.CollectAndCount(m.JobDuration))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)
	assert.Panics(t, func() { observability.NewMetrics(reg) })
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	h := observability.LogHooks(logging.NewWithFormat(&buf, slog.LevelInfo, logging.FormatText))
	ctx := context.Background()

	h.OnJobSetup(ctx, jobEvent(domain.EventJobSetup, "relax1"))
	assert.Empty(t, buf.String(), "setup is logged at debug level")

	fin := jobEvent(domain.EventJobFinish, "relax1")
	fin.Err = errors.New("exit status 1")
	h.OnJobFinish(ctx, fin)
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "job=relax1")
	assert.Contains(t, out, `err="exit status 1"`)
}
