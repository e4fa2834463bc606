package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/strata/pkg/domain"
)

// LogHooks logs every lifecycle event on logger.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnJobSetup: func(ctx context.Context, e *domain.JobEvent) {
			logger.DebugContext(ctx, "job_setup", "dir", e.Dir, "step", e.Step, "job", e.JobName)
		},
		OnJobStart: func(ctx context.Context, e *domain.JobEvent) {
			logger.InfoContext(ctx, "job_start", "dir", e.Dir, "step", e.Step, "job", e.JobName, "pid", e.Pid)
		},
		OnJobFinish: func(ctx context.Context, e *domain.JobEvent) {
			args := []any{"dir", e.Dir, "step", e.Step, "job", e.JobName, "duration", e.Duration}
			if e.Err != nil {
				logger.ErrorContext(ctx, "job_finish", append(args, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "job_finish", args...)
		},
		OnJobTerminate: func(ctx context.Context, e *domain.JobEvent) {
			logger.WarnContext(ctx, "job_terminate", "dir", e.Dir, "step", e.Step, "job", e.JobName, "pid", e.Pid)
		},
		OnSequenceFinish: func(ctx context.Context, e *domain.SequenceEvent) {
			logger.InfoContext(ctx, "sequence_finish", "dir", e.Dir, "steps", e.Steps, "ok", e.Err == nil)
		},
	}
}
