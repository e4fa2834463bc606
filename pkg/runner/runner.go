package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Runner drives sequences. One Runner executes one sequence at a time;
// Status may be read concurrently from other goroutines.
type Runner struct {
	logger     *slog.Logger
	locker     ports.DirectoryLocker
	hooks      domain.LifecycleHooks
	retries    int
	retryDelay time.Duration
	wallTime   time.Duration
	killGrace  time.Duration
	now        func() time.Time

	status statusBoard
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:     logging.NewNop(),
		retries:    DefaultSetupRetries,
		retryDelay: 10 * time.Second,
		killGrace:  DefaultKillGrace,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job of seq in dir until the sequence is exhausted, a job
// fails, or ctx is done. A cancelled context terminates the running solver;
// the job is still postprocessed and Run returns the context error.
func (r *Runner) Run(ctx context.Context, dir string, seq ports.Sequence) (err error) {
	log := r.logger.With("dir", dir)

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, dir)
		if err != nil {
			return err
		}
		defer release()
	}

	r.status.begin(dir, seq, r.now())
	step := 0
	defer func() {
		r.status.finish(err)
		if r.hooks.OnSequenceFinish != nil {
			r.hooks.OnSequenceFinish(ctx, &domain.SequenceEvent{
				EventBase: r.base(domain.EventSequenceFinish, dir),
				Steps:     step,
				Err:       err,
			})
		}
		if err != nil {
			log.Error("sequence failed", "steps", step, "err", err)
		} else {
			log.Info("sequence finished", "steps", step)
		}
	}()

	for {
		job, ok, err := seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate job %d: %w", step+1, err)
		}
		if !ok {
			return nil
		}
		step++
		if err := r.runJob(ctx, dir, step, job, log.With("step", step, "job", job.Name())); err != nil {
			return err
		}
	}
}

func (r *Runner) runJob(ctx context.Context, dir string, step int, job ports.Job, log *slog.Logger) error {
	event := func(t domain.EventType) *domain.JobEvent {
		return &domain.JobEvent{EventBase: r.base(t, dir), Step: step, JobName: job.Name()}
	}
	r.status.jobStarted(step, job.Name(), r.now())

	h, err := r.launch(ctx, dir, job, log, event)
	if err != nil {
		return err
	}
	started := r.now()
	r.status.running(h.Pid())
	if r.hooks.OnJobStart != nil {
		e := event(domain.EventJobStart)
		e.Pid = h.Pid()
		r.hooks.OnJobStart(ctx, e)
	}

	waitErr := r.wait(ctx, dir, job, h, log, event)

	// Postprocessing must happen even when the caller gave up on the run.
	r.status.phase(PhasePostprocess)
	postErr := job.Postprocess(context.WithoutCancel(ctx), dir)

	runErr := errors.Join(waitErr, postErr)
	duration := r.now().Sub(started)
	r.status.jobFinished(duration, runErr)
	if r.hooks.OnJobFinish != nil {
		e := event(domain.EventJobFinish)
		e.Pid = h.Pid()
		e.Duration = duration
		e.Err = runErr
		r.hooks.OnJobFinish(ctx, e)
	}

	switch {
	case waitErr != nil:
		return fmt.Errorf("job %d (%s): %w", step, job.Name(), waitErr)
	case postErr != nil:
		return fmt.Errorf("job %d (%s) postprocess: %w", step, job.Name(), postErr)
	}
	log.Info("job finished", "duration", duration.Round(time.Second))
	return nil
}

// launch runs Setup then Run, retrying both until the retry budget is spent.
func (r *Runner) launch(ctx context.Context, dir string, job ports.Job, log *slog.Logger, event func(domain.EventType) *domain.JobEvent) (ports.Handle, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			log.Warn("retrying setup", "attempt", attempt+1, "err", lastErr)
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		r.status.phase(PhaseSetup)
		if r.hooks.OnJobSetup != nil {
			r.hooks.OnJobSetup(ctx, event(domain.EventJobSetup))
		}
		if lastErr = job.Setup(ctx, dir); lastErr != nil {
			lastErr = fmt.Errorf("setup: %w", lastErr)
			continue
		}
		h, err := job.Run(ctx, dir)
		if err == nil {
			return h, nil
		}
		lastErr = fmt.Errorf("run: %w", err)
	}
	return nil, fmt.Errorf("job %s failed to start after %d attempts: %w", job.Name(), r.retries+1, lastErr)
}

// wait blocks until the solver exits. The wall-time watchdog and ctx both
// terminate the job; a solver still alive after the kill grace is killed
// through its handle, and abandoned after a second grace.
func (r *Runner) wait(ctx context.Context, dir string, job ports.Job, h ports.Handle, log *slog.Logger, event func(domain.EventType) *domain.JobEvent) error {
	done := make(chan error, 1)
	go func() { done <- h.Wait() }()

	var deadline <-chan time.Time
	if r.wallTime > 0 {
		timer := time.NewTimer(r.wallTime)
		defer timer.Stop()
		deadline = timer.C
	}

	var reason error
	select {
	case err := <-done:
		return err
	case <-deadline:
		reason = fmt.Errorf("%w after %s", domain.ErrWallTimeExceeded, r.wallTime)
	case <-ctx.Done():
		reason = ctx.Err()
	}

	log.Warn("terminating job", "reason", reason, "pid", h.Pid())
	job.Terminate(context.WithoutCancel(ctx), dir)
	if r.hooks.OnJobTerminate != nil {
		e := event(domain.EventJobTerminate)
		e.Pid = h.Pid()
		r.hooks.OnJobTerminate(ctx, e)
	}
	if r.collect(done, log) {
		return reason
	}

	k, ok := h.(ports.Killer)
	if !ok {
		return fmt.Errorf("%w; %w", reason, errSolverAbandoned)
	}
	log.Error("solver survived termination, killing it", "pid", h.Pid())
	if err := k.Kill(); err != nil {
		log.Error("kill failed", "pid", h.Pid(), "err", err)
	}
	if r.collect(done, log) {
		return reason
	}
	return fmt.Errorf("%w; %w", reason, errSolverAbandoned)
}

var errSolverAbandoned = errors.New("solver did not exit after termination")

// collect waits up to the kill grace for the solver to exit.
func (r *Runner) collect(done <-chan error, log *slog.Logger) bool {
	timer := time.NewTimer(r.killGrace)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			log.Debug("terminated solver exited", "err", err)
		}
		return true
	case <-timer.C:
		return false
	}
}

func (r *Runner) base(t domain.EventType, dir string) domain.EventBase {
	return domain.EventBase{Timestamp: r.now(), Type: t, Dir: dir}
}
