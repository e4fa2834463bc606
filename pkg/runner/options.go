package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// DefaultSetupRetries is how often a failed setup or launch is retried.
const DefaultSetupRetries = 2

// DefaultKillGrace is how long a terminated solver has to exit before the
// runner kills it outright.
const DefaultKillGrace = 30 * time.Second

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLocker makes the runner hold a lease on the directory for the whole sequence.
func WithLocker(locker ports.DirectoryLocker) Option {
	return func(r *Runner) {
		r.locker = locker
	}
}

// WithHooks adds lifecycle callbacks. Several calls chain in order.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = r.hooks.Merge(hooks)
	}
}

// WithSetupRetries sets how many times a failed setup or launch is retried.
func WithSetupRetries(n int) Option {
	return func(r *Runner) {
		r.retries = max(n, 0)
	}
}

// WithRetryDelay sets the pause between setup attempts (default 10s).
func WithRetryDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.retryDelay = d
	}
}

// WithWallTime terminates a job still running after d. Zero disables the watchdog.
func WithWallTime(d time.Duration) Option {
	return func(r *Runner) {
		r.wallTime = d
	}
}

// WithKillGrace sets how long a terminated solver may take to exit.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) {
		r.killGrace = d
	}
}

// WithClock overrides time.Now for events and status.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}
