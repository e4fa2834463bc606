package ports

import "context"

// Handle is a launched solver process.
type Handle interface {
	// Pid returns the process ID, or 0 for work that ran in-process.
	Pid() int
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
}

// Job is one unit of work executed against a working directory.
// The caller drives Setup, Run, waits on the Handle, then calls Postprocess.
type Job interface {
	// Name identifies the job in logs and events (e.g., "relax1").
	Name() string

	// Setup prepares dir. It may be retried until Run succeeds.
	Setup(ctx context.Context, dir string) error

	// Run launches the solver and returns without waiting for it.
	Run(ctx context.Context, dir string) (Handle, error)

	// Postprocess finalizes outputs after the solver exits or is terminated.
	Postprocess(ctx context.Context, dir string) error

	// Terminate stops the solver working in dir. It never fails; problems are logged.
	Terminate(ctx context.Context, dir string)
}

// Killer is implemented by handles that can be killed outright when
// Terminate did not stop them.
type Killer interface {
	Kill() error
}
