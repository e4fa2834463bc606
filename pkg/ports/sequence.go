package ports

import "context"

// Sequence lazily yields the jobs of a chain. Each call may inspect the results
// of the job returned before it, so callers must finish a job before asking
// for the next one. ok is false once the chain is exhausted.
type Sequence interface {
	Next(ctx context.Context) (job Job, ok bool, err error)
}
