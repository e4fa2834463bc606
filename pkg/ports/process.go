package ports

import "context"

// Process is a snapshot of a live OS process.
type Process interface {
	Pid() int
	// Name returns the executable name.
	Name() (string, error)
	// OpenFiles returns the absolute paths the process holds open.
	OpenFiles() ([]string, error)
	Kill() error
}

// ProcessTable enumerates live processes.
type ProcessTable interface {
	Processes(ctx context.Context) ([]Process, error)
}
