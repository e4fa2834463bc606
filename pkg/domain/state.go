package domain

import (
	"fmt"
	"path/filepath"
	"sync"
)

// JobState is the lifecycle position of a job in one working directory.
type JobState string

const (
	StateCreated         JobState = "created"
	StateSetupDone       JobState = "setup_done"
	StateRunning         JobState = "running"
	StatePostprocessDone JobState = "postprocess_done"
	StateTerminated      JobState = "terminated"
)

// Lifecycle tracks JobState per working directory.
// It is safe for concurrent use: Terminate may race Run from a watchdog.
type Lifecycle struct {
	mu     sync.Mutex
	states map[string]JobState
}

func lifecycleKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// State returns the current state for dir (StateCreated if never touched).
func (l *Lifecycle) State(dir string) JobState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked(lifecycleKey(dir))
}

func (l *Lifecycle) stateLocked(key string) JobState {
	if s, ok := l.states[key]; ok {
		return s
	}
	return StateCreated
}

func (l *Lifecycle) set(key string, s JobState) {
	if l.states == nil {
		l.states = make(map[string]JobState)
	}
	l.states[key] = s
}

// BeginSetup validates that setup may (re)run. Setup is retryable until Run.
func (l *Lifecycle) BeginSetup(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch cur := l.stateLocked(lifecycleKey(dir)); cur {
	case StateCreated, StateSetupDone:
		return nil
	default:
		return fmt.Errorf("%w: setup from %s", ErrInvalidTransition, cur)
	}
}

// SetupDone records a completed setup.
func (l *Lifecycle) SetupDone(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(lifecycleKey(dir), StateSetupDone)
}

// BeginRun moves to Running. It fails if setup has not completed or the job
// was already launched in dir.
func (l *Lifecycle) BeginRun(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lifecycleKey(dir)
	switch cur := l.stateLocked(key); cur {
	case StateSetupDone:
		l.set(key, StateRunning)
		return nil
	case StateCreated:
		return fmt.Errorf("%w: run before setup", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w (state %s)", ErrAlreadyRunning, cur)
	}
}

// AbortRun reverts a failed launch so the caller may inspect and retry setup.
func (l *Lifecycle) AbortRun(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lifecycleKey(dir)
	if l.stateLocked(key) == StateRunning {
		l.set(key, StateSetupDone)
	}
}

// BeginPostprocess validates that the run has been launched (and possibly terminated).
func (l *Lifecycle) BeginPostprocess(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch cur := l.stateLocked(lifecycleKey(dir)); cur {
	case StateRunning, StateTerminated:
		return nil
	default:
		return fmt.Errorf("%w: postprocess from %s", ErrInvalidTransition, cur)
	}
}

// PostprocessDone records a completed postprocess.
func (l *Lifecycle) PostprocessDone(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(lifecycleKey(dir), StatePostprocessDone)
}

// MarkTerminated moves Running to Terminated and reports whether a run was in flight.
// From any other state it is a no-op.
func (l *Lifecycle) MarkTerminated(dir string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lifecycleKey(dir)
	if l.stateLocked(key) != StateRunning {
		return false
	}
	l.set(key, StateTerminated)
	return true
}
