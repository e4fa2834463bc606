package jobs

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/adapters/file"
	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/ports"
)

// Launcher starts a solver process in a working directory.
type Launcher interface {
	Start(ctx context.Context, argv []string, dir, stdoutName, stderrName string) (*process.Handle, error)
}

// Terminator stops the solver working in a directory. It never fails.
type Terminator interface {
	Terminate(ctx context.Context, dir string, commands ...[]string)
}

// LookPathFunc resolves an executable name, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

type env struct {
	logger     *slog.Logger
	launcher   Launcher
	terminator Terminator
	markers    ports.MarkerStore
	lookPath   LookPathFunc
	cores      func() int
}

// Option configures the collaborators of a job.
type Option func(*env)

// WithLogger sets the job logger. Jobs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(e *env) { e.logger = l }
}

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option {
	return func(e *env) { e.launcher = l }
}

// WithTerminator replaces the process terminator.
func WithTerminator(t Terminator) Option {
	return func(e *env) { e.terminator = t }
}

// WithMarkerStore sets where continuation markers live (default: continue.json files).
func WithMarkerStore(s ports.MarkerStore) Option {
	return func(e *env) { e.markers = s }
}

// WithLookPath replaces executable resolution for gamma-point command selection.
func WithLookPath(fn LookPathFunc) Option {
	return func(e *env) { e.lookPath = fn }
}

// WithCoreCount overrides the core count used by parallelization tuning.
func WithCoreCount(fn func() int) Option {
	return func(e *env) { e.cores = fn }
}

func newEnv(opts []Option) env {
	e := env{
		logger:   logging.NewNop(),
		markers:  file.New(),
		lookPath: exec.LookPath,
		cores:    CoreCount,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.launcher == nil {
		e.launcher = process.NewLauncher(process.WithLogger(e.logger))
	}
	if e.terminator == nil {
		e.terminator = process.NewTerminator(process.WithLogger(e.logger))
	}
	return e
}
