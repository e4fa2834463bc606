package process

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/ports"
)

// KillAllFunc kills every process with the given executable name.
type KillAllFunc func(ctx context.Context, name string) error

type settings struct {
	logger   *slog.Logger
	env      []string
	table    ports.ProcessTable
	tableSet bool
	killAll  KillAllFunc
	solverID string
}

// Option configures a Launcher or a Terminator.
type Option func(*settings)

// WithLogger sets the logger used for process diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithEnv appends KEY=VALUE entries to the solver environment.
func WithEnv(kv ...string) Option {
	return func(s *settings) { s.env = append(s.env, kv...) }
}

// WithProcessTable sets the process enumeration used for targeted termination.
// A nil table leaves only the name-based fallback.
func WithProcessTable(t ports.ProcessTable) Option {
	return func(s *settings) {
		s.table = t
		s.tableSet = true
	}
}

// WithKillAll replaces the name-based fallback (default: the killall utility).
func WithKillAll(fn KillAllFunc) Option {
	return func(s *settings) { s.killAll = fn }
}

// WithSolverID sets the substring identifying solver executables (default "vasp").
func WithSolverID(id string) Option {
	return func(s *settings) { s.solverID = id }
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:   logging.NewNop(),
		killAll:  systemKillAll,
		solverID: "vasp",
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func systemKillAll(ctx context.Context, name string) error {
	return exec.CommandContext(ctx, "killall", name).Run()
}
