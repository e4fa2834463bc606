package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Launcher starts solver processes detached from the caller's session,
// with stdout and stderr redirected to files in the working directory.
type Launcher struct {
	env    []string
	logger *slog.Logger
}

// NewLauncher creates a new Launcher.
func NewLauncher(opts ...Option) *Launcher {
	s := newSettings(opts)
	return &Launcher{env: s.env, logger: s.logger}
}

// Start launches argv in dir. stdoutName and stderrName are created (truncated)
// inside dir. The process is not bound to ctx: it keeps running until it exits
// or is terminated, so callers stop it through a Terminator.
func (l *Launcher) Start(ctx context.Context, argv []string, dir, stdoutName, stderrName string) (*Handle, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty solver command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stdout, err := os.Create(filepath.Join(dir, stdoutName))
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout file: %w", err)
	}
	stderr, err := os.Create(filepath.Join(dir, stderrName))
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("failed to open stderr file: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(cmd.Environ(), l.env...)
	detach(cmd)

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	l.logger.Info("solver started", "cmd", strings.Join(argv, " "), "dir", dir, "pid", cmd.Process.Pid)

	return &Handle{cmd: cmd, closers: []*os.File{stdout, stderr}}, nil
}

// Handle is a running solver process. Wait may be called from several goroutines.
type Handle struct {
	cmd     *exec.Cmd
	closers []*os.File

	once sync.Once
	err  error
}

// Pid returns the OS process ID.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Kill sends SIGKILL to the solver and every process in its session. It is
// the last resort when a Terminator could not stop the run.
func (h *Handle) Kill() error {
	return killGroup(h.cmd)
}

// Wait blocks until the process exits. A non-zero exit wraps domain.ErrSolverFailed.
func (h *Handle) Wait() error {
	h.once.Do(func() {
		err := h.cmd.Wait()
		for _, f := range h.closers {
			_ = f.Close()
		}
		if err != nil {
			h.err = fmt.Errorf("%w: %w", domain.ErrSolverFailed, err)
		}
	})
	return h.err
}
