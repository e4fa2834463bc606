package process

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Terminator stops the solver working in a directory. It first looks for the
// solver process holding the directory's run record open and kills only that
// one; if none is found it falls back to killing solver executables by name.
type Terminator struct {
	table    ports.ProcessTable
	killAll  KillAllFunc
	solverID string
	logger   *slog.Logger
}

// DefaultProcfsMount is where NewTerminator looks for the process table when
// none is given.
const DefaultProcfsMount = "/proc"

// NewTerminator creates a Terminator. Without WithProcessTable it scans
// DefaultProcfsMount; where that cannot be opened only the name-based
// fallback is available.
func NewTerminator(opts ...Option) *Terminator {
	s := newSettings(opts)
	if !s.tableSet {
		table, err := NewProcfsTable(DefaultProcfsMount)
		if err != nil {
			s.logger.Debug("targeted termination unavailable", "err", err)
		} else {
			s.table = table
		}
	}
	return &Terminator{
		table:    s.table,
		killAll:  s.killAll,
		solverID: strings.ToLower(s.solverID),
		logger:   s.logger,
	}
}

// Terminate kills the solver of dir. commands are the solver invocations the
// job may have used; their solver arguments feed the fallback. Failures are
// logged and never returned.
func (t *Terminator) Terminate(ctx context.Context, dir string, commands ...[]string) {
	log := t.logger.With("dir", dir)
	if t.killTargeted(ctx, dir, log) {
		return
	}

	log.Warn("no solver process holds the run record open, falling back to killall")
	var seen []string
	for _, cmd := range commands {
		for _, arg := range cmd {
			if !strings.Contains(strings.ToLower(arg), t.solverID) || slices.Contains(seen, arg) {
				continue
			}
			seen = append(seen, arg)
			if err := t.killAll(ctx, arg); err != nil {
				log.Warn("killall failed", "name", arg, "err", err)
			}
		}
	}
}

func (t *Terminator) killTargeted(ctx context.Context, dir string, log *slog.Logger) bool {
	if t.table == nil {
		return false
	}
	targets := runRecordPaths(dir)

	procs, err := t.table.Processes(ctx)
	if err != nil {
		log.Warn("failed to enumerate processes", "err", err)
		return false
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			log.Debug("skipping process", "pid", p.Pid(), "err", err)
			continue
		}
		if !strings.Contains(strings.ToLower(name), t.solverID) {
			continue
		}
		files, err := p.OpenFiles()
		if err != nil {
			log.Warn("failed to list open files", "pid", p.Pid(), "err", err)
			continue
		}
		if !slices.ContainsFunc(files, func(f string) bool { return slices.Contains(targets, f) }) {
			continue
		}
		if err := p.Kill(); err != nil {
			log.Warn("failed to kill solver", "pid", p.Pid(), "err", err)
			continue
		}
		log.Info("solver killed", "pid", p.Pid(), "name", name)
		return true
	}
	return false
}

// runRecordPaths returns the absolute run-record path of dir, plus its
// symlink-resolved form when that differs.
func runRecordPaths(dir string) []string {
	var out []string
	if abs, err := filepath.Abs(dir); err == nil {
		out = append(out, filepath.Join(abs, domain.FileVasprun))
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		p := filepath.Join(resolved, domain.FileVasprun)
		if abs, err := filepath.Abs(p); err == nil && !slices.Contains(out, abs) {
			out = append(out, abs)
		}
	}
	return out
}
