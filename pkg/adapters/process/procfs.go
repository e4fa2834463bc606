package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/pkg/ports"
	"github.com/prometheus/procfs"
)

// ProcfsTable enumerates processes through a mounted proc filesystem.
type ProcfsTable struct {
	fs procfs.FS
}

// NewProcfsTable opens the proc filesystem at mountPoint (usually "/proc").
func NewProcfsTable(mountPoint string) (*ProcfsTable, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &ProcfsTable{fs: fs}, nil
}

// Processes implements ports.ProcessTable.
func (t *ProcfsTable) Processes(ctx context.Context) ([]ports.Process, error) {
	procs, err := t.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	out := make([]ports.Process, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, procfsProcess{p: p})
	}
	return out, nil
}

type procfsProcess struct {
	p procfs.Proc
}

func (p procfsProcess) Pid() int { return p.p.PID }

func (p procfsProcess) Name() (string, error) { return p.p.Comm() }

func (p procfsProcess) OpenFiles() ([]string, error) {
	targets, err := p.p.FileDescriptorTargets()
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(targets))
	for _, target := range targets {
		if filepath.IsAbs(target) {
			files = append(files, target)
		}
	}
	return files, nil
}

func (p procfsProcess) Kill() error {
	proc, err := os.FindProcess(p.p.PID)
	if err != nil {
		return err
	}
	return proc.Kill()
}
