package process_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid     int
	name    string
	nameErr error
	files   []string
	killErr error
	killed  bool
}

func (p *fakeProcess) Pid() int                     { return p.pid }
func (p *fakeProcess) Name() (string, error)        { return p.name, p.nameErr }
func (p *fakeProcess) OpenFiles() ([]string, error) { return p.files, nil }
func (p *fakeProcess) Kill() error {
	if p.killErr != nil {
		return p.killErr
	}
	p.killed = true
	return nil
}

type fakeTable struct {
	procs []*fakeProcess
	err   error
}

func (t *fakeTable) Processes(context.Context) ([]ports.Process, error) {
	if t.err != nil {
		return nil, t.err
	}
	out := make([]ports.Process, len(t.procs))
	for i, p := range t.procs {
		out[i] = p
	}
	return out, nil
}

type killRecorder struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (k *killRecorder) killAll(_ context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.names = append(k.names, name)
	return k.err
}

func TestTerminator_KillsProcessHoldingRunRecord(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "vasprun.xml")

	editor := &fakeProcess{pid: 10, name: "vim", files: []string{record}}
	other := &fakeProcess{pid: 11, name: "vasp_std", files: []string{"/elsewhere/vasprun.xml"}}
	broken := &fakeProcess{pid: 12, nameErr: errors.New("gone")}
	target := &fakeProcess{pid: 13, name: "VASP_std", files: []string{"/dev/null", record}}
	later := &fakeProcess{pid: 14, name: "vasp_std", files: []string{record}}

	kr := &killRecorder{}
	term := process.NewTerminator(
		process.WithProcessTable(&fakeTable{procs: []*fakeProcess{editor, other, broken, target, later}}),
		process.WithKillAll(kr.killAll),
	)
	term.Terminate(context.Background(), dir, []string{"mpirun", "vasp_std"})

	assert.False(t, editor.killed, "name must contain the solver id")
	assert.False(t, other.killed)
	assert.True(t, target.killed)
	assert.False(t, later.killed, "stops after the first kill")
	assert.Empty(t, kr.names)
}

func TestTerminator_FallsBackToKillAll(t *testing.T) {
	dir := t.TempDir()
	kr := &killRecorder{err: errors.New("no process found")}
	failing := &fakeProcess{pid: 20, name: "vasp_std", files: []string{filepath.Join(dir, "vasprun.xml")}, killErr: errors.New("permission denied")}

	term := process.NewTerminator(
		process.WithProcessTable(&fakeTable{procs: []*fakeProcess{failing}}),
		process.WithKillAll(kr.killAll),
	)

	assert.NotPanics(t, func() {
		term.Terminate(context.Background(), dir,
			[]string{"mpirun", "-np", "4", "vasp_std"},
			[]string{"mpirun", "-np", "4", "vasp_gam"},
			[]string{"srun", "vasp_std"},
		)
	})
	assert.Equal(t, []string{"vasp_std", "vasp_gam"}, kr.names, "each solver name once, errors swallowed")
}

func TestTerminator_TableFailure(t *testing.T) {
	kr := &killRecorder{}
	term := process.NewTerminator(
		process.WithProcessTable(&fakeTable{err: errors.New("procfs unavailable")}),
		process.WithKillAll(kr.killAll),
	)
	term.Terminate(context.Background(), t.TempDir(), []string{"vasp_std"})
	assert.Equal(t, []string{"vasp_std"}, kr.names)
}

func TestTerminator_WithoutTable(t *testing.T) {
	kr := &killRecorder{}
	term := process.NewTerminator(process.WithProcessTable(nil), process.WithKillAll(kr.killAll), process.WithSolverID("CP2K"))
	term.Terminate(context.Background(), t.TempDir(), []string{"mpirun", "cp2k.psmp"})
	assert.Equal(t, []string{"cp2k.psmp"}, kr.names)
}

// fakeSolver writes an executable script whose process name contains "vasp"
// and which keeps dir/vasprun.xml open until killed.
func fakeSolver(t *testing.T) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("targeted termination reads /proc")
	}
	path := filepath.Join(t.TempDir(), "fakevasp")
	script := "#!/bin/sh\nexec 3>vasprun.xml\nwhile :; do sleep 1; done\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestTerminator_DefaultTableKillsSolver(t *testing.T) {
	solver := fakeSolver(t)
	dir := t.TempDir()

	h, err := process.NewLauncher().Start(context.Background(), []string{solver}, dir, "vasp.out", "std_err.txt")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "vasprun.xml"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	kr := &killRecorder{}
	process.NewTerminator(process.WithKillAll(kr.killAll)).Terminate(context.Background(), dir, []string{solver})

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrSolverFailed)
	case <-time.After(5 * time.Second):
		_ = h.Kill()
		t.Fatal("solver holding vasprun.xml survived Terminate")
	}
	assert.Empty(t, kr.names, "the process table found the solver, so killall is not used")
}
