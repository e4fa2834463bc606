package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("solver fixtures use sh")
	}
}

func TestLauncher_RedirectsOutput(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	l := process.NewLauncher(process.WithEnv("STRATA_TEST_MSG=hello"))

	h, err := l.Start(context.Background(), []string{"sh", "-c", "echo $STRATA_TEST_MSG; touch here; echo oops >&2"}, dir, "vasp.out", "std_err.txt")
	require.NoError(t, err)
	assert.Positive(t, h.Pid())
	require.NoError(t, h.Wait())
	require.NoError(t, h.Wait(), "Wait is idempotent")

	out, err := os.ReadFile(filepath.Join(dir, "vasp.out"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello")
	assert.FileExists(t, filepath.Join(dir, "here"), "solver runs inside the working directory")

	errOut, err := os.ReadFile(filepath.Join(dir, "std_err.txt"))
	require.NoError(t, err)
	assert.Equal(t, "oops\n", string(errOut))
}

func TestLauncher_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)
	l := process.NewLauncher()

	h, err := l.Start(context.Background(), []string{"sh", "-c", "exit 3"}, t.TempDir(), "out", "err")
	require.NoError(t, err)
	assert.ErrorIs(t, h.Wait(), domain.ErrSolverFailed)
}

func TestLauncher_StartErrors(t *testing.T) {
	l := process.NewLauncher()
	dir := t.TempDir()

	_, err := l.Start(context.Background(), nil, dir, "out", "err")
	assert.Error(t, err)

	_, err = l.Start(context.Background(), []string{"definitely-not-a-solver-binary"}, dir, "out", "err")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Start(ctx, []string{"true"}, dir, "out", "err")
	assert.ErrorIs(t, err, context.Canceled)
}
