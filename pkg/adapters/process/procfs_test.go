package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcfsTable_SeesOwnOpenFiles(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs is linux only")
	}
	table, err := process.NewProcfsTable("/proc")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "vasprun.xml")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	procs, err := table.Processes(context.Background())
	require.NoError(t, err)

	var self ports.Process
	for _, p := range procs {
		if p.Pid() == os.Getpid() {
			self = p
		}
	}
	require.NotNil(t, self)

	files, err := self.OpenFiles()
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	assert.Contains(t, files, resolved)
}
