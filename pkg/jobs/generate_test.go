package jobs_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/vaspio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const relaxedPoscar = `Si2 relaxed
5.50
 0.0 0.5 0.5
 0.5 0.0 0.5
 0.5 0.5 0.0
Si
2
Direct
 0.00 0.00 0.00
 0.25 0.25 0.25
`

func TestGenerateInputJob_FromContcar(t *testing.T) {
	ctx := context.Background()
	dir := inputDir(t)
	writeFiles(t, dir, map[string]string{"CONTCAR": relaxedPoscar})

	set := jobs.Overlay{
		Incar:   map[string]any{"NSW": 0, "ICHARG": 11, "ISMEAR": nil},
		Kpoints: vaspio.NewGammaGrid(8, 8, 8),
	}
	job := jobs.NewGenerateInputJob(set, true)
	require.NoError(t, job.Setup(ctx, dir))
	h, err := job.Run(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, h.Pid())
	require.NoError(t, h.Wait())
	require.NoError(t, job.Postprocess(ctx, dir))

	s, err := vaspio.ReadPoscar(filepath.Join(dir, "POSCAR"))
	require.NoError(t, err)
	assert.InDelta(t, 5.5*5.5*5.5/4, s.Volume(), 1e-9)

	inc := readIncar(t, dir)
	assert.Equal(t, []string{"ENCUT", "NSW", "ICHARG"}, inc.Keys())

	k, err := vaspio.ReadKpoints(filepath.Join(dir, "KPOINTS"))
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 8}, k.Grid())
}

func TestGenerateInputJob_MissingStructure(t *testing.T) {
	ctx := context.Background()
	dir := inputDir(t)

	strict := jobs.NewGenerateInputJob(jobs.Overlay{}, true)
	require.NoError(t, strict.Setup(ctx, dir))
	_, err := strict.Run(ctx, dir)
	assert.ErrorIs(t, err, domain.ErrMissingStructure, "POSCAR is not used when CONTCAR is required")

	lenient := jobs.NewGenerateInputJob(jobs.Overlay{}, false)
	require.NoError(t, lenient.Setup(ctx, dir))
	_, err = lenient.Run(ctx, dir)
	assert.NoError(t, err)

	empty := t.TempDir()
	require.NoError(t, lenient.Setup(ctx, empty))
	_, err = lenient.Run(ctx, empty)
	assert.ErrorIs(t, err, domain.ErrMissingStructure)
}

func TestGenerateInputJob_RetryAfterFailedRun(t *testing.T) {
	ctx := context.Background()
	dir := inputDir(t)
	job := jobs.NewGenerateInputJob(jobs.Overlay{}, true)
	require.NoError(t, job.Setup(ctx, dir))

	_, err := job.Run(ctx, dir)
	require.ErrorIs(t, err, domain.ErrMissingStructure)
	assert.Equal(t, domain.StateSetupDone, job.State(dir))

	writeFiles(t, dir, map[string]string{"CONTCAR": relaxedPoscar})
	h, err := job.Run(ctx, dir)
	require.NoError(t, err, "a failed run must not leave the job running")
	require.NoError(t, h.Wait())
	require.NoError(t, job.Postprocess(ctx, dir))
}
