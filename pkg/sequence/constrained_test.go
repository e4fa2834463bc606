package sequence_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/sequence"
	"github.com/aretw0/strata/pkg/vaspio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// energyAt is an asymmetric well around c = 5.4.
func energyAt(c float64) float64 { return (c - 5.4) * (c - 5.4) }

func constrainedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		domain.FileIncar:  "EDIFFG = 0.02\nIBRION = 2\n",
		domain.FilePoscar: cellPoscar(4, 4, 4),
	})
	return dir
}

// runConstrained plays the solver: each job's setup installs the strained
// cell, then a run record with the model energy is left behind.
func runConstrained(t *testing.T, dir string, seq *sequence.ConstrainedOptimization) []domain.JobDescriptor {
	t.Helper()
	ctx := context.Background()
	var descs []domain.JobDescriptor
	for {
		j, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		if !ok {
			return descs
		}
		require.Less(t, len(descs), 30, "search does not terminate")
		descs = append(descs, descriptorOf(t, j))
		require.NoError(t, j.Setup(ctx, dir))

		st, err := vaspio.ReadPoscar(filepath.Join(dir, domain.FilePoscar))
		require.NoError(t, err)
		writeVasprun(t, dir, st, energyAt(st.Lattice.ABC()[2]))
	}
}

func lengths(samples []domain.LatticeSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = math.Round(s.Length*1e6) / 1e6
	}
	return out
}

func TestConstrained_QuadraticFit(t *testing.T) {
	dir := constrainedDir(t)
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "c", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.02, seq.Tolerance())

	descs := runConstrained(t, dir, seq)
	// 4 (start), 5 (strain), 4.5 (bisection), 5.5 and 6 (extrapolation), 5.4 (fit).
	require.Len(t, descs, 6)
	assert.Equal(t, ".static.4", descs[0].Suffix)
	assert.Equal(t, ".static.5", descs[1].Suffix)
	assert.Equal(t, ".static.4.5", descs[2].Suffix)
	for _, d := range descs {
		assert.False(t, d.Final)
	}
	assert.True(t, descs[0].Backup)
	assert.False(t, descs[1].Backup)

	assert.Equal(t, []float64{4, 4.5, 5, 5.4, 5.5, 6}, lengths(seq.Samples()))
	assert.FileExists(t, filepath.Join(dir, "POSCAR.5"))

	eos, err := os.ReadFile(filepath.Join(dir, domain.FileEOS))
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(eos)), "\n")
	require.Len(t, rows, 7)
	assert.Equal(t, "# c energy", rows[0])
	assert.Equal(t, "4 1.96", rows[1], "energies come from the run records")
}

func TestConstrained_Bisection(t *testing.T) {
	dir := constrainedDir(t)
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "c", 0.25,
		sequence.WithAlgo(sequence.AlgoBisection))
	require.NoError(t, err)

	descs := runConstrained(t, dir, seq)
	require.Len(t, descs, 6)
	assert.Equal(t, []float64{4, 4.5, 5, 5.25, 5.5, 6}, lengths(seq.Samples()))
}

func TestConstrained_StepDirectives(t *testing.T) {
	dir := constrainedDir(t)
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "c", 0.25,
		sequence.WithAtomRelax(false))
	require.NoError(t, err)
	descs := runConstrained(t, dir, seq)
	require.NotEmpty(t, descs)

	first := descs[0].Overrides
	require.Len(t, first, 1)
	assert.Equal(t, map[string]any{"ISIF": 2, "NSW": 0}, first[0].Set)

	second := descs[1].Overrides
	require.Len(t, second, 2)
	assert.Equal(t, map[string]any{"ISTART": 1, "NSW": 0, "ISIF": 2}, second[0].Set)
	assert.Equal(t, domain.CopyDirective("POSCAR.5", domain.FilePoscar), second[1])
}

func TestConstrained_MaxStepsRecordsLastRun(t *testing.T) {
	dir := constrainedDir(t)
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "c", 0.25,
		sequence.WithMaxSteps(2))
	require.NoError(t, err)

	descs := runConstrained(t, dir, seq)
	assert.Len(t, descs, 2)
	assert.Equal(t, []float64{4, 5}, lengths(seq.Samples()))
	assert.FileExists(t, filepath.Join(dir, domain.FileEOS))
}

func TestConstrained_OtherAxesUntouched(t *testing.T) {
	dir := constrainedDir(t)
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "a", 0.25,
		sequence.WithMaxSteps(2))
	require.NoError(t, err)
	ctx := context.Background()

	j, _, err := seq.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, j.Setup(ctx, dir))
	st, err := vaspio.ReadPoscar(filepath.Join(dir, domain.FilePoscar))
	require.NoError(t, err)
	writeVasprun(t, dir, st, -1)

	j, _, err = seq.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, j.Setup(ctx, dir))
	st, err = vaspio.ReadPoscar(filepath.Join(dir, domain.FilePoscar))
	require.NoError(t, err)
	abc := st.Lattice.ABC()
	assert.InDelta(t, 5, abc[0], 1e-9)
	assert.InDelta(t, 4, abc[1], 1e-9)
	assert.InDelta(t, 4, abc[2], 1e-9)
}

func TestConstrained_Validation(t *testing.T) {
	dir := constrainedDir(t)
	_, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "x", 0.05)
	assert.Error(t, err)
	_, err = sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "c", 0.05, sequence.WithAlgo("newton"))
	assert.Error(t, err)
	_, err = sequence.NewConstrainedOptimization(t.TempDir(), domain.NewDescriptor("vasp_std"), "c", 0.05)
	assert.Error(t, err, "INCAR is required")
}

func TestConstrained_ToleranceFromEdiff(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{domain.FileIncar: "EDIFF = 1E-5\nEDIFFG = -0.01\n"})
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "b", 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 1e-4, seq.Tolerance(), 1e-12)
}

func TestConstrained_MissingRunRecord(t *testing.T) {
	dir := constrainedDir(t)
	seq, err := sequence.NewConstrainedOptimization(dir, domain.NewDescriptor("vasp_std"), "c", 0.05)
	require.NoError(t, err)
	_, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	_, _, err = seq.Next(context.Background())
	assert.Error(t, err)
}
