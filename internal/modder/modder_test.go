package modder_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/internal/modder"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/vaspio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"INCAR":   "ENCUT = 520\nMETAGGA = SCAN\nNSW = 99\n",
		"POSCAR":  "initial",
		"CONTCAR": "relaxed",
		"KPOINTS": "mesh\n0\nGamma\n4 4 4\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := map[string]string{}
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(b)
	}
	return out
}

func TestApply_EmptyListIsNoOp(t *testing.T) {
	dir := setupDir(t)
	before := snapshot(t, dir)

	require.NoError(t, modder.Apply(dir, nil))
	require.NoError(t, modder.Apply(dir, []domain.Directive{}))
	assert.Equal(t, before, snapshot(t, dir))
}

func TestApply_SetMergesAndDeletes(t *testing.T) {
	dir := setupDir(t)

	err := modder.Apply(dir, []domain.Directive{
		domain.SetDirective("INCAR", map[string]any{"ISTART": 1, "METAGGA": nil}),
	})
	require.NoError(t, err)

	inc, err := vaspio.ReadIncar(filepath.Join(dir, "INCAR"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ENCUT", "NSW", "ISTART"}, inc.Keys())
	v, _ := inc.Get("ISTART")
	assert.Equal(t, 1, v)
}

func TestApply_OrderMatters(t *testing.T) {
	dir := setupDir(t)

	err := modder.Apply(dir, []domain.Directive{
		domain.CopyDirective("CONTCAR", "POSCAR"),
		domain.CopyDirective("POSCAR", "POSCAR.step1"),
		domain.SetDirective("INCAR", map[string]any{"NSW": 0}),
		domain.SetDirective("INCAR", map[string]any{"NSW": 5}),
	})
	require.NoError(t, err)

	got := snapshot(t, dir)
	assert.Equal(t, "relaxed", got["POSCAR"])
	assert.Equal(t, "relaxed", got["POSCAR.step1"], "second copy sees the first")
	assert.Contains(t, got["INCAR"], "NSW = 5")
}

func TestApply_KpointsMapping(t *testing.T) {
	dir := setupDir(t)
	low := vaspio.NewGammaGrid(2, 2, 2)
	m, err := low.Map()
	require.NoError(t, err)

	require.NoError(t, modder.Apply(dir, []domain.Directive{domain.SetDirective("KPOINTS", m)}))
	k, err := vaspio.ReadKpoints(filepath.Join(dir, "KPOINTS"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, k.Grid())

	// Partial update on top of the current document.
	require.NoError(t, modder.Apply(dir, []domain.Directive{
		domain.SetDirective("KPOINTS", map[string]any{"kpoints": []any{[]any{3, 3, 1}}}),
	}))
	k, err = vaspio.ReadKpoints(filepath.Join(dir, "KPOINTS"))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, k.Grid())
}

func TestApply_KpointsCreatedWhenAbsent(t *testing.T) {
	dir := setupDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "KPOINTS")))
	m, err := vaspio.NewGammaGrid(1, 1, 1).Map()
	require.NoError(t, err)

	require.NoError(t, modder.Apply(dir, []domain.Directive{domain.SetDirective("KPOINTS", m)}))
	k, err := vaspio.ReadKpoints(filepath.Join(dir, "KPOINTS"))
	require.NoError(t, err)
	assert.True(t, k.IsGammaOnly())
}

func TestApply_Unsupported(t *testing.T) {
	dir := setupDir(t)

	err := modder.Apply(dir, []domain.Directive{domain.SetDirective("POTCAR", map[string]any{"X": 1})})
	assert.ErrorIs(t, err, domain.ErrUnsupportedDirective)

	err = modder.Apply(dir, []domain.Directive{{Target: "shell", Name: "rm"}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedDirective)
}

func TestApply_MissingSourceFails(t *testing.T) {
	dir := setupDir(t)
	err := modder.Apply(dir, []domain.Directive{domain.CopyDirective("WAVECAR", "WAVECAR.bak")})
	assert.Error(t, err)
}
