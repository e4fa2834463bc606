package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/file"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "never-used"), 0o755))
	ports.RunMarkerStoreContract(t, file.New(), dir)
}

func TestFileStore_WireFormat(t *testing.T) {
	dir := t.TempDir()
	store := file.New()

	require.NoError(t, store.Save(context.Background(), dir, &domain.Marker{Actions: domain.DefaultContinuation()}))

	data, err := os.ReadFile(filepath.Join(dir, "continue.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"file": "CONTCAR", "action": {"_file_copy": {"dest": "POSCAR"}}},
		{"dict": "INCAR", "action": {"_set": {"ISTART": 1}}}
	]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_ReadsHandWrittenMarker(t *testing.T) {
	for name, content := range map[string]string{
		"list":   `[{"dict": "INCAR", "action": {"_set": {"NSW": 0}}}]`,
		"object": `{"actions": [{"dict": "INCAR", "action": {"_set": {"NSW": 0}}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "continue.json"), []byte("\n"+content), 0o644))

			m, err := file.New().Load(context.Background(), dir)
			require.NoError(t, err)
			require.Len(t, m.Actions, 1)
			assert.Equal(t, "INCAR", m.Actions[0].Name)
			assert.EqualValues(t, 0, m.Actions[0].Set["NSW"])
		})
	}
}

func TestFileStore_CustomName(t *testing.T) {
	dir := t.TempDir()
	store := file.NewWithName("resume.json")
	require.NoError(t, store.Save(context.Background(), dir, &domain.Marker{}))

	data, err := os.ReadFile(filepath.Join(dir, "resume.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
	assert.NoFileExists(t, filepath.Join(dir, "continue.json"))
}

func TestFileStore_CorruptMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "continue.json"), []byte("{"), 0o644))

	_, err := file.New().Load(context.Background(), dir)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMarkerNotFound)
}
