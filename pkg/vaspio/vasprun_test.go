package vaspio_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/strata/pkg/vaspio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVasprun(t *testing.T) {
	vr, err := vaspio.ReadVasprun(filepath.Join("testdata", "vasprun.xml"))
	require.NoError(t, err)

	assert.Equal(t, "Si bulk", vr.Parameters["SYSTEM"])
	assert.Equal(t, true, vr.Parameters["LCHARG"])
	assert.Equal(t, 520.0, vr.Parameters["ENCUT"])
	assert.Equal(t, 0, vr.Parameters["ISMEAR"], "nested separators are flattened")
	assert.Equal(t, 99, vr.Parameters["NSW"])
	assert.Equal(t, []any{0, 0}, vr.Parameters["ICHAIN"])

	assert.InDelta(t, -10.84523, vr.FinalEnergy, 1e-9, "last ionic step, not an electronic step")

	require.NotNil(t, vr.FinalStructure)
	assert.Equal(t, "finalpos", vr.FinalStructure.Comment)
	require.Len(t, vr.FinalStructure.Sites, 2)
	assert.Equal(t, "Si", vr.FinalStructure.Sites[0].Species)
	assert.InDelta(t, 2*5.46*5.46*5.46/8, vr.FinalStructure.Volume(), 1e-6)
}

func TestReadVasprun_NoIonicSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vasprun.xml")
	require.NoError(t, os.WriteFile(path, []byte("<modeling><parameters/></modeling>"), 0o644))

	_, err := vaspio.ReadVasprun(path)
	assert.ErrorIs(t, err, vaspio.ErrNoIonicSteps)
}

func TestReadVasprun_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vasprun.xml")
	require.NoError(t, os.WriteFile(path, []byte("<modeling><calculation>"), 0o644))

	_, err := vaspio.ReadVasprun(path)
	assert.Error(t, err)
}

const outcarTail = ` magnetization (x)

# of ion       s       p       d       tot
------------------------------------------
    1        0.001   0.010   1.000   1.011
    2        0.002   0.020   2.000   2.022
--------------------------------------------------
tot          0.003   0.030   3.000   3.033

 some other block

 magnetization (x)

# of ion       s       p       d       tot
------------------------------------------
    1        0.001   0.010   2.100   2.111
    2        0.002   0.020  -2.100  -2.078
--------------------------------------------------
tot          0.003   0.030   0.000   0.033
`

func TestParseMagnetization_LastTable(t *testing.T) {
	mags, err := vaspio.ParseMagnetization(strings.NewReader(outcarTail))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.111, -2.078}, mags)
}

func TestParseMagnetization_Missing(t *testing.T) {
	_, err := vaspio.ParseMagnetization(strings.NewReader("no moments here\n"))
	assert.Error(t, err)
}
