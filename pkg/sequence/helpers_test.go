package sequence_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
	"github.com/stretchr/testify/require"
)

// cellPoscar renders a one-atom orthorhombic cell with edges a, b and c.
func cellPoscar(a, b, c float64) string {
	return fmt.Sprintf("cell\n1.0\n%g 0 0\n0 %g 0\n0 0 %g\nSi\n1\nDirect\n0 0 0\n", a, b, c)
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

// writeVasprun leaves the run record of a solver that ended at st with energy.
func writeVasprun(t *testing.T, dir string, st *vaspio.Structure, energy float64) {
	t.Helper()
	l := st.Lattice
	doc := fmt.Sprintf(`<?xml version="1.0" encoding="ISO-8859-1"?>
<modeling>
 <parameters/>
 <atominfo>
  <array name="atoms"><set><rc><c>Si</c><c>1</c></rc></set></array>
 </atominfo>
 <calculation>
  <energy><i name="e_0_energy">%.10f</i></energy>
 </calculation>
 <structure name="finalpos">
  <crystal>
   <varray name="basis">
    <v>%.10f %.10f %.10f</v>
    <v>%.10f %.10f %.10f</v>
    <v>%.10f %.10f %.10f</v>
   </varray>
  </crystal>
  <varray name="positions"><v>0 0 0</v></varray>
 </structure>
</modeling>
`, energy, l[0][0], l[0][1], l[0][2], l[1][0], l[1][1], l[1][2], l[2][0], l[2][1], l[2][2])
	writeFiles(t, dir, map[string]string{domain.FileVasprun: doc})
}

func descriptorOf(t *testing.T, j ports.Job) domain.JobDescriptor {
	t.Helper()
	sj, ok := j.(*jobs.StandardJob)
	require.True(t, ok, "expected a standard job, got %T", j)
	return sj.Descriptor()
}

// drain collects every job of seq without running any of them.
func drain(t *testing.T, seq ports.Sequence) []domain.JobDescriptor {
	t.Helper()
	var out []domain.JobDescriptor
	for {
		j, ok, err := seq.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, descriptorOf(t, j))
	}
}

func readKpoints(t *testing.T, dir string) *vaspio.Kpoints {
	t.Helper()
	k, err := vaspio.ReadKpoints(filepath.Join(dir, domain.FileKpoints))
	require.NoError(t, err)
	return k
}
