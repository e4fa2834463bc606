package jobs

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/vaspio"
)

// GammaPointOnly reports whether the inputs in dir sample a single k-point,
// so the gamma-only solver build may be used. Perturbation-theory and optics
// runs never qualify.
func GammaPointOnly(dir string) (bool, error) {
	inc, err := vaspio.ReadIncar(filepath.Join(dir, domain.FileIncar))
	if err != nil {
		return false, err
	}
	if inc.Bool("LEPSILON") || inc.Bool("LOPTICS") {
		return false, nil
	}

	kpath := filepath.Join(dir, domain.FileKpoints)
	if fsutil.Exists(kpath) {
		k, err := vaspio.ReadKpoints(kpath)
		if err != nil {
			return false, err
		}
		if k.IsGammaOnly() {
			return true, nil
		}
	}

	spacing, ok := inc.Float("KSPACING")
	if !ok {
		return false, nil
	}
	if v, set := inc.Get("KGAMMA"); set && !vaspio.Truthy(v) {
		return false, nil
	}
	if spacing <= 0 {
		return false, fmt.Errorf("invalid KSPACING %g", spacing)
	}
	s, err := vaspio.ReadPoscar(filepath.Join(dir, domain.FilePoscar))
	if err != nil {
		return false, err
	}
	total := 1
	for _, b := range s.Lattice.Reciprocal().ABC() {
		total *= max(1, int(math.Ceil(b/spacing)))
	}
	return total == 1, nil
}

// selectCommand picks the solver invocation for dir. For gamma-only inputs it
// prefers the gamma command when its executable resolves, then the default
// command with ".gamma" appended to the executable.
func selectCommand(desc domain.JobDescriptor, dir string, lookPath LookPathFunc) ([]string, error) {
	cmd := slices.Clone(desc.Command)
	if !desc.AutoGamma || len(cmd) == 0 {
		return cmd, nil
	}
	gamma, err := GammaPointOnly(dir)
	if err != nil {
		return cmd, err
	}
	if !gamma {
		return cmd, nil
	}
	if n := len(desc.GammaCommand); n > 0 {
		if _, err := lookPath(desc.GammaCommand[n-1]); err == nil {
			return slices.Clone(desc.GammaCommand), nil
		}
	}
	last := len(cmd) - 1
	if _, err := lookPath(cmd[last] + ".gamma"); err == nil {
		cmd[last] += ".gamma"
	}
	return cmd, nil
}
