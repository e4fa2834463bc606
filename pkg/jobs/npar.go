package jobs

import (
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/vaspio"
)

// Scheduler variables consulted for the core count, in order.
var coreCountVars = []string{"NSLOTS", "SLURM_NTASKS"}

// CoreCount returns the cores granted by the batch scheduler, falling back to
// the CPUs visible on this machine.
func CoreCount() int {
	for _, name := range coreCountVars {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name))); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// Npar returns the first divisor of cores in [floor(sqrt(cores)), cores].
func Npar(cores int) int {
	if cores < 1 {
		return 1
	}
	for n := int(math.Sqrt(float64(cores))); n <= cores; n++ {
		if n > 0 && cores%n == 0 {
			return n
		}
	}
	return cores
}

// TuneParallelism adjusts NPAR in inc for cores. Hybrid, RPA and dielectric
// runs are left untouched; Hessian runs must not set NPAR at all. It reports
// whether inc changed.
func TuneParallelism(inc *vaspio.Incar, cores int) bool {
	if inc.Bool("LHFCALC") || inc.Bool("LRPA") || inc.Bool("LEPSILON") {
		return false
	}
	if ibrion, ok := inc.Int("IBRION"); ok && ibrion >= 5 && ibrion <= 8 {
		if !inc.Has("NPAR") {
			return false
		}
		inc.Delete("NPAR")
		return true
	}
	inc.Set("NPAR", Npar(cores))
	return true
}
