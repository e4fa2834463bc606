package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// EOSMarkdown renders lattice samples as a Markdown report. The lowest energy
// row is marked and energies are also shown relative to it in meV.
func EOSMarkdown(direction string, samples []domain.LatticeSample) string {
	var b strings.Builder
	if direction == "" {
		direction = "length"
	}
	fmt.Fprintf(&b, "# Constrained optimization along %s\n\n", direction)
	if len(samples) == 0 {
		b.WriteString("_No samples recorded._\n")
		return b.String()
	}

	best := 0
	for i, s := range samples {
		if s.Energy < samples[best].Energy {
			best = i
		}
	}
	fmt.Fprintf(&b, "| %s (Å) | Energy (eV) | ΔE (meV) | |\n", direction)
	b.WriteString("|---:|---:|---:|:---|\n")
	for i, s := range samples {
		mark := ""
		if i == best {
			mark = "**min**"
		}
		fmt.Fprintf(&b, "| %s | %s | %.1f | %s |\n",
			domain.FormatLength(s.Length),
			strconv.FormatFloat(s.Energy, 'f', -1, 64),
			(s.Energy-samples[best].Energy)*1000,
			mark)
	}
	fmt.Fprintf(&b, "\n%d samples, minimum at %s = %s Å.\n",
		len(samples), direction, domain.FormatLength(samples[best].Length))
	return b.String()
}
