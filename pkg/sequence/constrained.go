package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/strata/internal/fit"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
)

// ConstrainedOptimization searches the lattice length along one axis that
// minimizes the energy, each step a static or ion-relaxing run at a fixed
// cell. On exit it writes EOS.txt with every sampled length.
type ConstrainedOptimization struct {
	dir       string
	tmpl      domain.JobDescriptor
	cfg       config
	direction string
	axis      int
	strain    float64
	eTol      float64
	nsw       int

	mu      sync.Mutex
	samples domain.SampleSet
	step    int
	done    bool
}

// NewConstrainedOptimization prepares the loop for direction "a", "b" or "c".
// initialStrain is applied to the starting length for the second sample.
// The energy tolerance is EDIFFG when positive, else ten times EDIFF.
func NewConstrainedOptimization(dir string, tmpl domain.JobDescriptor, direction string, initialStrain float64, opts ...Option) (*ConstrainedOptimization, error) {
	axis := strings.Index("abc", direction)
	if len(direction) != 1 || axis < 0 {
		return nil, fmt.Errorf("invalid lattice direction %q (want a, b or c)", direction)
	}
	c := newConfig(20, opts)
	if c.algo != AlgoBFGS && c.algo != AlgoBisection {
		return nil, fmt.Errorf("unknown algorithm %q", c.algo)
	}
	inc, err := vaspio.ReadIncar(filepath.Join(dir, domain.FileIncar))
	if err != nil {
		return nil, fmt.Errorf("failed to read INCAR: %w", err)
	}
	nsw := 0
	if c.atomRelax {
		nsw = 99
	}
	return &ConstrainedOptimization{
		dir:       dir,
		tmpl:      tmpl.Clone(),
		cfg:       c,
		direction: direction,
		axis:      axis,
		strain:    initialStrain,
		eTol:      energyTolerance(inc),
		nsw:       nsw,
	}, nil
}

func energyTolerance(inc *vaspio.Incar) float64 {
	if v, ok := inc.Float("EDIFFG"); ok && v > 0 {
		return v
	}
	ediff, ok := inc.Float("EDIFF")
	if !ok {
		ediff = 1e-4
	}
	return ediff * 10
}

// Samples returns the lattice samples recorded so far, sorted by length.
func (s *ConstrainedOptimization) Samples() []domain.LatticeSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples.Sorted()
}

// Tolerance returns the energy difference under which the search stops.
func (s *ConstrainedOptimization) Tolerance() float64 { return s.eTol }

// Next implements ports.Sequence.
func (s *ConstrainedOptimization) Next(ctx context.Context) (ports.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, false, nil
	}
	log := s.cfg.logger.With("dir", s.dir, "step", s.step+1, "direction", s.direction)

	if s.step >= s.cfg.maxSteps {
		// The last job ran but was never sampled; record it when it left a run record.
		if run, err := vaspio.ReadVasprun(filepath.Join(s.dir, domain.FileVasprun)); err == nil && run.FinalStructure != nil {
			s.samples.Record(run.FinalStructure.Lattice.ABC()[s.axis], run.FinalEnergy)
		} else if err != nil {
			log.Warn("final run record unavailable", "err", err)
		}
		log.Info("step limit reached")
		return nil, false, s.finish()
	}

	desc := s.tmpl.Clone()
	desc.Final = false

	var x float64
	if s.step == 0 {
		st, err := vaspio.ReadPoscar(filepath.Join(s.dir, domain.FilePoscar))
		if err != nil {
			return nil, false, fmt.Errorf("failed to read starting structure: %w", err)
		}
		x = st.Lattice.ABC()[s.axis]
		desc.Overrides = append(desc.Overrides,
			domain.SetDirective(domain.FileIncar, map[string]any{"ISIF": 2, "NSW": s.nsw}),
		)
	} else {
		desc.Backup = false
		run, err := vaspio.ReadVasprun(filepath.Join(s.dir, domain.FileVasprun))
		if err != nil {
			return nil, false, fmt.Errorf("failed to read run record: %w", err)
		}
		if run.FinalStructure == nil {
			return nil, false, fmt.Errorf("%w: run record has no structure", domain.ErrMissingStructure)
		}
		st := run.FinalStructure
		x = st.Lattice.ABC()[s.axis]
		s.samples.Record(x, run.FinalEnergy)

		if s.step == 1 {
			x *= 1 + s.strain
		} else {
			next, converged := s.propose(log)
			if converged {
				return nil, false, s.finish()
			}
			x = next
		}

		name := domain.FilePoscar + "." + domain.FormatLength(x)
		strained := st.WithLattice(st.Lattice.WithLength(s.axis, x))
		if err := strained.WriteFile(filepath.Join(s.dir, name)); err != nil {
			return nil, false, fmt.Errorf("failed to write %s: %w", name, err)
		}
		desc.Overrides = append(desc.Overrides,
			domain.SetDirective(domain.FileIncar, map[string]any{"ISTART": 1, "NSW": s.nsw, "ISIF": 2}),
			domain.CopyDirective(name, domain.FilePoscar),
		)
	}

	desc.Suffix = ".static." + domain.FormatLength(x)
	log.Info("generating job", "length", x)
	s.step++
	return jobs.NewStandardJob(desc, s.cfg.jobOptions()...), true, nil
}

// propose picks the next length from the recorded samples. The best sample is
// compared against one neighbor only: the lower-energy one when it has two.
func (s *ConstrainedOptimization) propose(log *slog.Logger) (float64, bool) {
	sorted := s.samples.Sorted()
	n := len(sorted)
	best := 0
	for i, smp := range sorted {
		if smp.Energy < sorted[best].Energy {
			best = i
		}
	}
	other := best - 1
	switch {
	case best == 0:
		other = 1
	case best == n-1:
		other = n - 2
	case sorted[best+1].Energy < sorted[best-1].Energy:
		other = best + 1
	}

	minX := sorted[best].Length
	if math.Abs(sorted[best].Energy-sorted[other].Energy) < s.eTol {
		log.Info("stopping optimization", "final", minX)
		return minX, true
	}

	switch {
	case best == 0 && n > 2:
		x := sorted[0].Length - math.Abs(sorted[1].Length-sorted[0].Length)
		log.Info("lowest energy lies below bounds", "length", x)
		return x, false
	case best == n-1 && n > 2:
		x := sorted[n-1].Length + math.Abs(sorted[n-1].Length-sorted[n-2].Length)
		log.Info("lowest energy lies above bounds", "length", x)
		return x, false
	}

	midpoint := (minX + sorted[other].Length) / 2
	if s.cfg.algo != AlgoBFGS || n < 4 {
		log.Info("bisection", "length", midpoint)
		return midpoint, false
	}
	x, err := fitMinimum(sorted)
	if err != nil {
		log.Info("falling back on bisection", "reason", err.Error(), "length", midpoint)
		return midpoint, false
	}
	log.Info("quadratic fit minimized", "length", x)
	return x, false
}

var errNegativeLength = errors.New("negative lattice constant")

func fitMinimum(sorted []domain.LatticeSample) (float64, error) {
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, smp := range sorted {
		xs[i], ys[i] = smp.Length, smp.Energy
	}
	q, err := fit.FitQuadratic(xs, ys)
	if err != nil {
		return 0, err
	}
	x, err := q.MinimizeBounded(xs[0], xs[len(xs)-1])
	if err != nil {
		return 0, err
	}
	if x < 0 {
		return 0, errNegativeLength
	}
	return x, nil
}

// finish writes EOS.txt and closes the sequence.
func (s *ConstrainedOptimization) finish() error {
	s.done = true
	f, err := os.Create(filepath.Join(s.dir, domain.FileEOS))
	if err != nil {
		return fmt.Errorf("failed to write EOS table: %w", err)
	}
	if err := s.samples.WriteTable(f, s.direction); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write EOS table: %w", err)
	}
	return f.Close()
}
