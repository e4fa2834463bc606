package sequence

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
)

// FullOptimization repeats relaxations until the cell volume settles.
type FullOptimization struct {
	dir      string
	tmpl     domain.JobDescriptor
	cfg      config
	step     int
	origKpts map[string]any
	done     bool
}

// NewFullOptimization yields ".relax1", ".relax2", ... until a run changes the
// volume by less than the tolerance, or the step limit is reached.
func NewFullOptimization(dir string, tmpl domain.JobDescriptor, opts ...Option) *FullOptimization {
	return &FullOptimization{dir: dir, tmpl: tmpl.Clone(), cfg: newConfig(10, opts)}
}

// Next implements ports.Sequence. From the second step on it compares the
// input structure with the relaxed one left by the previous job.
func (s *FullOptimization) Next(ctx context.Context) (ports.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.done || s.step >= s.cfg.maxSteps {
		s.done = true
		return nil, false, nil
	}
	log := s.cfg.logger.With("dir", s.dir, "step", s.step+1)

	desc := s.tmpl.Clone()
	desc.Final = false
	desc.Suffix = fmt.Sprintf(".relax%d", s.step+1)

	if s.step == 0 {
		if s.cfg.halfKpts {
			orig, low, ok, err := halvedKpoints(s.dir)
			if err != nil {
				return nil, false, err
			}
			if ok {
				s.origKpts = orig
				desc.Overrides = append(desc.Overrides, domain.SetDirective(domain.FileKpoints, low))
			}
		}
	} else {
		desc.Backup = false
		change, err := volumeChange(s.dir)
		if err != nil {
			return nil, false, err
		}
		log.Info("volume change", "change", fmt.Sprintf("%.1f%%", change*100))
		if math.Abs(change) < s.cfg.volTol {
			log.Info("stopping optimization")
			s.done = true
			return nil, false, nil
		}
		update := map[string]any{"ISTART": 1}
		if s.cfg.ediffg != 0 {
			update["EDIFFG"] = s.cfg.ediffg
		}
		desc.Overrides = append(desc.Overrides,
			domain.SetDirective(domain.FileIncar, update),
			domain.CopyDirective(domain.FileContcar, domain.FilePoscar),
		)
		if s.step == 1 && s.origKpts != nil {
			desc.Overrides = append(desc.Overrides, domain.SetDirective(domain.FileKpoints, s.origKpts))
		}
	}

	log.Info("generating job")
	s.step++
	return jobs.NewStandardJob(desc, s.cfg.jobOptions()...), true, nil
}

// volumeChange returns (V_out - V_in) / V_in between POSCAR and CONTCAR of dir.
func volumeChange(dir string) (float64, error) {
	initial, err := vaspio.ReadPoscar(filepath.Join(dir, domain.FilePoscar))
	if err != nil {
		return 0, fmt.Errorf("failed to read input structure: %w", err)
	}
	final, err := vaspio.ReadPoscar(filepath.Join(dir, domain.FileContcar))
	if err != nil {
		return 0, fmt.Errorf("failed to read relaxed structure: %w", err)
	}
	v0 := initial.Volume()
	if v0 == 0 {
		return 0, fmt.Errorf("input structure has zero volume")
	}
	return (final.Volume() - v0) / v0, nil
}
