package sequence

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
)

// Fixed yields a precomputed list of jobs in order.
type Fixed struct {
	jobs []ports.Job
	next int
}

// Of returns a sequence yielding jobs in order.
func Of(js ...ports.Job) *Fixed {
	return &Fixed{jobs: js}
}

// Next implements ports.Sequence.
func (f *Fixed) Next(ctx context.Context) (ports.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if f.next >= len(f.jobs) {
		return nil, false, nil
	}
	j := f.jobs[f.next]
	f.next++
	return j, true, nil
}

// Len returns the total number of jobs.
func (f *Fixed) Len() int { return len(f.jobs) }

// Single yields one standard job running tmpl as given.
func Single(tmpl domain.JobDescriptor, opts ...Option) *Fixed {
	c := newConfig(0, opts)
	return Of(jobs.NewStandardJob(tmpl.Clone(), c.jobOptions()...))
}

// SingleNEB yields one multi-image job running tmpl as given.
func SingleNEB(tmpl domain.JobDescriptor, opts ...Option) *Fixed {
	c := newConfig(0, opts)
	return Of(jobs.NewNEBJob(tmpl.Clone(), c.jobOptions()...))
}

func build(descs []domain.JobDescriptor, c config) *Fixed {
	js := make([]ports.Job, len(descs))
	for i, d := range descs {
		js[i] = jobs.NewStandardJob(d, c.jobOptions()...)
	}
	return Of(js...)
}

// NewDoubleRelaxation yields two relaxations: ".relax1" keeps its inputs and
// copies its outputs, ".relax2" restarts from the relaxed structure and is final.
// Overrides of tmpl run first in every step.
func NewDoubleRelaxation(dir string, tmpl domain.JobDescriptor, opts ...Option) (*Fixed, error) {
	c := newConfig(0, opts)
	descs, err := doubleRelaxation(dir, tmpl, c)
	if err != nil {
		return nil, err
	}
	return build(descs, c), nil
}

func doubleRelaxation(dir string, tmpl domain.JobDescriptor, c config) ([]domain.JobDescriptor, error) {
	update := map[string]any{"ISTART": 1}
	if c.ediffg != 0 {
		update["EDIFFG"] = c.ediffg
	}
	var first []domain.Directive
	second := []domain.Directive{
		domain.SetDirective(domain.FileIncar, update),
		domain.CopyDirective(domain.FileContcar, domain.FilePoscar),
	}
	if c.halfKpts {
		orig, low, ok, err := halvedKpoints(dir)
		if err != nil {
			return nil, err
		}
		if ok {
			first = []domain.Directive{domain.SetDirective(domain.FileKpoints, low)}
			second = append(second, domain.SetDirective(domain.FileKpoints, orig))
		}
	}

	d1 := tmpl.Clone()
	d1.Final = false
	d1.Suffix = ".relax1"
	d1.Overrides = domain.Concat(tmpl.Overrides, first)

	d2 := tmpl.Clone()
	d2.Final = true
	d2.Backup = false
	d2.Suffix = ".relax2"
	d2.Overrides = domain.Concat(tmpl.Overrides, second)
	return []domain.JobDescriptor{d1, d2}, nil
}

// NewMetaGGAOptimization yields a GGA preconditioning run that writes the
// wavefunction, then a double relaxation with the meta-GGA restored.
func NewMetaGGAOptimization(dir string, tmpl domain.JobDescriptor, opts ...Option) (*Fixed, error) {
	c := newConfig(0, opts)
	inc, err := vaspio.ReadIncar(filepath.Join(dir, domain.FileIncar))
	if err != nil {
		return nil, fmt.Errorf("failed to read INCAR: %w", err)
	}

	pre := tmpl.Clone()
	pre.Final = false
	pre.Suffix = ".precondition"
	pre.Overrides = domain.Concat(tmpl.Overrides, []domain.Directive{
		domain.SetDirective(domain.FileIncar, map[string]any{"METAGGA": nil, "LWAVE": true, "NSW": 0}),
	})

	pair, err := doubleRelaxation(dir, tmpl, c)
	if err != nil {
		return nil, err
	}
	// The preconditioning run already backed up the original inputs.
	pair[0].Backup = false
	pair[0].Overrides = domain.Concat(pair[0].Overrides, []domain.Directive{
		domain.SetDirective(domain.FileIncar, map[string]any{
			"METAGGA": getOr(inc, "METAGGA", "SCAN"),
			"ISTART":  1,
			"NSW":     getOr(inc, "NSW", 99),
			"LWAVE":   getOr(inc, "LWAVE", false),
		}),
		domain.CopyDirective(domain.FileContcar, domain.FilePoscar),
	})

	return build(append([]domain.JobDescriptor{pre}, pair...), c), nil
}

func getOr(inc *vaspio.Incar, key string, def any) any {
	if v, ok := inc.Get(key); ok {
		return v
	}
	return def
}

// halvedKpoints returns the KPOINTS mapping of dir and its halved grid. ok is
// false when KPOINTS or POSCAR is missing, in which case nothing is halved.
func halvedKpoints(dir string) (orig, low map[string]any, ok bool, err error) {
	kpath := filepath.Join(dir, domain.FileKpoints)
	if !fsutil.Exists(kpath) || !fsutil.Exists(filepath.Join(dir, domain.FilePoscar)) {
		return nil, nil, false, nil
	}
	k, err := vaspio.ReadKpoints(kpath)
	if err != nil {
		return nil, nil, false, err
	}
	if orig, err = k.Map(); err != nil {
		return nil, nil, false, err
	}
	if low, err = k.Halved(false).Map(); err != nil {
		return nil, nil, false, err
	}
	return orig, low, true, nil
}

// Chain yields the jobs of each sequence in turn.
func Chain(seqs ...ports.Sequence) ports.Sequence {
	return &chain{seqs: seqs}
}

type chain struct {
	seqs []ports.Sequence
}

func (c *chain) Next(ctx context.Context) (ports.Job, bool, error) {
	for len(c.seqs) > 0 {
		j, ok, err := c.seqs[0].Next(ctx)
		if err != nil || ok {
			return j, ok, err
		}
		c.seqs = c.seqs[1:]
	}
	return nil, false, nil
}
