package recipe

import (
	"fmt"
	"slices"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/sequence"
)

// UseSolver fills the commands from a registry entry where the recipe left
// them empty.
func (r *Recipe) UseSolver(command, gammaCommand []string) {
	if len(r.Command) == 0 {
		r.Command = slices.Clone(command)
	}
	if len(r.GammaCommand) == 0 {
		r.GammaCommand = slices.Clone(gammaCommand)
	}
}

// Descriptor returns the job template shared by every step of the chain.
func (r *Recipe) Descriptor() domain.JobDescriptor {
	var d domain.JobDescriptor
	if r.Kind == KindNEB {
		d = domain.NewNEBDescriptor(r.Command...)
	} else {
		d = domain.NewDescriptor(r.Command...)
	}
	d.GammaCommand = slices.Clone(r.GammaCommand)
	d.AutoNpar = r.AutoNpar
	d.AutoGamma = r.AutoGamma
	d.AutoContinue = r.AutoContinue
	d.CopyMagmom = r.CopyMagmom
	d.UpdateIncar = r.UpdateIncar
	d.Backup = r.Backup
	d.Suffix = r.Suffix
	d.HalfKpts = r.HalfKpts
	d.Overrides = slices.Clone(r.SettingsOverride)
	return d
}

// SequenceOptions maps the recipe parameters onto sequence options.
func (r *Recipe) SequenceOptions() []sequence.Option {
	opts := []sequence.Option{
		sequence.WithEdiffg(r.Ediffg),
		sequence.WithHalfKptsFirstRelax(r.HalfKptsFirstRelax),
		sequence.WithVolChangeTol(r.VolChangeTol),
		sequence.WithAtomRelax(r.AtomRelax),
		sequence.WithAlgo(sequence.Algo(r.Algo)),
	}
	if r.MaxSteps > 0 {
		opts = append(opts, sequence.WithMaxSteps(r.MaxSteps))
	}
	return opts
}

// Build returns the chain for dir. opts are applied after the recipe's own
// options, so callers can add a logger or job options.
func (r *Recipe) Build(dir string, opts ...sequence.Option) (ports.Sequence, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("%w: no command for solver %q", ErrInvalidRecipe, r.Solver)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	tmpl := r.Descriptor()
	all := append(r.SequenceOptions(), opts...)

	var (
		seq ports.Sequence
		err error
	)
	switch r.Kind {
	case KindSingle:
		seq = sequence.Single(tmpl, all...)
	case KindNEB:
		seq = sequence.SingleNEB(tmpl, all...)
	case KindDoubleRelaxation:
		seq, err = sequence.NewDoubleRelaxation(dir, tmpl, all...)
	case KindMetaGGA:
		seq, err = sequence.NewMetaGGAOptimization(dir, tmpl, all...)
	case KindFullOptimization:
		seq = sequence.NewFullOptimization(dir, tmpl, all...)
	case KindConstrained:
		seq, err = sequence.NewConstrainedOptimization(dir, tmpl, r.Direction, r.InitialStrain, all...)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecipe, r.Kind)
	}
	if err != nil {
		return nil, err
	}

	if r.Generate != nil {
		gen := jobs.NewGenerateInputJob(jobs.Overlay{Incar: r.Generate.Incar}, r.Generate.ContcarOnly)
		seq = sequence.Chain(seq, sequence.Of(gen))
	}
	return seq, nil
}
