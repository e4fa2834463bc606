package domain

import "slices"

// JobDescriptor is the configuration a concrete job is built from.
// Generators create one per step; a job never mutates its descriptor.
type JobDescriptor struct {
	// Command is the solver invocation, e.g. ["mpirun", "vasp_std"].
	Command []string
	// GammaCommand is used instead of Command for gamma-point-only runs when set.
	GammaCommand []string

	OutputFile string
	StderrFile string

	// Suffix is appended to output files on postprocess, e.g. ".relax1".
	Suffix string
	// Final jobs move outputs to their suffixed names; others copy them.
	Final  bool
	Backup bool

	// Overrides are applied at the end of setup.
	Overrides []Directive

	AutoNpar   bool
	AutoGamma  bool
	CopyMagmom bool
	// UpdateIncar back-fills INCAR keys from the previous run's resolved parameters.
	UpdateIncar bool

	// AutoContinue enables continuation markers. ContinueActions replaces the
	// default continuation directives when non-empty.
	AutoContinue    bool
	ContinueActions []Directive

	// HalfKpts halves the k-point grid before a multi-image run.
	HalfKpts bool
}

// NewDescriptor returns the defaults of a standard job for cmd.
func NewDescriptor(cmd ...string) JobDescriptor {
	return JobDescriptor{
		Command:    slices.Clone(cmd),
		OutputFile: DefaultOutputFile,
		StderrFile: DefaultStderrFile,
		Final:      true,
		Backup:     true,
		AutoGamma:  true,
	}
}

// NewNEBDescriptor returns the defaults of a multi-image job for cmd.
func NewNEBDescriptor(cmd ...string) JobDescriptor {
	d := NewDescriptor(cmd...)
	d.OutputFile = DefaultNEBOutputFile
	d.StderrFile = DefaultNEBStderrFile
	d.AutoNpar = true
	return d
}

// Clone returns a deep copy so generators can derive per-step descriptors
// from a shared template.
func (d JobDescriptor) Clone() JobDescriptor {
	c := d
	c.Command = slices.Clone(d.Command)
	c.GammaCommand = slices.Clone(d.GammaCommand)
	c.Overrides = slices.Clone(d.Overrides)
	c.ContinueActions = slices.Clone(d.ContinueActions)
	return c
}
