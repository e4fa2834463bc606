package sequence

import (
	"log/slog"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/jobs"
)

// Algo selects how the constrained optimization proposes the next lattice length.
type Algo string

const (
	AlgoBFGS      Algo = "bfgs"      // quadratic fit once four samples exist, bisection otherwise
	AlgoBisection Algo = "bisection" // midpoint between the best sample and its better neighbor
)

type config struct {
	logger    *slog.Logger
	jobOpts   []jobs.Option
	ediffg    float64
	halfKpts  bool
	volTol    float64
	maxSteps  int
	atomRelax bool
	algo      Algo
}

// Option configures a sequence.
type Option func(*config)

// WithLogger sets the sequence logger. It is also handed to every job built.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithJobOptions passes options to every job the sequence builds.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(c *config) { c.jobOpts = append(c.jobOpts, opts...) }
}

// WithEdiffg sets the force criterion of the follow-up relaxations
// (default -0.05). Zero leaves EDIFFG untouched.
func WithEdiffg(v float64) Option {
	return func(c *config) { c.ediffg = v }
}

// WithHalfKptsFirstRelax halves the k-point grid of the first relaxation and
// restores it for the second.
func WithHalfKptsFirstRelax(on bool) Option {
	return func(c *config) { c.halfKpts = on }
}

// WithVolChangeTol sets the relative volume change below which a full
// optimization stops (default 0.02).
func WithVolChangeTol(v float64) Option {
	return func(c *config) { c.volTol = v }
}

// WithMaxSteps bounds the number of jobs of a loop (default 10 for full
// optimization, 20 for the constrained loop).
func WithMaxSteps(n int) Option {
	return func(c *config) { c.maxSteps = n }
}

// WithAtomRelax relaxes ionic positions at each constrained step (default true).
func WithAtomRelax(on bool) Option {
	return func(c *config) { c.atomRelax = on }
}

// WithAlgo selects the constrained search algorithm (default AlgoBFGS).
func WithAlgo(a Algo) Option {
	return func(c *config) { c.algo = a }
}

func newConfig(defaultMaxSteps int, opts []Option) config {
	c := config{
		logger:    logging.NewNop(),
		ediffg:    -0.05,
		volTol:    0.02,
		maxSteps:  defaultMaxSteps,
		atomRelax: true,
		algo:      AlgoBFGS,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c config) jobOptions() []jobs.Option {
	return append([]jobs.Option{jobs.WithLogger(c.logger)}, c.jobOpts...)
}
