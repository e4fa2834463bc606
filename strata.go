package strata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/strata/internal/logging"
	loamAdapter "github.com/aretw0/strata/pkg/adapters/loam"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/jobs"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/recipe"
	"github.com/aretw0/strata/pkg/runner"
	"github.com/aretw0/strata/pkg/sequence"
)

// Version is the strata release.
var Version = "0.1.0"

// Engine resolves recipes and turns them into running job sequences.
type Engine struct {
	library  ports.RecipeLoader
	presets  ports.RecipeLoader
	solvers  map[string]process.SolverConfig
	markers  ports.MarkerStore
	locker   ports.DirectoryLocker
	table    ports.ProcessTable
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	wallTime time.Duration
	retries  int
	jobOpts  []jobs.Option
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Several calls chain.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLoader injects a recipe library, bypassing the default Loam initialization.
func WithLoader(l ports.RecipeLoader) Option {
	return func(e *Engine) {
		e.library = l
	}
}

// WithSolvers sets the solver registry recipes refer to by name.
func WithSolvers(solvers map[string]process.SolverConfig) Option {
	return func(e *Engine) {
		e.solvers = solvers
	}
}

// WithMarkerStore sets where continuation markers are kept.
func WithMarkerStore(s ports.MarkerStore) Option {
	return func(e *Engine) {
		e.markers = s
	}
}

// WithLocker sets the directory lease used by runners.
func WithLocker(l ports.DirectoryLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithProcessTable enables targeted termination through t.
func WithProcessTable(t ports.ProcessTable) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWallTime sets the default job wall time. A recipe's wall_time wins.
func WithWallTime(d time.Duration) Option {
	return func(e *Engine) {
		e.wallTime = d
	}
}

// WithSetupRetries sets how often a failed setup is retried.
func WithSetupRetries(n int) Option {
	return func(e *Engine) {
		e.retries = n
	}
}

// WithJobOptions appends options applied to every job.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(e *Engine) {
		e.jobOpts = append(e.jobOpts, opts...)
	}
}

// New initializes an Engine. When libraryPath is set and no loader is
// injected, recipes are read from a Loam repository at that path. Built-in
// presets are always available behind the library.
func New(libraryPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		presets: memory.NewLoader(recipe.Presets()),
		solvers: map[string]process.SolverConfig{},
		retries: runner.DefaultSetupRetries,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.library == nil && libraryPath != "" {
		absPath, err := filepath.Abs(libraryPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)

		// Strict mode keeps numbers as json.Number; read-only avoids the
		// sandbox loam sets up in development mode.
		repo, err := loam.Init(absPath,
			loam.WithStrict(true),
			loam.WithReadOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		eng.library = loamAdapter.New(loam.NewTypedRepository[loamAdapter.RecipeMetadata](repo))
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("library", eng.Name)
	}
	return eng, nil
}

// Recipe resolves ref: a path to a recipe file, else an ID from the library,
// else a built-in preset.
func (e *Engine) Recipe(ref string) (*recipe.Recipe, error) {
	if fi, err := os.Stat(ref); err == nil && fi.Mode().IsRegular() {
		return recipe.Load(ref)
	}

	var errs []error
	for _, l := range e.loaders() {
		data, err := l.GetRecipe(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r, err := recipe.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", ref, err)
		}
		if r.ID == "" {
			r.ID = ref
		}
		return r, nil
	}
	e.logger.Debug("recipe lookup failed", "ref", ref, "err", errors.Join(errs...))
	return nil, fmt.Errorf("%w: %s", domain.ErrRecipeNotFound, ref)
}

// Recipes lists the IDs of library recipes and presets, sorted and unique.
func (e *Engine) Recipes() ([]string, error) {
	var ids []string
	for _, l := range e.loaders() {
		list, err := l.ListRecipes()
		if err != nil {
			return nil, fmt.Errorf("failed to list recipes: %w", err)
		}
		ids = append(ids, list...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Watch reports library changes. It returns nil when the library cannot be watched.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.library.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, nil
}

func (e *Engine) loaders() []ports.RecipeLoader {
	if e.library == nil {
		return []ports.RecipeLoader{e.presets}
	}
	return []ports.RecipeLoader{e.library, e.presets}
}

// Sequence builds the chain of r for dir, filling the solver commands from
// the registry and the job collaborators from the engine.
func (e *Engine) Sequence(dir string, r *recipe.Recipe) (ports.Sequence, error) {
	procOpts := []process.Option{process.WithLogger(e.logger)}
	if r.Solver != "" {
		s, ok := e.solvers[r.Solver]
		if !ok && len(r.Command) == 0 {
			return nil, fmt.Errorf("%w: unknown solver %q", recipe.ErrInvalidRecipe, r.Solver)
		}
		if ok {
			r.UseSolver(s.Command, s.GammaCommand)
			procOpts = append(procOpts, process.WithEnv(s.Env()...))
		}
	}
	if e.table != nil {
		procOpts = append(procOpts, process.WithProcessTable(e.table))
	}

	jobOpts := []jobs.Option{
		jobs.WithLogger(e.logger),
		jobs.WithLauncher(process.NewLauncher(procOpts...)),
		jobs.WithTerminator(process.NewTerminator(procOpts...)),
	}
	if e.markers != nil {
		jobOpts = append(jobOpts, jobs.WithMarkerStore(e.markers))
	}
	jobOpts = append(jobOpts, e.jobOpts...)

	return r.Build(dir, sequence.WithLogger(e.logger), sequence.WithJobOptions(jobOpts...))
}

// NewRunner creates a runner for r carrying the engine's hooks and lease.
func (e *Engine) NewRunner(r *recipe.Recipe, opts ...runner.Option) *runner.Runner {
	wall := e.wallTime
	if r != nil && r.WallTime > 0 {
		wall = r.WallTime
	}
	all := []runner.Option{
		runner.WithLogger(e.logger),
		runner.WithHooks(e.hooks),
		runner.WithWallTime(wall),
		runner.WithSetupRetries(e.retries),
	}
	if e.locker != nil {
		all = append(all, runner.WithLocker(e.locker))
	}
	return runner.New(append(all, opts...)...)
}

// Run resolves ref and runs its chain in dir to the end.
func (e *Engine) Run(ctx context.Context, dir, ref string) error {
	r, err := e.Recipe(ref)
	if err != nil {
		return err
	}
	seq, err := e.Sequence(dir, r)
	if err != nil {
		return err
	}
	e.logger.Info("running recipe", "recipe", r.ID, "kind", r.Kind, "dir", dir)
	return e.NewRunner(r).Run(ctx, dir, seq)
}
