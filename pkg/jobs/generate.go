package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
)

// InputSet writes a fresh set of solver inputs for a structure into dir.
type InputSet interface {
	Write(ctx context.Context, s *vaspio.Structure, dir string) error
}

// GenerateInputJob regenerates the inputs of dir from its relaxed structure.
// It runs in-process: Run returns an already finished handle.
type GenerateInputJob struct {
	set InputSet
	// contcarOnly refuses to fall back to POSCAR when no CONTCAR exists.
	contcarOnly bool
	env         env
	life        domain.Lifecycle
}

// NewGenerateInputJob creates a job writing inputs through set. With
// contcarOnly unset, POSCAR is used when the run left no CONTCAR.
func NewGenerateInputJob(set InputSet, contcarOnly bool, opts ...Option) *GenerateInputJob {
	return &GenerateInputJob{set: set, contcarOnly: contcarOnly, env: newEnv(opts)}
}

// Name implements ports.Job.
func (j *GenerateInputJob) Name() string { return "generate" }

// State returns the lifecycle position of the job in dir.
func (j *GenerateInputJob) State(dir string) domain.JobState {
	return j.life.State(dir)
}

// Setup implements ports.Job. There is nothing to prepare.
func (j *GenerateInputJob) Setup(_ context.Context, dir string) error {
	if err := j.life.BeginSetup(dir); err != nil {
		return err
	}
	j.life.SetupDone(dir)
	return nil
}

// Run writes the new inputs synchronously. A failed run can be retried.
func (j *GenerateInputJob) Run(ctx context.Context, dir string) (ports.Handle, error) {
	if err := j.life.BeginRun(dir); err != nil {
		return nil, err
	}
	from, err := j.generate(ctx, dir)
	if err != nil {
		j.life.AbortRun(dir)
		return nil, err
	}
	j.env.logger.Info("inputs generated", "dir", dir, "from", from)
	return doneHandle{}, nil
}

func (j *GenerateInputJob) generate(ctx context.Context, dir string) (string, error) {
	path := filepath.Join(dir, domain.FileContcar)
	if !fsutil.Exists(path) {
		path = filepath.Join(dir, domain.FilePoscar)
		if j.contcarOnly || !fsutil.Exists(path) {
			return "", fmt.Errorf("%w: no CONTCAR or POSCAR in %s", domain.ErrMissingStructure, dir)
		}
	}
	s, err := vaspio.ReadPoscar(path)
	if err != nil {
		return "", err
	}
	if err := j.set.Write(ctx, s, dir); err != nil {
		return "", fmt.Errorf("failed to write inputs: %w", err)
	}
	return filepath.Base(path), nil
}

// Postprocess implements ports.Job.
func (j *GenerateInputJob) Postprocess(_ context.Context, dir string) error {
	if err := j.life.BeginPostprocess(dir); err != nil {
		return err
	}
	j.life.PostprocessDone(dir)
	return nil
}

// Terminate implements ports.Job. Generation cannot be interrupted.
func (j *GenerateInputJob) Terminate(context.Context, string) {}

type doneHandle struct{}

func (doneHandle) Pid() int    { return 0 }
func (doneHandle) Wait() error { return nil }

// Overlay is an InputSet that keeps the existing inputs of a directory and
// replaces the structure, merging Incar into INCAR and writing Kpoints when set.
type Overlay struct {
	Incar   map[string]any
	Kpoints *vaspio.Kpoints
}

// Write implements InputSet.
func (o Overlay) Write(_ context.Context, s *vaspio.Structure, dir string) error {
	if err := s.WriteFile(filepath.Join(dir, domain.FilePoscar)); err != nil {
		return err
	}
	if len(o.Incar) > 0 {
		path := filepath.Join(dir, domain.FileIncar)
		inc := vaspio.NewIncar()
		if fsutil.Exists(path) {
			var err error
			if inc, err = vaspio.ReadIncar(path); err != nil {
				return err
			}
		}
		inc.Merge(o.Incar)
		if err := inc.WriteFile(path); err != nil {
			return err
		}
	}
	if o.Kpoints != nil {
		return o.Kpoints.WriteFile(filepath.Join(dir, domain.FileKpoints))
	}
	return nil
}
