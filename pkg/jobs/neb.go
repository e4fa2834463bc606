package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/internal/modder"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
)

// NEBJob runs a multi-image (nudged elastic band) calculation. Images live in
// numerically named subdirectories; the first and last are fixed end points.
type NEBJob struct {
	desc  domain.JobDescriptor
	env   env
	life  domain.Lifecycle
	steps setupSteps
}

// NewNEBJob builds a multi-image job from desc.
func NewNEBJob(desc domain.JobDescriptor, opts ...Option) *NEBJob {
	return &NEBJob{desc: desc.Clone(), env: newEnv(opts)}
}

// Name returns the suffix without its leading dot, or "neb".
func (j *NEBJob) Name() string {
	if j.desc.Suffix == "" {
		return "neb"
	}
	return jobName(j.desc.Suffix)
}

// State returns the lifecycle position of the job in dir.
func (j *NEBJob) State(dir string) domain.JobState {
	return j.life.State(dir)
}

// ImageDirs returns the image directories of dir sorted numerically, and the
// interior images between the two end points.
func ImageDirs(dir string) (all, interior []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	type image struct {
		n    int
		path string
	}
	var images []image
	for _, e := range entries {
		if !e.IsDir() || !isDigits(e.Name()) {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		images = append(images, image{n: n, path: filepath.Join(dir, e.Name())})
	}
	slices.SortFunc(images, func(a, b image) int { return a.n - b.n })
	for _, im := range images {
		all = append(all, im.path)
	}
	if len(all) > 2 {
		interior = all[1 : len(all)-1]
	}
	return all, interior, nil
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

// Setup backs up the shared inputs and every image POSCAR, halves the k-point
// grid when asked, tunes NPAR and resumes from a read-only STOPCAR. Backup and
// halving happen once per directory, however often Setup is retried.
func (j *NEBJob) Setup(ctx context.Context, dir string) error {
	if err := j.life.BeginSetup(dir); err != nil {
		return err
	}
	log := j.env.logger.With("job", j.Name(), "dir", dir)

	images, interior, err := ImageDirs(dir)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	if j.desc.Backup {
		err := j.steps.once(dir, stepBackup, func() error {
			if err := backupFiles(dir, domain.NEBInputFiles, log); err != nil {
				return err
			}
			for _, img := range images {
				if err := backupFiles(img, []string{domain.FilePoscar}, log); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if j.desc.HalfKpts {
		if err := j.steps.once(dir, stepHalve, func() error { return halveKpoints(dir) }); err != nil {
			return fmt.Errorf("failed to halve k-points: %w", err)
		}
	}

	if j.desc.AutoNpar {
		tuneIncar(dir, j.env.cores(), log)
	}

	if j.desc.AutoContinue {
		resumed, err := resumeFromStopcar(dir, interior)
		if err != nil {
			return err
		}
		if resumed {
			log.Info("resuming from read-only STOPCAR", "images", len(interior))
		}
	}

	if err := modder.Apply(dir, j.desc.Overrides); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}
	j.life.SetupDone(dir)
	return nil
}

func halveKpoints(dir string) error {
	path := filepath.Join(dir, domain.FileKpoints)
	if !fsutil.Exists(path) {
		return nil
	}
	k, err := vaspio.ReadKpoints(path)
	if err != nil {
		return err
	}
	return k.Halved(true).WriteFile(path)
}

// resumeFromStopcar removes a read-only STOPCAR left by a wall-time stop and
// moves every interior image forward to its relaxed structure.
func resumeFromStopcar(dir string, interior []string) (bool, error) {
	stopcar := filepath.Join(dir, domain.FileStopcar)
	info, err := os.Stat(stopcar)
	if err != nil || info.Mode().Perm()&0o200 != 0 {
		return false, nil
	}
	if err := os.Chmod(stopcar, 0o644); err != nil {
		return false, fmt.Errorf("failed to unlock STOPCAR: %w", err)
	}
	if err := os.Remove(stopcar); err != nil {
		return false, fmt.Errorf("failed to remove STOPCAR: %w", err)
	}
	for _, img := range interior {
		if err := fsutil.CopyFile(filepath.Join(img, domain.FileContcar), filepath.Join(img, domain.FilePoscar)); err != nil {
			return true, fmt.Errorf("failed to advance image %s: %w", filepath.Base(img), err)
		}
	}
	return true, nil
}

// Run launches the solver in dir.
func (j *NEBJob) Run(ctx context.Context, dir string) (ports.Handle, error) {
	if err := j.life.BeginRun(dir); err != nil {
		return nil, err
	}
	log := j.env.logger.With("job", j.Name(), "dir", dir)
	cmd, err := selectCommand(j.desc, dir, j.env.lookPath)
	if err != nil {
		log.Warn("gamma-point check failed, using default command", "err", err)
	}
	log.Info("running solver", "cmd", strings.Join(cmd, " "))
	h, err := j.env.launcher.Start(ctx, cmd, dir, j.desc.OutputFile, j.desc.StderrFile)
	if err != nil {
		j.life.AbortRun(dir)
		return nil, err
	}
	return h, nil
}

// Postprocess suffixes the interior images' outputs and the shared top-level files.
func (j *NEBJob) Postprocess(_ context.Context, dir string) error {
	if err := j.life.BeginPostprocess(dir); err != nil {
		return err
	}
	_, interior, err := ImageDirs(dir)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	for _, img := range interior {
		if err := applySuffix(img, domain.NEBImageOutputFiles, j.desc.Suffix, j.desc.Final); err != nil {
			return err
		}
	}
	outputs := append(slices.Clone(domain.NEBOutputFiles), j.desc.OutputFile)
	if err := applySuffix(dir, outputs, j.desc.Suffix, j.desc.Final); err != nil {
		return err
	}
	j.life.PostprocessDone(dir)
	return nil
}

// Terminate kills the solver running in dir.
func (j *NEBJob) Terminate(ctx context.Context, dir string) {
	if !j.life.MarkTerminated(dir) {
		return
	}
	j.env.terminator.Terminate(ctx, dir, j.desc.Command, j.desc.GammaCommand)
}
