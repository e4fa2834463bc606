package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/strata/internal/fsutil"
	"github.com/aretw0/strata/internal/modder"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/vaspio"
)

// StandardJob runs the solver once in a single working directory.
type StandardJob struct {
	desc  domain.JobDescriptor
	env   env
	life  domain.Lifecycle
	steps setupSteps
}

// NewStandardJob builds a job from desc. The descriptor is copied; later
// changes to desc do not affect the job.
func NewStandardJob(desc domain.JobDescriptor, opts ...Option) *StandardJob {
	return &StandardJob{desc: desc.Clone(), env: newEnv(opts)}
}

// Name returns the suffix without its leading dot, or "vasp" for unsuffixed jobs.
func (j *StandardJob) Name() string {
	return jobName(j.desc.Suffix)
}

// Descriptor returns a copy of the job configuration.
func (j *StandardJob) Descriptor() domain.JobDescriptor {
	return j.desc.Clone()
}

// State returns the lifecycle position of the job in dir.
func (j *StandardJob) State(dir string) domain.JobState {
	return j.life.State(dir)
}

func (j *StandardJob) log(dir string) *slog.Logger {
	return j.env.logger.With("job", j.Name(), "dir", dir)
}

// Setup prepares dir for a run: leftovers are decompressed, inputs backed up,
// NPAR tuned, the continuation marker replayed or written, INCAR back-filled
// from the last run record, and finally the job's own directives applied.
// A retry after a failed attempt does not back up or continue a second time.
func (j *StandardJob) Setup(ctx context.Context, dir string) error {
	if err := j.life.BeginSetup(dir); err != nil {
		return err
	}
	log := j.log(dir)

	expanded, err := fsutil.DecompressDir(dir)
	if err != nil {
		return fmt.Errorf("failed to decompress leftovers: %w", err)
	}
	if len(expanded) > 0 {
		log.Info("decompressed leftovers", "files", len(expanded))
	}

	if j.desc.Backup {
		err := j.steps.once(dir, stepBackup, func() error { return backupFiles(dir, domain.InputFiles, log) })
		if err != nil {
			return err
		}
	}

	if j.desc.AutoNpar {
		tuneIncar(dir, j.env.cores(), log)
	}

	if j.desc.AutoContinue {
		// A marker written by an earlier attempt of this job is not a previous run.
		err := j.steps.once(dir, stepContinue, func() error { return j.continuation(ctx, dir, log) })
		if err != nil {
			return err
		}
	}

	if j.desc.UpdateIncar {
		if err := backfillIncar(dir); err != nil {
			log.Error("unable to update INCAR from run record", "err", err)
		}
	}

	if err := modder.Apply(dir, j.desc.Overrides); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}
	j.life.SetupDone(dir)
	return nil
}

// continuation replays an existing marker, or persists one for the next attempt.
func (j *StandardJob) continuation(ctx context.Context, dir string, log *slog.Logger) error {
	marker, err := j.env.markers.Load(ctx, dir)
	switch {
	case err == nil:
		log.Info("continuing previous run", "actions", len(marker.Actions))
		archive, err := fsutil.BackupArchive(dir, domain.PrevRunPrefix, domain.PrevRunFiles)
		if err != nil {
			return fmt.Errorf("failed to archive previous run: %w", err)
		}
		log.Debug("previous run archived", "archive", filepath.Base(archive))
		if err := modder.Apply(dir, marker.Actions); err != nil {
			return fmt.Errorf("failed to replay continuation: %w", err)
		}
		return nil
	case errors.Is(err, domain.ErrMarkerNotFound):
		actions := j.desc.ContinueActions
		if len(actions) == 0 {
			actions = domain.DefaultContinuation()
		}
		if err := j.env.markers.Save(ctx, dir, &domain.Marker{Actions: actions}); err != nil {
			return fmt.Errorf("failed to save continuation marker: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("failed to load continuation marker: %w", err)
	}
}

// Run launches the solver in dir and returns without waiting.
func (j *StandardJob) Run(ctx context.Context, dir string) (ports.Handle, error) {
	if err := j.life.BeginRun(dir); err != nil {
		return nil, err
	}
	log := j.log(dir)
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

// Postprocess suffixes the outputs, copies the final magnetic moments forward
// for non-final jobs and clears the continuation marker.
func (j *StandardJob) Postprocess(ctx context.Context, dir string) error {
	if err := j.life.BeginPostprocess(dir); err != nil {
		return err
	}
	log := j.log(dir)

	outputs := append(slices.Clone(domain.OutputFiles), j.desc.OutputFile)
	if err := applySuffix(dir, outputs, j.desc.Suffix, j.desc.Final); err != nil {
		return err
	}

	if j.desc.CopyMagmom && !j.desc.Final {
		if err := copyMagmom(dir); err != nil {
			log.Error("MAGMOM copy from OUTCAR to INCAR failed", "err", err)
		}
	}

	if err := j.env.markers.Delete(ctx, dir); err != nil {
		return fmt.Errorf("failed to remove continuation marker: %w", err)
	}
	j.life.PostprocessDone(dir)
	return nil
}

// Terminate kills the solver running in dir. Calls outside a run are no-ops.
func (j *StandardJob) Terminate(ctx context.Context, dir string) {
	if !j.life.MarkTerminated(dir) {
		return
	}
	j.env.terminator.Terminate(ctx, dir, j.desc.Command, j.desc.GammaCommand)
}

func jobName(suffix string) string {
	if name := strings.TrimPrefix(suffix, "."); name != "" {
		return name
	}
	return "vasp"
}

// tuneIncar applies TuneParallelism to the INCAR of dir. Failures are logged only.
func tuneIncar(dir string, cores int, log *slog.Logger) {
	path := filepath.Join(dir, domain.FileIncar)
	inc, err := vaspio.ReadIncar(path)
	if err != nil {
		log.Warn("skipping NPAR tuning", "err", err)
		return
	}
	if !TuneParallelism(inc, cores) {
		return
	}
	if err := inc.WriteFile(path); err != nil {
		log.Warn("failed to write tuned INCAR", "err", err)
		return
	}
	if npar, ok := inc.Int("NPAR"); ok {
		log.Debug("NPAR tuned", "npar", npar, "cores", cores)
	}
}

// backfillIncar replaces the values of keys already in INCAR with the
// parameters the solver resolved in the last run record.
func backfillIncar(dir string) error {
	run, err := vaspio.ReadVasprun(filepath.Join(dir, domain.FileVasprun))
	if err != nil {
		return err
	}
	path := filepath.Join(dir, domain.FileIncar)
	inc, err := vaspio.ReadIncar(path)
	if err != nil {
		return err
	}
	for _, k := range inc.Keys() {
		if v, ok := run.Parameters[k]; ok {
			inc.Set(k, v)
		}
	}
	return inc.WriteFile(path)
}

func copyMagmom(dir string) error {
	mags, err := vaspio.ReadMagnetization(filepath.Join(dir, domain.FileOutcar))
	if err != nil {
		return err
	}
	path := filepath.Join(dir, domain.FileIncar)
	inc, err := vaspio.ReadIncar(path)
	if err != nil {
		return err
	}
	inc.Set("MAGMOM", mags)
	return inc.WriteFile(path)
}
