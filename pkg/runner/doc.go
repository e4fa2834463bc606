/*
Package runner drives a job sequence against one working directory.

For every job the sequence yields, the Runner sets up the directory (retrying
a failed setup or launch), starts the solver, waits for it, and postprocesses.
A wall-time watchdog and context cancellation both terminate the solver
through the job, so outputs are always postprocessed. Lifecycle hooks report
each transition; Status exposes a snapshot for the status server.

# Usage

	seq, _ := sequence.NewDoubleRelaxation(dir, tmpl)
	r := runner.New(
		runner.WithLogger(logger),
		runner.WithLocker(lease.NewManager()),
		runner.WithWallTime(48*time.Hour),
	)
	if err := r.Run(ctx, dir, seq); err != nil {
		log.Fatal(err)
	}
*/
package runner
