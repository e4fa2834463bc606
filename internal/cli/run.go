package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/tui"
	httpAdapter "github.com/aretw0/strata/pkg/adapters/http"
	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/aretw0/strata/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RunOptions contains all the configuration for the run and serve commands.
type RunOptions struct {
	Dir     string
	Recipe  string
	Library string
	Solvers string

	// SolversExplicit is set when the solver registry path came from a flag.
	SolversExplicit bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	Procfs        string

	Listen string
	// Linger keeps the status server up after the sequence ends, until ctx is done.
	Linger bool

	WallTime time.Duration
	Retries  int

	LogLevel  string
	LogFormat string
	Quiet     bool
}

// Run resolves the recipe and runs its chain in opts.Dir until it ends or
// ctx is cancelled.
func Run(ctx context.Context, opts RunOptions, stdout, stderr io.Writer) error {
	logger, err := createLogger(stderr, opts.LogLevel, opts.LogFormat, opts.Quiet)
	if err != nil {
		return err
	}

	backends, err := setupBackends(opts, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	solvers, err := process.LoadSolvers(solversPath(opts.Solvers, opts.SolversExplicit, opts.Dir, opts.Library))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	streams := httpAdapter.NewStreamManager()
	defer streams.Close()

	hooks := metrics.Hooks().
		Merge(streams.Hooks()).
		Merge(observability.LogHooks(logger))
	if !opts.Quiet {
		hooks = hooks.Merge(domain.LifecycleHooks{
			OnJobSetup: func(_ context.Context, e *domain.JobEvent) {
				tui.StepHeader(stdout, e.Step, e.JobName, e.Dir)
			},
		})
	}

	engOpts := []strata.Option{
		strata.WithLogger(logger),
		strata.WithSolvers(solvers),
		strata.WithMarkerStore(backends.Markers),
		strata.WithLocker(backends.Lease),
		strata.WithLifecycleHooks(hooks),
		strata.WithWallTime(opts.WallTime),
		strata.WithSetupRetries(opts.Retries),
	}
	if backends.Table != nil {
		engOpts = append(engOpts, strata.WithProcessTable(backends.Table))
	}
	eng, err := strata.New(opts.Library, engOpts...)
	if err != nil {
		return err
	}

	r, err := eng.Recipe(opts.Recipe)
	if err != nil {
		return err
	}
	seq, err := eng.Sequence(opts.Dir, r)
	if err != nil {
		return err
	}
	run := eng.NewRunner(r)

	if !opts.Quiet {
		tui.PrintBanner(stdout, strata.Version)
		printSystemMessage(stdout, "Running '%s' (%s) in %s", r.ID, r.Kind, opts.Dir)
	}

	var srv *http.Server
	if opts.Listen != "" {
		srv, err = startServer(opts.Listen, run, backends, reg, streams, logger)
		if err != nil {
			return err
		}
		if !opts.Quiet {
			printSystemMessage(stdout, "Status server on http://%s", srv.Addr)
		}
	}

	runErr := run.Run(ctx, opts.Dir, seq)
	logCompletion(stdout, run.Status(), runErr, context.Cause(ctx), opts.Quiet)

	if srv != nil {
		if opts.Linger && ctx.Err() == nil {
			if !opts.Quiet {
				printSystemMessage(stdout, "Sequence over; serving final status until interrupted.")
			}
			<-ctx.Done()
		}
		shutdown(srv, logger)
	}
	return runErr
}

func startServer(addr string, run *runner.Runner, b *Backends, reg *prometheus.Registry, streams *httpAdapter.StreamManager, logger *slog.Logger) (*http.Server, error) {
	handler := httpAdapter.NewHandler(run,
		httpAdapter.WithMarkers(b.Markers),
		httpAdapter.WithGatherer(reg),
		httpAdapter.WithStreams(streams),
		httpAdapter.WithVersion(strata.Version),
		httpAdapter.WithLogger(logger),
	)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Addr: ln.Addr().String(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", "err", err)
		}
	}()
	return srv, nil
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown did not complete", "err", err)
		_ = srv.Close()
	}
}

func logCompletion(w io.Writer, st runner.Status, err, cause error, quiet bool) {
	if quiet {
		return
	}
	switch {
	case err == nil:
		printSystemMessage(w, "Done after %d job(s).", st.Step)
	case errors.Is(err, context.Canceled):
		if cause == nil || errors.Is(cause, context.Canceled) {
			printSystemMessage(w, "Interrupted at job %d (%s).", st.Step, st.Job)
			return
		}
		printSystemMessage(w, "Interrupted at job %d (%s): %v.", st.Step, st.Job, cause)
	default:
		printSystemMessage(w, "Failed at job %d (%s): %v", st.Step, st.Job, err)
	}
}
