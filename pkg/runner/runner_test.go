package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/lease"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle exits when release is closed, with exitErr.
type fakeHandle struct {
	pid     int
	release chan struct{}
	once    sync.Once
	exitErr error
	kills   atomic.Int32
}

func (h *fakeHandle) Pid() int { return h.pid }

func (h *fakeHandle) Wait() error {
	<-h.release
	return h.exitErr
}

func (h *fakeHandle) stop() { h.once.Do(func() { close(h.release) }) }

func (h *fakeHandle) Kill() error {
	h.kills.Add(1)
	h.stop()
	return nil
}

// opaqueHandle hides Kill.
type opaqueHandle struct{ h *fakeHandle }

func (o opaqueHandle) Pid() int    { return o.h.Pid() }
func (o opaqueHandle) Wait() error { return o.h.Wait() }

type fakeJob struct {
	name       string
	setupFails int
	runErr     error
	exitErr    error
	postErr    error
	// block keeps the solver alive until Terminate.
	block bool
	// deaf makes Terminate miss the solver.
	deaf bool
	// opaque hands out a handle without Kill.
	opaque bool

	mu         sync.Mutex
	calls      []string
	handle     *fakeHandle
	terminated atomic.Bool
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) record(call string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, call)
}

func (j *fakeJob) Calls() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func (j *fakeJob) Setup(ctx context.Context, dir string) error {
	j.record("setup")
	if j.setupFails > 0 {
		j.setupFails--
		return errors.New("setup boom")
	}
	return nil
}

func (j *fakeJob) Run(ctx context.Context, dir string) (ports.Handle, error) {
	j.record("run")
	if j.runErr != nil {
		return nil, j.runErr
	}
	j.handle = &fakeHandle{pid: 4242, release: make(chan struct{}), exitErr: j.exitErr}
	if !j.block {
		j.handle.stop()
	}
	if j.opaque {
		return opaqueHandle{j.handle}, nil
	}
	return j.handle, nil
}

func (j *fakeJob) Postprocess(ctx context.Context, dir string) error {
	j.record("postprocess")
	if ctx.Err() != nil {
		return errors.New("postprocess got a cancelled context")
	}
	return j.postErr
}

func (j *fakeJob) Terminate(ctx context.Context, dir string) {
	j.record("terminate")
	if j.terminated.CompareAndSwap(false, true) && !j.deaf {
		j.handle.stop()
	}
}

type listSequence struct {
	jobs []ports.Job
	err  error
	i    int
}

func (s *listSequence) Next(ctx context.Context) (ports.Job, bool, error) {
	if s.i >= len(s.jobs) {
		return nil, false, s.err
	}
	j := s.jobs[s.i]
	s.i++
	return j, true, nil
}

type sampledSequence struct {
	listSequence
}

func (s *sampledSequence) Samples() []domain.LatticeSample {
	return []domain.LatticeSample{{Length: 4, Energy: -1}}
}

func newRunner(opts ...runner.Option) *runner.Runner {
	return runner.New(append([]runner.Option{runner.WithRetryDelay(time.Millisecond)}, opts...)...)
}

func TestRun_ExecutesJobsInOrder(t *testing.T) {
	a := &fakeJob{name: "relax1"}
	b := &fakeJob{name: "relax2"}
	var events []string
	var mu sync.Mutex
	rec := func(e *domain.JobEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, string(e.Type)+":"+e.JobName)
	}

	var finished *domain.SequenceEvent
	r := newRunner(runner.WithHooks(domain.LifecycleHooks{
		OnJobSetup:  func(_ context.Context, e *domain.JobEvent) { rec(e) },
		OnJobStart:  func(_ context.Context, e *domain.JobEvent) { rec(e) },
		OnJobFinish: func(_ context.Context, e *domain.JobEvent) { rec(e) },
		OnSequenceFinish: func(_ context.Context, e *domain.SequenceEvent) {
			finished = e
		},
	}))

	err := r.Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{a, b}})
	require.NoError(t, err)

	assert.Equal(t, []string{"setup", "run", "postprocess"}, a.Calls())
	assert.Equal(t, []string{"setup", "run", "postprocess"}, b.Calls())
	assert.Equal(t, []string{
		"job_setup:relax1", "job_start:relax1", "job_finish:relax1",
		"job_setup:relax2", "job_start:relax2", "job_finish:relax2",
	}, events)
	require.NotNil(t, finished)
	assert.Equal(t, 2, finished.Steps)
	assert.NoError(t, finished.Err)

	st := r.Status()
	assert.Equal(t, runner.PhaseDone, st.Phase)
	assert.Equal(t, 2, st.Step)
	require.Len(t, st.History, 2)
	assert.Equal(t, "relax2", st.History[1].Job)
	assert.Empty(t, st.History[1].Error)
}

func TestRun_RetriesSetup(t *testing.T) {
	job := &fakeJob{name: "relax1", setupFails: 2}
	r := newRunner(runner.WithSetupRetries(2))

	require.NoError(t, r.Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{job}}))
	assert.Equal(t, []string{"setup", "setup", "setup", "run", "postprocess"}, job.Calls())
}

func TestRun_GivesUpAfterRetries(t *testing.T) {
	job := &fakeJob{name: "relax1", runErr: errors.New("no such binary")}
	next := &fakeJob{name: "relax2"}
	r := newRunner(runner.WithSetupRetries(1))

	err := r.Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{job, next}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such binary")
	assert.Equal(t, []string{"setup", "run", "setup", "run"}, job.Calls())
	assert.Empty(t, next.Calls(), "the sequence stops at the failed job")
	assert.Equal(t, runner.PhaseFailed, r.Status().Phase)
}

func TestRun_SolverFailureStopsSequence(t *testing.T) {
	job := &fakeJob{name: "relax1", exitErr: errors.New("exit status 1")}
	next := &fakeJob{name: "relax2"}
	r := newRunner()

	err := r.Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{job, next}})
	require.ErrorContains(t, err, "exit status 1")
	assert.Equal(t, []string{"setup", "run", "postprocess"}, job.Calls(), "a failed job is still postprocessed")
	assert.Empty(t, next.Calls())

	st := r.Status()
	require.Len(t, st.History, 1)
	assert.Contains(t, st.History[0].Error, "exit status 1")
}

func TestRun_PostprocessFailure(t *testing.T) {
	job := &fakeJob{name: "relax1", postErr: errors.New("corrupt CONTCAR")}
	err := newRunner().Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{job}})
	require.ErrorContains(t, err, "postprocess")
	assert.ErrorContains(t, err, "corrupt CONTCAR")
}

func TestRun_SequenceError(t *testing.T) {
	seqErr := errors.New("no CONTCAR")
	err := newRunner().Run(context.Background(), t.TempDir(), &listSequence{err: seqErr})
	assert.ErrorIs(t, err, seqErr)
}

func TestRun_WallTime(t *testing.T) {
	job := &fakeJob{name: "relax1", block: true}
	var terminated atomic.Int32
	r := newRunner(
		runner.WithWallTime(50*time.Millisecond),
		runner.WithHooks(domain.LifecycleHooks{
			OnJobTerminate: func(_ context.Context, e *domain.JobEvent) {
				terminated.Add(1)
				assert.Equal(t, 4242, e.Pid)
			},
		}),
	)

	err := r.Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{job}})
	require.ErrorIs(t, err, domain.ErrWallTimeExceeded)
	assert.Equal(t, []string{"setup", "run", "terminate", "postprocess"}, job.Calls())
	assert.EqualValues(t, 1, terminated.Load())
}

func TestRun_CancelTerminatesAndPostprocesses(t *testing.T) {
	job := &fakeJob{name: "relax1", block: true}
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	r := newRunner(runner.WithHooks(domain.LifecycleHooks{
		OnJobStart: func(context.Context, *domain.JobEvent) { close(started) },
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx, t.TempDir(), &listSequence{jobs: []ports.Job{job}}) }()

	<-started
	assert.Equal(t, runner.PhaseRunning, r.Status().Phase)
	assert.Equal(t, 4242, r.Status().Pid)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}
	// The fake postprocess fails on a cancelled context, so a clean history
	// entry shows it ran detached from ctx.
	assert.Equal(t, []string{"setup", "run", "terminate", "postprocess"}, job.Calls())
	st := r.Status()
	require.Len(t, st.History, 1)
	assert.NotContains(t, st.History[0].Error, "postprocess")
}

func TestRun_KillsSolverThatSurvivesTerminate(t *testing.T) {
	job := &fakeJob{name: "relax1", block: true, deaf: true}
	r := newRunner(runner.WithWallTime(20*time.Millisecond), runner.WithKillGrace(20*time.Millisecond))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), t.TempDir(), &listSequence{jobs: []ports.Job{job}}) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, domain.ErrWallTimeExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("runner hung on a solver that ignored Terminate")
	}
	assert.EqualValues(t, 1, job.handle.kills.Load())
	assert.Equal(t, []string{"setup", "run", "terminate", "postprocess"}, job.Calls())
}

func TestRun_AbandonsUnkillableSolver(t *testing.T) {
	job := &fakeJob{name: "relax1", block: true, deaf: true, opaque: true}
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	r := newRunner(
		runner.WithKillGrace(20*time.Millisecond),
		runner.WithHooks(domain.LifecycleHooks{
			OnJobStart: func(context.Context, *domain.JobEvent) { close(started) },
		}),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx, t.TempDir(), &listSequence{jobs: []ports.Job{job}}) }()
	<-started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorContains(t, err, "did not exit")
	case <-time.After(5 * time.Second):
		t.Fatal("runner hung on a solver it cannot kill")
	}
	job.handle.stop()
}

func TestRun_HoldsDirectoryLease(t *testing.T) {
	dir := t.TempDir()
	mgr := lease.NewManager()
	job := &fakeJob{name: "relax1", block: true}

	started := make(chan struct{})
	r := newRunner(
		runner.WithLocker(mgr),
		runner.WithHooks(domain.LifecycleHooks{
			OnJobStart: func(context.Context, *domain.JobEvent) { close(started) },
		}),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), dir, &listSequence{jobs: []ports.Job{job}}) }()
	<-started

	assert.Len(t, mgr.Held(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := newRunner(runner.WithLocker(mgr)).Run(ctx, dir, &listSequence{})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a second runner must wait for the lease")

	job.Terminate(context.Background(), dir)
	require.NoError(t, <-errCh)
	assert.Empty(t, mgr.Held())
}

func TestSamples(t *testing.T) {
	r := newRunner()
	_, ok := r.Samples()
	assert.False(t, ok, "no sequence yet")

	require.NoError(t, r.Run(context.Background(), t.TempDir(), &sampledSequence{}))
	samples, ok := r.Samples()
	require.True(t, ok)
	assert.Equal(t, []domain.LatticeSample{{Length: 4, Energy: -1}}, samples)

	require.NoError(t, r.Run(context.Background(), t.TempDir(), &listSequence{}))
	_, ok = r.Samples()
	assert.False(t, ok)
}

func TestStatus_Idle(t *testing.T) {
	st := newRunner().Status()
	assert.Equal(t, runner.PhaseIdle, st.Phase)
	assert.NotNil(t, st.History)
}
