package runner

import (
	"slices"
	"sync"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Phase is where the runner stands within the current job.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSetup       Phase = "setup"
	PhaseRunning     Phase = "running"
	PhasePostprocess Phase = "postprocess"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// JobRecord summarizes a finished job.
type JobRecord struct {
	Step     int           `json:"step"`
	Job      string        `json:"job"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of a Runner.
type Status struct {
	Dir       string      `json:"dir,omitempty"`
	Phase     Phase       `json:"phase"`
	Step      int         `json:"step"`
	Job       string      `json:"job,omitempty"`
	Pid       int         `json:"pid,omitempty"`
	StartedAt time.Time   `json:"started_at,omitzero"`
	JobSince  time.Time   `json:"job_since,omitzero"`
	Error     string      `json:"error,omitempty"`
	History   []JobRecord `json:"history"`
}

// SampleSource is implemented by sequences that record lattice samples.
type SampleSource interface {
	Samples() []domain.LatticeSample
}

type statusBoard struct {
	mu  sync.RWMutex
	st  Status
	seq ports.Sequence
}

func (b *statusBoard) begin(dir string, seq ports.Sequence, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = Status{Dir: dir, Phase: PhaseIdle, StartedAt: now, History: []JobRecord{}}
	b.seq = seq
}

func (b *statusBoard) jobStarted(step int, name string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Step, b.st.Job, b.st.Pid, b.st.JobSince = step, name, 0, now
}

func (b *statusBoard) phase(p Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Phase = p
}

func (b *statusBoard) running(pid int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Phase, b.st.Pid = PhaseRunning, pid
}

func (b *statusBoard) jobFinished(d time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := JobRecord{Step: b.st.Step, Job: b.st.Job, Duration: d}
	if err != nil {
		rec.Error = err.Error()
	}
	b.st.History = append(b.st.History, rec)
	b.st.Pid = 0
}

func (b *statusBoard) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Phase = PhaseDone
	if err != nil {
		b.st.Phase = PhaseFailed
		b.st.Error = err.Error()
	}
}

// Status returns a snapshot of the current or last run.
func (r *Runner) Status() Status {
	r.status.mu.RLock()
	defer r.status.mu.RUnlock()
	st := r.status.st
	if st.Phase == "" {
		st.Phase = PhaseIdle
	}
	st.History = slices.Clone(st.History)
	if st.History == nil {
		st.History = []JobRecord{}
	}
	return st
}

// Samples returns the lattice samples of the current sequence, if it records any.
func (r *Runner) Samples() ([]domain.LatticeSample, bool) {
	r.status.mu.RLock()
	seq := r.status.seq
	r.status.mu.RUnlock()
	src, ok := seq.(SampleSource)
	if !ok {
		return nil, false
	}
	return src.Samples(), true
}
