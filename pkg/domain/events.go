package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventJobSetup       EventType = "job_setup"
	EventJobStart       EventType = "job_start"
	EventJobFinish      EventType = "job_finish"
	EventJobTerminate   EventType = "job_terminate"
	EventSequenceFinish EventType = "sequence_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Dir       string    `json:"dir"`
}

// JobEvent describes one lifecycle transition of a job inside a sequence.
type JobEvent struct {
	EventBase
	Step     int           `json:"step"`
	JobName  string        `json:"job_name"`
	Pid      int           `json:"pid,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// SequenceEvent is emitted once a sequence is exhausted or fails.
type SequenceEvent struct {
	EventBase
	Steps int   `json:"steps"`
	Err   error `json:"-"`
}

// LifecycleHooks defines callbacks for runner observability.
type LifecycleHooks struct {
	OnJobSetup       func(context.Context, *JobEvent)
	OnJobStart       func(context.Context, *JobEvent)
	OnJobFinish      func(context.Context, *JobEvent)
	OnJobTerminate   func(context.Context, *JobEvent)
	OnSequenceFinish func(context.Context, *SequenceEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnJobSetup:       chainJob(h.OnJobSetup, other.OnJobSetup),
		OnJobStart:       chainJob(h.OnJobStart, other.OnJobStart),
		OnJobFinish:      chainJob(h.OnJobFinish, other.OnJobFinish),
		OnJobTerminate:   chainJob(h.OnJobTerminate, other.OnJobTerminate),
		OnSequenceFinish: chainSequence(h.OnSequenceFinish, other.OnSequenceFinish),
	}
}

func chainJob(a, b func(context.Context, *JobEvent)) func(context.Context, *JobEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *JobEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainSequence(a, b func(context.Context, *SequenceEvent)) func(context.Context, *SequenceEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *SequenceEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
