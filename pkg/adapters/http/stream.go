package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
)

// StreamManager fans lifecycle events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	closed      bool
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{subscribers: make(map[chan string]struct{}), logger: logging.NewNop()}
}

// Subscribe registers a new listener. The returned func unsubscribes it.
func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if sm.closed {
		close(ch)
		return ch, func() {}
	}
	sm.subscribers[ch] = struct{}{}
	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends msg to every subscriber. Slow subscribers miss messages.
func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE client buffer full, dropping event")
		}
	}
}

// Close ends every subscription.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers {
		close(ch)
		delete(sm.subscribers, ch)
	}
	sm.closed = true
}

type wireEvent struct {
	domain.EventBase
	Step     int     `json:"step,omitempty"`
	Steps    int     `json:"steps,omitempty"`
	Job      string  `json:"job,omitempty"`
	Pid      int     `json:"pid,omitempty"`
	Duration float64 `json:"duration_seconds,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (sm *StreamManager) publish(e wireEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		sm.logger.Error("event encode failed", "err", err)
		return
	}
	sm.Broadcast(string(data))
}

// Hooks returns lifecycle callbacks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	job := func(_ context.Context, e *domain.JobEvent) {
		sm.publish(wireEvent{
			EventBase: e.EventBase,
			Step:      e.Step,
			Job:       e.JobName,
			Pid:       e.Pid,
			Duration:  e.Duration.Seconds(),
			Error:     errString(e.Err),
		})
	}
	return domain.LifecycleHooks{
		OnJobSetup:     job,
		OnJobStart:     job,
		OnJobFinish:    job,
		OnJobTerminate: job,
		OnSequenceFinish: func(_ context.Context, e *domain.SequenceEvent) {
			sm.publish(wireEvent{EventBase: e.EventBase, Steps: e.Steps, Error: errString(e.Err)})
		},
	}
}
