package export

import (
	"context"
	"fmt"
	"sync"
)

// PipelineState is a per-request pipeline state.
type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateAcquiring  PipelineState = "acquiring"
	StateAssembling PipelineState = "assembling"
	StateRendering  PipelineState = "rendering"
	StateClosing    PipelineState = "closing"
	StateDone       PipelineState = "done"
	StateFailed     PipelineState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s PipelineState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var allowedTransitions = map[PipelineState][]PipelineState{
	StateIdle:       {StateAcquiring},
	StateAcquiring:  {StateAssembling, StateClosing},
	StateAssembling: {StateRendering, StateClosing},
	StateRendering:  {StateClosing},
	StateClosing:    {StateDone},
}

// CanTransition reports whether from -> to is a legal move. Failed is
// reachable from every non-terminal state.
func CanTransition(from, to PipelineState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type stateTracker struct {
	mu       sync.Mutex
	runID    string
	current  PipelineState
	trail    []PipelineState
	observer StateObserver
	logger   Logger
}

func newStateTracker(runID string, observer StateObserver, logger Logger) *stateTracker {
	if logger == nil {
		logger = NopLogger{}
	}
	return &stateTracker{
		runID:    runID,
		current:  StateIdle,
		trail:    []PipelineState{StateIdle},
		observer: observer,
		logger:   logger,
	}
}

func (t *stateTracker) advance(ctx context.Context, to PipelineState) error {
	t.mu.Lock()
	from := t.current
	if !CanTransition(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("illegal pipeline transition %s -> %s", from, to)
	}
	t.current = to
	t.trail = append(t.trail, to)
	t.mu.Unlock()

	t.logger.Debugf("export %s: %s -> %s", t.runID, from, to)
	if t.observer != nil {
		t.observer.OnTransition(ctx, t.runID, from, to)
	}
	return nil
}

func (t *stateTracker) state() PipelineState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *stateTracker) history() []PipelineState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]PipelineState(nil), t.trail...)
}
