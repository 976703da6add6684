package export

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Worker sizing constants.
const (
	// MinWorkers ensures at least one export can run.
	MinWorkers = 1

	// MaxWorkers caps concurrent engines (~200MB of memory each).
	MaxWorkers = 8

	// cpuDivisor leaves headroom for browser child processes.
	cpuDivisor = 2
)

// ResolveWorkerCount determines the admission limit.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolveWorkerCount(workers int) int {
	if workers > 0 {
		return workers
	}

	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Admission bounds how many exports run at once. Waiting callers give up
// when their context ends.
type Admission struct {
	next    Exporter
	sem     *semaphore.Weighted
	workers int
}

// NewAdmission wraps next with a limit of workers concurrent exports.
func NewAdmission(next Exporter, workers int) *Admission {
	workers = ResolveWorkerCount(workers)
	return &Admission{
		next:    next,
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

var _ Exporter = (*Admission)(nil)

// Workers returns the admission limit.
func (a *Admission) Workers() int {
	if a == nil {
		return 0
	}
	return a.workers
}

// Export implements Exporter. Invalid requests are rejected without waiting
// for a slot.
func (a *Admission) Export(ctx context.Context, req RenderRequest) (Artifact, error) {
	if a == nil || a.next == nil {
		return Artifact{}, NewError(KindInternal, "admission exporter not configured", nil)
	}
	if err := req.Validate(); err != nil {
		return Artifact{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		kind := KindCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return Artifact{}, NewError(kind, "waiting for export slot", err)
	}
	defer a.sem.Release(1)
	return a.next.Export(ctx, req)
}
