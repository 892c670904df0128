package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ErrSyncRunning is returned when a sync trigger arrives while a run
// is already in flight.
var ErrSyncRunning = errors.New("sync already running")

// Runner executes sync runs on a capacity-1 worker pool so a trigger
// from an HTTP request never blocks the request, and overlapping runs
// are serialized instead of racing each other.
type Runner struct {
	orch   *Orchestrator
	pool   *ants.Pool
	ctx    context.Context
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	last    *Report
}

// NewRunner creates a runner whose background runs live under ctx;
// canceling it stops in-flight pacing waits and page fetches.
func NewRunner(ctx context.Context, orch *Orchestrator, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Runner{
		orch:   orch,
		pool:   pool,
		ctx:    ctx,
		logger: logger,
	}, nil
}

// TriggerSyncAll submits a full sync to the pool and returns
// immediately. Returns ErrSyncRunning when a run is already in flight.
func (r *Runner) TriggerSyncAll() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrSyncRunning
	}
	r.running = true
	r.mu.Unlock()

	err := r.pool.Submit(func() {
		report := r.orch.SyncAll(r.ctx)

		r.mu.Lock()
		r.last = &report
		r.running = false
		r.mu.Unlock()
	})
	if err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		if errors.Is(err, ants.ErrPoolOverload) {
			return ErrSyncRunning
		}
		return err
	}

	return nil
}

// Status reports whether a run is in flight and the last completed
// report, if any.
func (r *Runner) Status() (running bool, last *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.last
}

// Close releases the worker pool. In-flight runs finish; queued work
// is not accepted afterwards.
func (r *Runner) Close() {
	r.pool.Release()
}
