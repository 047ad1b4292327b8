package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
)

// Router maps worker ids to worker instances. Workers are registered while
// the pipeline is assembled; after Start the table is read-only.
type Router struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	workers map[ID]Worker
	started bool

	stopOnce sync.Once
	stopErr  error
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger, metrics *monitoring.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger:  logger.Named("router"),
		metrics: metrics,
		workers: make(map[ID]Worker),
	}
}

// Register adds w under its id.
func (r *Router) Register(w Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("%w: cannot register worker %d", ErrRouterStarted, w.ID())
	}
	if existing, ok := r.workers[w.ID()]; ok {
		return fmt.Errorf("%w: %d is %s, cannot add %s", ErrDuplicateWorker, w.ID(), existing.Name(), w.Name())
	}

	r.workers[w.ID()] = w
	r.logger.Debug("Worker registered", zap.Int("worker_id", int(w.ID())), zap.String("worker", w.Name()))
	return nil
}

// Route delivers record to worker id. An unknown id has no side effect.
func (r *Router) Route(ctx context.Context, id ID, record any) error {
	r.mu.RLock()
	w, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWorker, id)
	}

	err := w.Enqueue(ctx, record)
	r.metrics.RecordRoute(w.Name(), routeResult(err))
	return err
}

func routeResult(err error) string {
	switch {
	case err == nil:
		return monitoring.ResultAccepted
	case errors.Is(err, ErrQueueFull):
		return monitoring.ResultRejected
	case errors.Is(err, ErrWorkerStopped):
		return monitoring.ResultStopped
	default:
		return monitoring.ResultInvalid
	}
}

// Worker returns the worker registered under id.
func (r *Router) Worker(id ID) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	return w, ok
}

// IDs returns the registered ids in ascending order.
func (r *Router) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Start launches every registered worker and closes registration.
func (r *Router) Start() {
	r.mu.Lock()
	r.started = true
	workers := make([]Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	for _, w := range workers {
		w.Start()
	}
	r.logger.Info("Workers started", zap.Int("count", len(workers)))
}

// Stop drains every worker concurrently. Safe to call more than once; later
// calls return the first result.
func (r *Router) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.started = true
		workers := make([]Worker, 0, len(r.workers))
		for _, w := range r.workers {
			workers = append(workers, w)
		}
		r.mu.Unlock()

		// one worker failing to drain must not cut the others short
		var g errgroup.Group
		for _, w := range workers {
			w := w
			g.Go(func() error {
				if err := w.Stop(ctx); err != nil {
					return fmt.Errorf("stop worker %s: %w", w.Name(), err)
				}
				return nil
			})
		}
		r.stopErr = g.Wait()
		r.logger.Info("Workers stopped", zap.Int("count", len(workers)), zap.Error(r.stopErr))
	})
	return r.stopErr
}
