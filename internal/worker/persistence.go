package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
)

// Mergeable is a record that combines with other records of the same key.
// Merge must be associative and commutative and must not modify either
// operand.
type Mergeable[T any] interface {
	Key() string
	Merge(other T) T
}

// Mode selects how a flush treats data already in storage.
type Mode int

const (
	// ModeMerge reads the stored value and writes stored.Merge(buffered).
	ModeMerge Mode = iota
	// ModeOverwrite writes the buffered value without reading storage. Used
	// for write-once keys.
	ModeOverwrite
)

func (m Mode) String() string {
	if m == ModeOverwrite {
		return "overwrite"
	}
	return "merge"
}

// PersistenceConfig describes one persistence worker.
type PersistenceConfig[T Mergeable[T]] struct {
	ID      ID
	Name    string
	Mode    Mode
	DAO     storage.PersistenceDAO[T]
	Options Options
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

type bufferEntry[T any] struct {
	value    T
	attempts int
}

// PersistenceWorker aggregates records by merge key and periodically writes
// the aggregates through a DAO. The merge buffer is owned by the consumption
// goroutine; flushes run on that goroutine too.
type PersistenceWorker[T Mergeable[T]] struct {
	id      ID
	name    string
	mode    Mode
	opts    Options
	dao     storage.PersistenceDAO[T]
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics

	queue chan T
	state atomic.Int32

	// mu guards stopped; inflight counts Enqueue calls past the stopped check
	mu       sync.RWMutex
	stopped  bool
	inflight sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	buffer map[string]*bufferEntry[T]
	// added counts keys created since the last flush
	added int
}

// NewPersistenceWorker creates a worker. The DAO is fixed for the worker's
// lifetime.
func NewPersistenceWorker[T Mergeable[T]](cfg PersistenceConfig[T]) (*PersistenceWorker[T], error) {
	if cfg.DAO == nil {
		return nil, fmt.Errorf("worker %s: persistence DAO is nil", cfg.Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := cfg.Options.withDefaults()

	w := &PersistenceWorker[T]{
		id:      cfg.ID,
		name:    cfg.Name,
		mode:    cfg.Mode,
		opts:    opts,
		dao:     cfg.DAO,
		logger:  logger.Named("worker").With(zap.Int("worker_id", int(cfg.ID)), zap.String("worker", cfg.Name)),
		metrics: cfg.Metrics,
		queue:   make(chan T, opts.QueueSize),
		done:    make(chan struct{}),
		buffer:  make(map[string]*bufferEntry[T]),
	}
	// the breaker admits a trial call once per flush cycle
	w.breaker = resilience.New(cfg.Name, resilience.Settings{
		Timeout:     opts.FlushInterval,
		CallTimeout: opts.DAOTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, storage.ErrNotFound)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			w.logger.Warn("Storage circuit changed state",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return w, nil
}

// ResolveDAO finds the storage service bound under key.
func ResolveDAO[T storage.Entity](m *module.Manager, key module.ServiceKey) (storage.PersistenceDAO[T], error) {
	return module.Service[storage.PersistenceDAO[T]](m, storage.ModuleName, key)
}

func (w *PersistenceWorker[T]) ID() ID       { return w.id }
func (w *PersistenceWorker[T]) Name() string { return w.name }

func (w *PersistenceWorker[T]) State() State { return State(w.state.Load()) }

func (w *PersistenceWorker[T]) setState(s State) { w.state.Store(int32(s)) }

// Enqueue accepts a record of type T.
func (w *PersistenceWorker[T]) Enqueue(ctx context.Context, record any) error {
	rec, ok := record.(T)
	if !ok || isNil(record) {
		return fmt.Errorf("%w: %s got %T", ErrRecordType, w.name, record)
	}

	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrWorkerStopped, w.name)
	}
	w.inflight.Add(1)
	w.mu.RUnlock()
	defer w.inflight.Done()

	if w.opts.Policy == PolicyReject {
		select {
		case w.queue <- rec:
			return nil
		default:
			return fmt.Errorf("%w: %s holds %d records", ErrQueueFull, w.name, cap(w.queue))
		}
	}

	select {
	case w.queue <- rec:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue to %s: %w", w.name, ctx.Err())
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Start launches the consumption goroutine.
func (w *PersistenceWorker[T]) Start() {
	w.startOnce.Do(func() {
		w.logger.Info("Worker started",
			zap.Int("queue_size", w.opts.QueueSize),
			zap.Duration("flush_interval", w.opts.FlushInterval),
			zap.String("mode", w.mode.String()),
			zap.String("policy", w.opts.Policy.String()),
		)
		go w.run()
	})
}

// Stop closes the worker to new records, waits for Enqueue calls already
// admitted, then lets the loop drain the queue and flush once more. A worker
// that was never started is started so accepted records still reach storage.
func (w *PersistenceWorker[T]) Stop(ctx context.Context) error {
	w.Start()

	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()

		go func() {
			w.inflight.Wait()
			close(w.queue)
		}()
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain %s: %w", w.name, ctx.Err())
	}
}

func (w *PersistenceWorker[T]) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-w.queue:
			if !ok {
				w.drain()
				return
			}
			w.setState(StateReceiving)
			w.add(rec)
			if w.added > w.opts.FlushThreshold {
				w.flush(context.Background(), flushNew)
			}
			w.setState(StateIdle)

		case <-ticker.C:
			w.metrics.SetQueueDepth(w.name, len(w.queue))
			if len(w.buffer) > 0 {
				w.flush(context.Background(), flushCycle)
				w.setState(StateIdle)
			}
		}
	}
}

// add merges rec into the buffer entry of its key.
func (w *PersistenceWorker[T]) add(rec T) {
	key := rec.Key()
	if e, ok := w.buffer[key]; ok {
		e.value = e.value.Merge(rec)
		return
	}
	w.buffer[key] = &bufferEntry[T]{value: rec}
	w.added++
}

// flushKind selects which entries a flush writes and how refused calls are
// counted.
type flushKind int

const (
	// flushNew writes only keys that have never been attempted. Retries
	// stay on the flush cycle.
	flushNew flushKind = iota
	// flushCycle writes every buffered key.
	flushCycle
	// flushFinal writes every key and charges breaker refusals to the
	// retry budget, since no later cycle will pick the key up.
	flushFinal
)

// drain runs the final flush. Keys that fail are retried until they are
// saved or exhaust their budget. A pass refused by an open breaker waits
// one flush interval so the breaker can admit a trial call.
func (w *PersistenceWorker[T]) drain() {
	for len(w.buffer) > 0 {
		if refused := w.flush(context.Background(), flushFinal); refused > 0 && len(w.buffer) > 0 {
			time.Sleep(w.opts.FlushInterval)
		}
	}
	w.setState(StateStopped)
	w.metrics.SetQueueDepth(w.name, 0)
	w.logger.Info("Worker stopped")
}

// flush writes buffered keys once. Saved keys leave the buffer; failed keys
// stay with one more attempt counted and are dropped when the budget is
// spent. Calls refused by the open breaker never reached storage and cost no
// attempt outside the final drain. It returns the number of refused keys.
func (w *PersistenceWorker[T]) flush(ctx context.Context, kind flushKind) int {
	w.setState(StateFlushing)
	timer := monitoring.NewTimer(w.metrics, w.name)

	keys := make([]string, 0, len(w.buffer))
	for key, e := range w.buffer {
		if kind == flushNew && e.attempts > 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	w.added = 0

	var saved, failed, dropped, refused int
	for _, key := range keys {
		e := w.buffer[key]
		err := w.persist(ctx, e.value)
		if err == nil {
			delete(w.buffer, key)
			saved++
			continue
		}

		if isRefusal(err) {
			refused++
			if kind != flushFinal {
				continue
			}
		}
		e.attempts++
		if e.attempts >= w.opts.RetryBudget {
			delete(w.buffer, key)
			dropped++
			w.logger.Error("Dropping entry after exhausting retry budget",
				zap.String("key", key),
				zap.Int("attempts", e.attempts),
				zap.Error(err),
			)
			continue
		}
		failed++
		w.logger.Warn("Flush failed, entry kept for retry",
			zap.String("key", key),
			zap.Int("attempts", e.attempts),
			zap.Error(err),
		)
	}

	result := "success"
	if failed > 0 || dropped > 0 || refused > 0 {
		result = "partial"
	}
	duration := timer.Stop(result)

	w.metrics.AddSaved(w.name, saved)
	w.metrics.AddDropped(w.name, dropped)
	w.metrics.SetBufferSize(w.name, len(w.buffer))
	w.logger.Debug("Flush completed",
		zap.Int("saved", saved),
		zap.Int("retrying", failed),
		zap.Int("dropped", dropped),
		zap.Int("refused", refused),
		zap.Duration("duration", duration),
	)
	return refused
}

func isRefusal(err error) bool {
	return errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests)
}

// persist writes one aggregate. In merge mode the stored value, when
// present, is combined with the buffered one first. The buffered value
// itself is left untouched so a failed save can be retried without counting
// stored data twice.
func (w *PersistenceWorker[T]) persist(ctx context.Context, value T) error {
	if w.mode == ModeMerge {
		existing, err := resilience.Call(ctx, w.breaker, func(ctx context.Context) (T, error) {
			return w.dao.Get(ctx, value.Key())
		})
		switch {
		case err == nil:
			value = existing.Merge(value)
		case errors.Is(err, storage.ErrNotFound):
		default:
			w.metrics.RecordFlushError(w.name, monitoring.StageGet)
			return fmt.Errorf("get %s: %w", value.Key(), err)
		}
	}

	err := w.breaker.Do(ctx, func(ctx context.Context) error {
		return w.dao.Save(ctx, value)
	})
	if err != nil {
		w.metrics.RecordFlushError(w.name, monitoring.StageSave)
		return fmt.Errorf("save %s: %w", value.Key(), err)
	}
	return nil
}

// PersistenceFactory builds a PersistenceWorker whose DAO is resolved from
// the storage module.
type PersistenceFactory[T Mergeable[T]] struct {
	WorkerID   ID
	WorkerName string
	Mode       Mode
	DAOKey     module.ServiceKey
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics
}

func (f PersistenceFactory[T]) ID() ID       { return f.WorkerID }
func (f PersistenceFactory[T]) Name() string { return f.WorkerName }

// Create resolves the DAO and builds the worker. Resolution failures are
// fatal for the pipeline.
func (f PersistenceFactory[T]) Create(m *module.Manager, opts Options) (Worker, error) {
	dao, err := ResolveDAO[T](m, f.DAOKey)
	if err != nil {
		return nil, fmt.Errorf("create worker %s: %w", f.WorkerName, err)
	}
	w, err := NewPersistenceWorker(PersistenceConfig[T]{
		ID:      f.WorkerID,
		Name:    f.WorkerName,
		Mode:    f.Mode,
		DAO:     dao,
		Options: opts,
		Logger:  f.Logger,
		Metrics: f.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}
