package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/apm-collector/internal/module"
)

var (
	ErrUnknownWorker   = errors.New("unknown worker")
	ErrDuplicateWorker = errors.New("worker id already registered")
	ErrQueueFull       = errors.New("worker queue full")
	ErrWorkerStopped   = errors.New("worker stopped")
	ErrRecordType      = errors.New("record has wrong type for worker")
	ErrRouterStarted   = errors.New("router already started")
)

// ID is the stable identity of a worker type. Values come from a fixed
// enumeration and never change between releases.
type ID int

// State is the observable phase of a worker's consumption loop.
type State int32

const (
	StateIdle State = iota
	StateReceiving
	StateFlushing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateFlushing:
		return "flushing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Policy decides what Enqueue does when the queue is full.
type Policy int

const (
	// PolicyBlock waits for space or for the caller's context to end.
	PolicyBlock Policy = iota
	// PolicyReject fails immediately with ErrQueueFull.
	PolicyReject
)

func (p Policy) String() string {
	if p == PolicyReject {
		return "reject"
	}
	return "block"
}

// ParsePolicy parses "block" or "reject".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return PolicyBlock, nil
	case "reject":
		return PolicyReject, nil
	default:
		return PolicyBlock, fmt.Errorf("unknown backpressure policy %q", s)
	}
}

// Options tune one worker.
type Options struct {
	QueueSize      int
	FlushInterval  time.Duration
	// FlushThreshold triggers an early flush once more than this many new
	// keys were buffered since the last flush. Keys awaiting a retry do not
	// count and are only retried on the interval.
	FlushThreshold int
	// RetryBudget is the number of failed storage attempts after which a
	// key is dropped. Calls refused by the open circuit breaker are not
	// attempts.
	RetryBudget    int
	DAOTimeout     time.Duration
	Policy         Policy
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		QueueSize:      1024,
		FlushInterval:  5 * time.Second,
		FlushThreshold: 2048,
		RetryBudget:    3,
		DAOTimeout:     3 * time.Second,
		Policy:         PolicyBlock,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = d.FlushInterval
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = d.FlushThreshold
	}
	if o.RetryBudget <= 0 {
		o.RetryBudget = d.RetryBudget
	}
	if o.DAOTimeout <= 0 {
		o.DAOTimeout = d.DAOTimeout
	}
	return o
}

// Worker consumes records from its own bounded queue.
type Worker interface {
	ID() ID
	Name() string
	// Enqueue hands record to the worker according to its backpressure policy.
	Enqueue(ctx context.Context, record any) error
	// Start launches the consumption loop. Calling it again has no effect.
	Start()
	// Stop stops accepting records, flushes what was accepted and waits for
	// the loop to exit or ctx to end.
	Stop(ctx context.Context) error
	State() State
}

// Factory builds one worker type, resolving what it needs from the module
// registry.
type Factory interface {
	ID() ID
	Name() string
	Create(m *module.Manager, opts Options) (Worker, error)
}
