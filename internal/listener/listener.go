package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
)

var (
	ErrBind   = errors.New("listener bind failed")
	ErrClosed = errors.New("listener manager closed")
)

// Driver adapts one server type to the manager.
type Driver[S any] interface {
	// New builds the server for a freshly bound endpoint.
	New(host string, port int) S
	// Serve blocks until the server stops. A graceful stop returns nil.
	Serve(server S, l net.Listener) error
	// Stop shuts the server down and closes its listener.
	Stop(ctx context.Context, server S) error
}

// BindFunc opens a listening socket.
type BindFunc func(network, address string) (net.Listener, error)

// Endpoint is the shared handle for one host:port pair.
type Endpoint[S any] struct {
	host     string
	port     int
	listener net.Listener
	server   S
	serving  bool
}

func (e *Endpoint[S]) Host() string { return e.host }
func (e *Endpoint[S]) Port() int    { return e.port }

// Addr returns the bound address, which differs from Host:Port when port 0
// was requested.
func (e *Endpoint[S]) Addr() string { return e.listener.Addr().String() }

// Server returns the server attached to this endpoint.
func (e *Endpoint[S]) Server() S { return e.server }

// Option configures a Manager.
type Option func(*options)

type options struct {
	bind    BindFunc
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// WithBinder replaces net.Listen.
func WithBinder(bind BindFunc) Option {
	return func(o *options) { o.bind = bind }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// Manager shares listening endpoints between components. The first
// CreateIfAbsent for a pair binds; later calls get the same Endpoint.
type Manager[S any] struct {
	kind    string
	driver  Driver[S]
	bind    BindFunc
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	endpoints map[string]*Endpoint[S]
	started   bool
	closed    bool

	wg sync.WaitGroup
}

// NewManager creates a manager for servers of one kind, e.g. "http".
func NewManager[S any](kind string, driver Driver[S], opts ...Option) *Manager[S] {
	o := options{bind: net.Listen}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Manager[S]{
		kind:      kind,
		driver:    driver,
		bind:      o.bind,
		logger:    o.logger.Named("listener").With(zap.String("kind", kind)),
		metrics:   o.metrics,
		endpoints: make(map[string]*Endpoint[S]),
	}
}

func key(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// CreateIfAbsent returns the endpoint for host:port, binding it on first
// use. Binding happens under the manager lock, so concurrent first calls
// bind once and every caller receives the winner's endpoint. A failed bind
// stores nothing and is reported only to the caller that attempted it.
func (m *Manager[S]) CreateIfAbsent(host string, port int) (*Endpoint[S], error) {
	addr := key(host, port)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, addr)
	}
	if e, ok := m.endpoints[addr]; ok {
		return e, nil
	}

	l, err := m.bind("tcp", addr)
	if err != nil {
		m.logger.Error("Bind failed", zap.String("addr", addr), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}

	e := &Endpoint[S]{
		host:     host,
		port:     port,
		listener: l,
		server:   m.driver.New(host, port),
	}
	m.endpoints[addr] = e
	m.metrics.IncListeners(m.kind)
	m.logger.Info("Listener bound", zap.String("addr", e.Addr()))

	// endpoints created after StartAll serve right away
	if m.started {
		m.serve(e)
	}
	return e, nil
}

// Endpoints lists the bound endpoints sorted by requested address.
func (m *Manager[S]) Endpoints() []*Endpoint[S] {
	m.mu.Lock()
	defer m.mu.Unlock()

	addrs := make([]string, 0, len(m.endpoints))
	for addr := range m.endpoints {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	out := make([]*Endpoint[S], 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, m.endpoints[addr])
	}
	return out
}

// StartAll begins serving every endpoint.
func (m *Manager[S]) StartAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.started = true
	for _, e := range m.endpoints {
		m.serve(e)
	}
	return nil
}

// serve must be called with mu held.
func (m *Manager[S]) serve(e *Endpoint[S]) {
	if e.serving {
		return
	}
	e.serving = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logger.Info("Serving", zap.String("addr", e.Addr()))
		if err := m.driver.Serve(e.server, e.listener); err != nil {
			m.logger.Error("Server stopped with error", zap.String("addr", e.Addr()), zap.Error(err))
		}
	}()
}

// Close stops every server and releases every listener. Further
// CreateIfAbsent calls fail with ErrClosed.
func (m *Manager[S]) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	endpoints := make([]*Endpoint[S], 0, len(m.endpoints))
	for _, e := range m.endpoints {
		endpoints = append(endpoints, e)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, e := range endpoints {
		e := e
		g.Go(func() error {
			defer m.metrics.DecListeners(m.kind)
			if !e.serving {
				return e.listener.Close()
			}
			if err := m.driver.Stop(ctx, e.server); err != nil {
				return fmt.Errorf("stop %s: %w", e.Addr(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}

	m.logger.Info("Listeners closed", zap.Int("count", len(endpoints)))
	return err
}
