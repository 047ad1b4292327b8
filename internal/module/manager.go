package module

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Status describes one registered module.
type Status struct {
	Name        string   `json:"name"`
	Provider    string   `json:"provider"`
	Requires    []string `json:"requires"`
	Initialized bool     `json:"initialized"`
}

// Manager is the process-wide module catalog. Modules are registered during
// startup, initialized once in dependency order, then read concurrently.
type Manager struct {
	logger *zap.Logger

	initMu sync.Mutex

	mu        sync.RWMutex
	providers map[string]Provider
	modules   map[string]*Handle
	order     []string
	started   []Provider
	frozen    bool
}

// NewManager creates an empty module manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:    logger.Named("module"),
		providers: make(map[string]Provider),
		modules:   make(map[string]*Handle),
	}
}

// Register adds a provider. Only one provider per module name is allowed and
// registration closes once Init starts.
func (m *Manager) Register(p Provider) error {
	if p.Module() == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, p.Module())
	}
	if existing, ok := m.providers[p.Module()]; ok {
		return fmt.Errorf("%w: %s (provider %s)", ErrDuplicateModule, p.Module(), existing.Name())
	}

	m.providers[p.Module()] = p
	return nil
}

// Init prepares and starts every registered module in dependency order. Any
// error is fatal for the process; the caller should Shutdown and exit.
func (m *Manager) Init(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return fmt.Errorf("%w: already initialized", ErrRegistryFrozen)
	}
	m.frozen = true
	providers := make(map[string]Provider, len(m.providers))
	for name, p := range m.providers {
		providers[name] = p
	}
	m.mu.Unlock()

	order, err := startOrder(providers)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.order = order
	m.mu.Unlock()

	m.logger.Info("Initializing modules", zap.Strings("order", order))

	for _, name := range order {
		if err := m.initModule(ctx, providers[name]); err != nil {
			return err
		}
	}

	for _, name := range order {
		c, ok := providers[name].(Completer)
		if !ok {
			continue
		}
		if err := c.NotifyAfterCompleted(ctx); err != nil {
			return fmt.Errorf("module %s after completion: %w", name, err)
		}
	}

	m.logger.Info("All modules initialized", zap.Int("count", len(order)))
	return nil
}

func (m *Manager) initModule(ctx context.Context, p Provider) error {
	name := p.Module()
	logger := m.logger.With(zap.String("module", name), zap.String("provider", p.Name()))

	m.mu.Lock()
	m.started = append(m.started, p)
	m.mu.Unlock()

	b := newBinder(p)
	if err := p.Prepare(ctx, b); err != nil {
		return fmt.Errorf("prepare module %s: %w", name, err)
	}
	if key, missing := b.missing(p.Services()); missing {
		return fmt.Errorf("prepare module %s: %w: %s/%s", name, ErrServiceNotBound, name, key)
	}
	logger.Debug("Module prepared", zap.Int("services", len(b.services)))

	if err := p.Start(ctx, m); err != nil {
		return fmt.Errorf("start module %s: %w", name, err)
	}

	m.mu.Lock()
	m.modules[name] = &Handle{
		name:     name,
		provider: p.Name(),
		services: b.services,
	}
	m.mu.Unlock()

	logger.Info("Module started")
	return nil
}

// Find returns the handle of an initialized module.
func (m *Manager) Find(name string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return h, nil
}

// Has reports whether name is registered, initialized or not.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.providers[name]
	return ok
}

// Order returns the computed start order, empty before Init.
func (m *Manager) Order() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.order...)
}

// Statuses lists registered modules sorted by name.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]Status, 0, len(m.providers))
	for name, p := range m.providers {
		_, initialized := m.modules[name]
		statuses = append(statuses, Status{
			Name:        name,
			Provider:    p.Name(),
			Requires:    p.Requires(),
			Initialized: initialized,
		})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// Shutdown stops modules in reverse start order, including a module whose
// initialization failed part way. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.started = nil
	m.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		p := started[i]
		if err := p.Shutdown(ctx); err != nil {
			m.logger.Error("Module shutdown failed", zap.String("module", p.Module()), zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown module %s: %w", p.Module(), err))
			continue
		}
		m.logger.Info("Module stopped", zap.String("module", p.Module()))
	}
	return errors.Join(errs...)
}

// startOrder sorts modules so every module follows the modules it requires.
// Ties are broken by name so the order is stable across runs.
func startOrder(providers map[string]Provider) ([]string, error) {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int64, len(names))
	g := simple.NewDirectedGraph()
	for i, name := range names {
		index[name] = int64(i)
		g.AddNode(simple.Node(i))
	}

	for _, name := range names {
		for _, req := range providers[name].Requires() {
			if req == name {
				return nil, fmt.Errorf("%w: %s requires itself", ErrDependencyCycle, name)
			}
			from, ok := index[req]
			if !ok {
				return nil, fmt.Errorf("%w: %s requires %s", ErrMissingDependency, name, req)
			}
			g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(index[name])))
		}
	}

	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			var parts []string
			for _, component := range cycles {
				members := make([]string, 0, len(component))
				for _, n := range component {
					members = append(members, names[n.ID()])
				}
				parts = append(parts, strings.Join(members, " <-> "))
			}
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(parts, "; "))
		}
		return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, n := range sorted {
		order = append(order, names[n.ID()])
	}
	return order, nil
}
