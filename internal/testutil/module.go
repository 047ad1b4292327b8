// Package testutil provides fakes shared by collector package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/apm-collector/internal/module"
)

// StaticProvider is a configurable module provider for tests.
type StaticProvider struct {
	ModuleName   string
	ProviderName string
	Bindings     map[module.ServiceKey]any
	Required     []string

	// Optional hooks
	OnPrepare  func(ctx context.Context, b *module.Binder) error
	OnStart    func(ctx context.Context, m *module.Manager) error
	OnShutdown func(ctx context.Context) error

	mu        sync.Mutex
	events    *[]string
	prepared  bool
	started   bool
	stopCalls int
}

// NewStaticProvider creates a provider named name that binds bindings.
// Events are appended to log, when non-nil, as "<module>:<phase>".
func NewStaticProvider(name string, bindings map[module.ServiceKey]any, log *[]string, requires ...string) *StaticProvider {
	if bindings == nil {
		bindings = map[module.ServiceKey]any{}
	}
	return &StaticProvider{
		ModuleName:   name,
		ProviderName: "static",
		Bindings:     bindings,
		Required:     requires,
		events:       log,
	}
}

func (p *StaticProvider) Module() string { return p.ModuleName }
func (p *StaticProvider) Name() string   { return p.ProviderName }

func (p *StaticProvider) Services() []module.ServiceKey {
	keys := make([]module.ServiceKey, 0, len(p.Bindings))
	for key := range p.Bindings {
		keys = append(keys, key)
	}
	return keys
}

func (p *StaticProvider) Requires() []string { return p.Required }

func (p *StaticProvider) Prepare(ctx context.Context, b *module.Binder) error {
	p.record("prepare")
	if p.OnPrepare != nil {
		return p.OnPrepare(ctx, b)
	}
	for key, impl := range p.Bindings {
		if err := b.Bind(key, impl); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.prepared = true
	p.mu.Unlock()
	return nil
}

func (p *StaticProvider) Start(ctx context.Context, m *module.Manager) error {
	p.record("start")
	if p.OnStart != nil {
		if err := p.OnStart(ctx, m); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	return nil
}

func (p *StaticProvider) Shutdown(ctx context.Context) error {
	p.record("shutdown")
	p.mu.Lock()
	p.stopCalls++
	p.mu.Unlock()
	if p.OnShutdown != nil {
		return p.OnShutdown(ctx)
	}
	return nil
}

// Started reports whether Start completed.
func (p *StaticProvider) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// ShutdownCalls returns how many times Shutdown ran.
func (p *StaticProvider) ShutdownCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}

func (p *StaticProvider) record(phase string) {
	if p.events == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.events = append(*p.events, p.ModuleName+":"+phase)
}
