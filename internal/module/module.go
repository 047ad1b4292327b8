package module

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrModuleNotFound    = errors.New("module not found")
	ErrServiceNotBound   = errors.New("service not bound")
	ErrServiceType       = errors.New("service has unexpected type")
	ErrDependencyCycle   = errors.New("module dependency cycle")
	ErrMissingDependency = errors.New("required module not registered")
	ErrDuplicateModule   = errors.New("module already registered")
	ErrDuplicateService  = errors.New("service already bound")
	ErrUndeclaredService = errors.New("service not declared by module")
	ErrRegistryFrozen    = errors.New("module registry is frozen")
)

// ServiceKey names one service within a module.
type ServiceKey string

// Provider implements one module.
type Provider interface {
	// Module returns the module name this provider implements.
	Module() string
	// Name returns the provider name, e.g. "memory".
	Name() string
	// Services lists every service the module must bind during Prepare.
	Services() []ServiceKey
	// Requires lists the modules that must be initialized first.
	Requires() []string

	// Prepare binds service implementations. Other modules are not
	// reachable yet.
	Prepare(ctx context.Context, b *Binder) error
	// Start runs after Prepare. Required modules can be found through m.
	Start(ctx context.Context, m *Manager) error
	// Shutdown releases resources. Called in reverse start order.
	Shutdown(ctx context.Context) error
}

// Completer is implemented by providers that need to act once every module has
// started, such as listeners that begin serving after all handlers attach.
type Completer interface {
	NotifyAfterCompleted(ctx context.Context) error
}

// Binder records the services a provider binds during Prepare.
type Binder struct {
	module   string
	declared map[ServiceKey]bool
	services map[ServiceKey]any
}

func newBinder(p Provider) *Binder {
	declared := make(map[ServiceKey]bool, len(p.Services()))
	for _, key := range p.Services() {
		declared[key] = true
	}
	return &Binder{
		module:   p.Module(),
		declared: declared,
		services: make(map[ServiceKey]any, len(declared)),
	}
}

// Bind registers impl as the implementation of key.
func (b *Binder) Bind(key ServiceKey, impl any) error {
	if !b.declared[key] {
		return fmt.Errorf("%w: %s/%s", ErrUndeclaredService, b.module, key)
	}
	if _, exists := b.services[key]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateService, b.module, key)
	}
	if impl == nil {
		return fmt.Errorf("service %s/%s: implementation is nil", b.module, key)
	}
	b.services[key] = impl
	return nil
}

// missing returns the first declared service that was never bound.
func (b *Binder) missing(order []ServiceKey) (ServiceKey, bool) {
	for _, key := range order {
		if _, ok := b.services[key]; !ok {
			return key, true
		}
	}
	return "", false
}

// Handle is the read-only view of an initialized module.
type Handle struct {
	name     string
	provider string
	services map[ServiceKey]any
}

// Name returns the module name.
func (h *Handle) Name() string { return h.name }

// Provider returns the name of the provider that implements the module.
func (h *Handle) Provider() string { return h.provider }

// Service returns the implementation bound under key.
func (h *Handle) Service(key ServiceKey) (any, error) {
	svc, ok := h.services[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrServiceNotBound, h.name, key)
	}
	return svc, nil
}

// Service finds moduleName in m and returns its service key as a T.
func Service[T any](m *Manager, moduleName string, key ServiceKey) (T, error) {
	var zero T

	h, err := m.Find(moduleName)
	if err != nil {
		return zero, err
	}

	svc, err := h.Service(key)
	if err != nil {
		return zero, err
	}

	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s/%s is %T", ErrServiceType, moduleName, key, svc)
	}
	return typed, nil
}
