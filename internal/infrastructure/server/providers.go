package server

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/analysis"
	receiver "github.com/GriffinCanCode/apm-collector/internal/api/http"
	"github.com/GriffinCanCode/apm-collector/internal/grpc"
	httpmanager "github.com/GriffinCanCode/apm-collector/internal/http"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
	"github.com/GriffinCanCode/apm-collector/internal/storage/memory"
	"github.com/GriffinCanCode/apm-collector/internal/storage/natskv"
)

var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Deps are the process-scoped objects a provider may need.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Tracer  *tracing.Tracer
}

// Constructor builds one provider from its application file settings.
type Constructor func(deps Deps, raw map[string]any) (module.Provider, error)

// catalog maps module name, then provider name, to a constructor.
var catalog = map[string]map[string]Constructor{
	storage.ModuleName: {
		memory.ProviderName: newMemoryStorage,
		// a storage entry without a provider keeps data in process
		"default": newMemoryStorage,
		natskv.ProviderName: func(d Deps, raw map[string]any) (module.Provider, error) {
			return natskv.NewProvider(d.Logger, raw)
		},
	},
	analysis.ModuleName: {
		analysis.ProviderName: func(d Deps, raw map[string]any) (module.Provider, error) {
			return analysis.NewProvider(d.Logger, d.Metrics, d.Config.Pipeline, raw)
		},
	},
	grpc.ModuleName: {
		grpc.ProviderName: func(d Deps, raw map[string]any) (module.Provider, error) {
			return grpc.NewProvider(d.Logger, d.Metrics, d.Tracer, raw)
		},
	},
	httpmanager.ModuleName: {
		httpmanager.ProviderName: func(d Deps, raw map[string]any) (module.Provider, error) {
			return httpmanager.NewProvider(d.Logger, d.Metrics, d.Tracer, raw)
		},
	},
	receiver.ReceiverModule: {
		receiver.ProviderName: func(d Deps, raw map[string]any) (module.Provider, error) {
			return receiver.NewReceiver(d.Logger, raw)
		},
	},
	receiver.TelemetryModule: {
		receiver.ProviderName: func(d Deps, raw map[string]any) (module.Provider, error) {
			return receiver.NewTelemetry(d.Metrics, raw)
		},
	},
}

func newMemoryStorage(d Deps, raw map[string]any) (module.Provider, error) {
	return memory.NewProvider(d.Logger), nil
}

// lookup returns the constructor for moduleName/providerName.
func lookup(moduleName, providerName string) (Constructor, error) {
	providers, ok := catalog[moduleName]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", ErrUnknownModule, moduleName, Modules())
	}
	ctor, ok := providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s for module %s", ErrUnknownProvider, providerName, moduleName)
	}
	return ctor, nil
}

// Modules lists the module names the collector can load.
func Modules() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
