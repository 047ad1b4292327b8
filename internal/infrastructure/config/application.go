package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedFormat is returned for application files that are neither
// YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported application file format")

// ModuleConfig selects the provider of one module and carries its settings.
type ModuleConfig struct {
	Provider string         `yaml:"provider" toml:"provider"`
	Config   map[string]any `yaml:"config" toml:"config"`
}

// Application is the module list loaded from the application file.
type Application struct {
	Modules map[string]ModuleConfig `yaml:"modules" toml:"modules"`
}

// DefaultApplication is the module set used when no application file exists:
// in-memory storage, both listeners, the analysis pipeline, the receiver and
// self telemetry.
func DefaultApplication() *Application {
	return &Application{
		Modules: map[string]ModuleConfig{
			"storage":         {Provider: "memory"},
			"analysis_metric": {Provider: "default"},
			"grpc_manager":    {Provider: "default"},
			"http_manager":    {Provider: "default"},
			"receiver":        {Provider: "default"},
			"telemetry":       {Provider: "default"},
		},
	}
}

// LoadApplication reads the application file at path. An empty path or a
// missing file yields DefaultApplication.
func LoadApplication(path string) (*Application, error) {
	if path == "" {
		return DefaultApplication(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultApplication(), nil
		}
		return nil, fmt.Errorf("read application file: %w", err)
	}

	var app Application
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &app)
	case ".toml":
		err = toml.Unmarshal(data, &app)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse application file %s: %w", path, err)
	}

	if len(app.Modules) == 0 {
		return nil, fmt.Errorf("application file %s declares no modules", path)
	}
	for name, mc := range app.Modules {
		if mc.Provider == "" {
			mc.Provider = "default"
			app.Modules[name] = mc
		}
	}
	return &app, nil
}

// Names returns the configured module names in sorted order.
func (a *Application) Names() []string {
	names := make([]string, 0, len(a.Modules))
	for name := range a.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode converts a module's loose settings map into out, a pointer to a
// settings struct with yaml tags. Fields absent from raw keep their values.
func Decode(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode module settings: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode module settings: %w", err)
	}
	return nil
}
