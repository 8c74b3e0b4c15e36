package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Factory builds a configuration value from a file's raw YAML. dir is the
// directory holding the file. The value is checked against Configuration
// by the registry, so factories may return anything.
type Factory func(dir string, raw []byte) (any, error)

// Registry maps configuration kinds to their factories.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry creates a Registry pre-registered with the catalog kind.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.factories[KindCatalog] = func(dir string, raw []byte) (any, error) {
		return NewCatalogConfig(dir, raw)
	}
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Load reads the YAML file at path, selects the factory named by its
// `kind` field (default "catalog"), and returns the built configuration.
// A value lacking the Configuration capability yields a *TypeError.
func (r *Registry) Load(path string) (Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	var head struct {
		Kind string `yaml:"kind"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parse configuration %s: %w", path, err)
	}
	kind := head.Kind
	if kind == "" {
		kind = KindCatalog
	}

	r.mu.Lock()
	factory, ok := r.factories[kind]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for configuration kind %q (known: %s)",
			kind, strings.Join(r.Kinds(), ", "))
	}

	v, err := factory(filepath.Dir(path), raw)
	if err != nil {
		return nil, fmt.Errorf("build %s configuration from %s: %w", kind, path, err)
	}
	return Check(kind, v)
}

// Check asserts that v provides the Configuration capability.
func Check(kind string, v any) (Configuration, error) {
	cfg, ok := v.(Configuration)
	if !ok || cfg == nil {
		return nil, &TypeError{Kind: kind, Capability: "config.Configuration"}
	}
	return cfg, nil
}
