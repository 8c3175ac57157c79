// Package transport carries provider metadata calls over pluggable
// protocol adapters. REST is the only wired protocol; other kinds
// register through factories so callers get a configuration error
// instead of a missing-map panic.
package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/funtoco/go-connectors/core"
)

type AdapterFactory func(config map[string]any) (core.TransportAdapter, error)

// Registry maps protocol kinds to adapters. Ready adapters register
// directly; lazy kinds register as factories and build on first use.
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]core.TransportAdapter
	factories map[string]AdapterFactory
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:  map[string]core.TransportAdapter{},
		factories: map[string]AdapterFactory{},
	}
}

// NewDefaultRegistry carries REST for the provider metadata APIs.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewRESTAdapter(nil))
	return registry
}

func (r *Registry) Register(adapter core.TransportAdapter) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	if adapter == nil {
		return fmt.Errorf("transport: adapter is nil")
	}
	kind, err := requireKind(adapter.Kind())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("transport: adapter kind %q already registered", kind)
	}
	r.adapters[kind] = adapter
	return nil
}

func (r *Registry) RegisterFactory(kind string, factory AdapterFactory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	if factory == nil {
		return fmt.Errorf("transport: adapter factory is nil")
	}
	normalized, err := requireKind(kind)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[normalized]; exists {
		return fmt.Errorf("transport: adapter factory kind %q already registered", normalized)
	}
	r.factories[normalized] = factory
	return nil
}

// Build resolves a ready adapter first, then falls back to a factory.
func (r *Registry) Build(kind string, config map[string]any) (core.TransportAdapter, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	normalized, err := requireKind(kind)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	adapter, ready := r.adapters[normalized]
	factory := r.factories[normalized]
	r.mu.RUnlock()

	if ready {
		return adapter, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("transport: adapter kind %q not registered", normalized)
	}

	built, err := factory(copyConfig(config))
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil adapter", normalized)
	}
	return built, nil
}

func (r *Registry) Get(kind string) (core.TransportAdapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[normalizeKind(kind)]
	return adapter, ok
}

func (r *Registry) List() []core.TransportAdapter {
	if r == nil {
		return []core.TransportAdapter{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	result := make([]core.TransportAdapter, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, r.adapters[kind])
	}
	return result
}

// NoopFactory registers a kind that always builds an UnsupportedAdapter,
// taking the rejection reason from the build config.
func NoopFactory(kind string) AdapterFactory {
	return func(config map[string]any) (core.TransportAdapter, error) {
		reason := strings.TrimSpace(fmt.Sprint(config["reason"]))
		return NewUnsupportedAdapter(kind, reason), nil
	}
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}

func requireKind(kind string) (string, error) {
	normalized := normalizeKind(kind)
	if normalized == "" {
		return "", fmt.Errorf("transport: adapter kind is required")
	}
	return normalized, nil
}

func copyConfig(config map[string]any) map[string]any {
	copied := make(map[string]any, len(config))
	for key, value := range config {
		copied[key] = value
	}
	return copied
}
