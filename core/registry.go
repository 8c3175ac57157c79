package core

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderRegistry holds the configured provider adapters. The registry is
// closed over the ProviderID enum: registering or resolving an identifier
// outside KnownProviderIDs fails instead of silently accepting arbitrary
// strings.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[ProviderID]Provider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[ProviderID]Provider)}
}

func (r *ProviderRegistry) Register(provider Provider) error {
	if r == nil {
		return fmt.Errorf("core: provider registry is not configured")
	}
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	id, err := ParseProviderID(string(provider.ID()))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("core: provider already registered: %s", id)
	}
	r.providers[id] = provider
	return nil
}

func (r *ProviderRegistry) Get(providerID ProviderID) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	id, err := ParseProviderID(string(providerID))
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[id]
	r.mu.RUnlock()
	return provider, ok
}

// Resolve is Get with the error the orchestrator wants to propagate.
func (r *ProviderRegistry) Resolve(providerID ProviderID) (Provider, error) {
	provider, ok := r.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	return provider, nil
}

func (r *ProviderRegistry) List() []Provider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	providers := make([]Provider, 0, len(ids))
	for _, id := range ids {
		providers = append(providers, r.providers[ProviderID(id)])
	}
	r.mu.RUnlock()
	return providers
}

var _ Registry = (*ProviderRegistry)(nil)
