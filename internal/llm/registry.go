package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry looks up a configured Provider by ID, grounded on go-opencode's
// provider.Registry (the InitializeProviders construction loop in init.go
// builds one Registry from the loaded configuration).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider under its own ID.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get looks up a provider by ID.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("llm: provider not found: %s", id)
	}
	return p, nil
}

// IDs returns every registered provider ID, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseModelString splits a "provider/model" string, defaulting the
// provider half to empty (caller decides the fallback) when there's no
// separator — the same convention go-opencode's ParseModelString uses for
// its config.Model field.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}
