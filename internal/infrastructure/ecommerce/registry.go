package ecommerce

import (
	"sync"

	"github.com/wasla/backend/internal/domain/integration"
	"github.com/wasla/backend/internal/domain/order"
)

// Registry is the in-process adapter registry. Adding a new source system
// means registering one more adapter here; no route or engine changes.
type Registry struct {
	mu       sync.RWMutex
	adapters map[order.SourceSystem]integration.OrderSource
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[order.SourceSystem]integration.OrderSource),
	}
}

// Register adds an adapter; the last registration for a code wins
func (r *Registry) Register(adapter integration.OrderSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Code()] = adapter
}

// Get returns the adapter for a source system
func (r *Registry) Get(code order.SourceSystem) (integration.OrderSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, integration.ErrSourceNotRegistered
	}
	return adapter, nil
}

// List returns all registered adapters
func (r *Registry) List() []integration.OrderSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]integration.OrderSource, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

var _ integration.SourceRegistry = (*Registry)(nil)
