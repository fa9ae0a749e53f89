package negotiation

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry keeps negotiations in process memory; they are lost on restart.
type MemoryRegistry struct {
	mu    sync.RWMutex
	items map[string]Negotiation
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{items: make(map[string]Negotiation)}
}

// Put stores a copy of n.
func (r *MemoryRegistry) Put(_ context.Context, n *Negotiation) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("negotiation: empty id")
	}
	r.mu.Lock()
	r.items[n.ID] = *n
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the stored negotiation.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Negotiation, error) {
	r.mu.RLock()
	n, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &n, nil
}

// Delete removes the negotiation; unknown ids are ignored.
func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}

// Len reports how many negotiations are open.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
