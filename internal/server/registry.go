package server

import (
	"sync"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// Registry holds generated datasets in memory, capped at a fixed size. When
// full, adding a dataset evicts the oldest one.
type Registry struct {
	mu    sync.RWMutex
	cap   int
	order []string // dataset IDs, oldest first
	items map[string]*dataset.Dataset
}

func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		cap:   capacity,
		items: make(map[string]*dataset.Dataset),
	}
}

// Add stores a dataset, evicting the oldest entry if the registry is full.
func (r *Registry) Add(ds *dataset.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[ds.ID]; !exists && len(r.order) >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.items, oldest)
	}
	if _, exists := r.items[ds.ID]; !exists {
		r.order = append(r.order, ds.ID)
	}
	r.items[ds.ID] = ds
}

func (r *Registry) Get(id string) (*dataset.Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.items[id]
	return ds, ok
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the held datasets, newest first.
func (r *Registry) List() []*dataset.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*dataset.Dataset, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.items[r.order[i]])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
