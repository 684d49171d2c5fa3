package ratelimiter

import (
	"sync"
)

// Registry maps backend identifiers (stylegen.BackendID values) to limiters.
//
// One limiter covers every call to a backend: the Gemini text stage and the
// Gemini image stage draw from the same bucket, since both spend the same
// per-key quota.
type Registry interface {
	// Get returns the backend's limiter. A backend without one is unpaced.
	Get(backend string) (Limiter, bool)
	Set(backend string, limiter Limiter)
}

type mapRegistry struct {
	registry map[string]Limiter
	mu       sync.RWMutex
}

// NewRegistry creates an empty in-memory limiter registry.
func NewRegistry() Registry {
	return &mapRegistry{
		registry: make(map[string]Limiter),
	}
}

// NewUniformRegistry gives each backend its own limiter built by newLimiter.
func NewUniformRegistry[K ~string](backends []K, newLimiter func() Limiter) Registry {
	r := NewRegistry()
	for _, backend := range backends {
		r.Set(string(backend), newLimiter())
	}
	return r
}

func (r *mapRegistry) Get(backend string) (Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limiter, ok := r.registry[backend]
	return limiter, ok
}

func (r *mapRegistry) Set(backend string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter == nil {
		delete(r.registry, backend)
		return
	}
	r.registry[backend] = limiter
}
