// Package health aggregates liveness probes for the scoring service's
// dependencies (transaction store, database pool).
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the probe result for one dependency. Latency covers the probe
// itself, not the dependency's steady-state performance.
type Status struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Detail  string        `json:"detail,omitempty"`
	Latency time.Duration `json:"latency_ns,omitempty"`
}

// Checker probes one dependency. It must honor ctx cancellation; the
// readiness handler runs every probe under a shared deadline.
type Checker func(ctx context.Context) Status

// Registry runs registered probes in registration order so the readiness
// payload is stable across calls.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	checks map[string]Checker
}

// NewRegistry returns an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Checker)}
}

// Register adds a probe under name. Registering the same name twice replaces
// the earlier probe and keeps its position.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checks[name]; !exists {
		r.order = append(r.order, name)
	}
	r.checks[name] = check
}

// CheckAll runs every probe and reports whether all passed. A probe that
// forgets to set its name gets the registered one.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	checks := make(map[string]Checker, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, 0, len(order))

	for _, name := range order {
		start := time.Now()
		st := checks[name](ctx)
		st.Latency = time.Since(start)
		if st.Name == "" {
			st.Name = name
		}
		if !st.Healthy {
			healthy = false
		}
		statuses = append(statuses, st)
	}

	return healthy, statuses
}
