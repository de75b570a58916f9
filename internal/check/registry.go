package check

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get for an unregistered id (§4.1).
var ErrNotFound = errors.New("check: descriptor not found")

// Runner is the single-method contract every check implements (C3, §9's
// "narrow interface" guidance instead of a deep inheritance hierarchy).
type Runner interface {
	// Run executes the check and must never panic to the caller; any
	// unexpected failure is mapped to a Result with Status=StatusError.
	Run(ctx context.Context, rc RunContext) Result
}

// Registry holds the fixed catalog of check descriptors and their runners.
// It is built once at startup and is effectively read-only during
// operation (§4.1); reads take a shared read lock.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

type entry struct {
	descriptor CheckDescriptor
	runner     Runner
}

// NewRegistry returns an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a check descriptor and its runner. Registration happens at
// startup, before the registry is handed to the scheduler and API server.
func (r *Registry) Register(d CheckDescriptor, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.entries[d.ID] = entry{descriptor: d, runner: runner}
}

// List returns descriptors in stable order: the order checks were
// registered at startup, which callers populate in catalog id order
// (S1, S2, ...). This avoids lexicographic sort putting "S10" ahead of
// "S2", while still being the same, deterministic order on every call.
func (r *Registry) List() []CheckDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CheckDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].descriptor)
	}
	return out
}

// Get returns the descriptor for id, or ErrNotFound.
func (r *Registry) Get(id string) (CheckDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return CheckDescriptor{}, ErrNotFound
	}
	return e.descriptor, nil
}

// Runner returns the runner for id, or ErrNotFound.
func (r *Registry) Runner(id string) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.runner, nil
}

// EnabledIDs returns, in stable registry order, the ids the scheduler
// should execute this cycle: enabled, non-host-ingested checks. Deprecated
// checks remain in this list (they still "execute", via the shim in C10);
// host-ingested checks (S11) are excluded since the core never runs them
// itself (§4.1, §4.9).
func (r *Registry) EnabledIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		d := r.entries[id].descriptor
		if !d.Enabled || d.HostIngested {
			continue
		}
		out = append(out, id)
	}
	return out
}

// HostIngestedIDs returns ids the registry declares as accepting externally
// produced results (§4.9).
func (r *Registry) HostIngestedIDs() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool)
	for _, id := range r.order {
		d := r.entries[id].descriptor
		if d.HostIngested {
			out[id] = true
		}
	}
	return out
}
