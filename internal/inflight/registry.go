// ABOUTME: Mutex-guarded set of message IDs that are currently being processed.
// ABOUTME: Pipelines acquire a lease on start and release it on every exit path.

package inflight

import (
	"sync"
)

// Registry is a thread-safe set of in-flight message IDs.
// The zero value is not usable; create one with New.
type Registry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		ids: make(map[string]struct{}),
	}
}

// TryBegin atomically checks whether id is in flight and marks it if not.
// Returns true if the caller now owns id, false if another pipeline already does.
func (r *Registry) TryBegin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.ids[id]; busy {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// End removes id from the registry. Removing an absent id is a no-op.
func (r *Registry) End(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

// Contains reports whether id is currently in flight.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of in-flight IDs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Acquire is the scoped form of TryBegin. On success the returned lease must be
// released, typically with defer, and ok is true. When id is already in flight
// the lease is nil and ok is false.
func (r *Registry) Acquire(id string) (lease *Lease, ok bool) {
	if !r.TryBegin(id) {
		return nil, false
	}
	return &Lease{registry: r, id: id}, true
}

// Lease represents ownership of one in-flight ID.
type Lease struct {
	registry *Registry
	id       string
	once     sync.Once
}

// ID returns the message ID held by the lease.
func (l *Lease) ID() string {
	return l.id
}

// Release ends the lease. Only the first call has an effect, so it is safe to
// release early and also defer a release for the error paths.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.registry.End(l.id)
	})
}
