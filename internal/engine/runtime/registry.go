package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// activeRoute is the registry's handle on one running worker.
type activeRoute struct {
	queue  chan *Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks which routes currently have a live worker and owns
// their queues. All access goes through the registry; nothing else
// holds a queue reference.
type Registry struct {
	mu     sync.Mutex
	routes map[uuid.UUID]*activeRoute
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[uuid.UUID]*activeRoute)}
}

// Running reports whether routeID has a registered worker.
func (r *Registry) Running(routeID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.routes[routeID]
	return ok
}

// Enqueue puts a job on the route's queue, blocking while the queue is
// full. It returns false when the route has no registered worker or ctx
// is done before the job fits.
func (r *Registry) Enqueue(ctx context.Context, routeID uuid.UUID, job *Job) bool {
	r.mu.Lock()
	active, ok := r.routes[routeID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case active.queue <- job:
		return true
	case <-ctx.Done():
		return false
	case <-active.done:
		// Worker exited while we were waiting for queue space.
		return false
	}
}

// Shutdown cancels every worker and waits for each to drain and exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	actives := make([]*activeRoute, 0, len(r.routes))
	for id, active := range r.routes {
		actives = append(actives, active)
		delete(r.routes, id)
	}
	r.mu.Unlock()

	for _, active := range actives {
		active.cancel()
	}
	for _, active := range actives {
		<-active.done
	}
}

func (r *Registry) register(routeID uuid.UUID, active *activeRoute) {
	r.mu.Lock()
	r.routes[routeID] = active
	r.mu.Unlock()
}

// deregister drops routeID if it still maps to active. A worker that
// dies calls this on its own handle, so the manager respawns it on the
// next poll without racing a replacement already registered.
func (r *Registry) deregister(routeID uuid.UUID, active *activeRoute) {
	r.mu.Lock()
	if r.routes[routeID] == active {
		delete(r.routes, routeID)
	}
	r.mu.Unlock()
}
