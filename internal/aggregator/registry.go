package aggregator

import (
	"sync"

	"github.com/google/uuid"
)

// Endpoint is the in-memory connection record for one configured
// WebSocket endpoint (spec.md §3 "Connection record"). The transport
// handle itself lives inside Client and is replaced wholesale on reconnect;
// Endpoint only carries the state visible to the registry and to logging.
type Endpoint struct {
	ID       uuid.UUID
	RawURL   string // as configured
	DialURL  string // percent-encoded, used to actually dial
	Dequeuer string // learned from health.sip.uri after first response
	State    State
}

// Registry is the mutex-guarded table of all configured endpoints, grounded
// on manager/manager.go's states map guarding and on spec.md §9's guidance
// to "guard the endpoint registry with a mutex" when using one goroutine per
// endpoint instead of a single cooperative loop.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]*Endpoint
}

func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[uuid.UUID]*Endpoint)}
}

func (r *Registry) Add(rawURL, dialURL string) *Endpoint {
	ep := &Endpoint{
		ID:      uuid.New(),
		RawURL:  rawURL,
		DialURL: dialURL,
		State:   StateUnknown,
	}
	r.mu.Lock()
	r.endpoints[ep.ID] = ep
	r.mu.Unlock()
	return ep
}

func (r *Registry) SetState(id uuid.UUID, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep, ok := r.endpoints[id]; ok {
		ep.State = s
	}
}

func (r *Registry) SetDequeuer(id uuid.UUID, dequeuer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep, ok := r.endpoints[id]; ok {
		ep.Dequeuer = dequeuer
	}
}

func (r *Registry) Snapshot() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, *ep)
	}
	return out
}

// AllTerminal reports whether every registered endpoint is in a terminal
// state (spec.md §4.1 "Termination"), used by the supervisor to decide when
// it is safe to exit after shutdown has been requested.
func (r *Registry) AllTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ep := range r.endpoints {
		if !ep.State.Terminal() {
			return false
		}
	}
	return true
}
