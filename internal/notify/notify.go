// Package notify implements the in-process notification channel: named
// endpoints that a live consumer registers to receive payloads immediately,
// bypassing the replay path. Delivery is best-effort fire-and-forget; a
// payload handed to an endpoint that was replaced or unregistered in the
// meantime is dropped, and durability comes from the queue's pending set,
// not from this hub.
package notify

import "sync"

// Handler consumes an opaque payload delivered to an endpoint.
type Handler func(payload []byte)

// Endpoint is a live registration of a handler under a name. A second
// Register for the same name replaces the previous endpoint; the stale
// Endpoint value stops receiving deliveries.
type Endpoint struct {
	name    string
	handler Handler
}

// Name returns the channel name the endpoint is registered under.
func (e *Endpoint) Name() string { return e.name }

// Hub maps channel names to live endpoints within one process.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]*Endpoint)}
}

// Register binds handler under name, replacing any prior registration for
// that name.
func (h *Hub) Register(name string, handler Handler) *Endpoint {
	ep := &Endpoint{name: name, handler: handler}
	h.mu.Lock()
	h.endpoints[name] = ep
	h.mu.Unlock()
	return ep
}

// Lookup returns the live endpoint for name, if any.
func (h *Hub) Lookup(name string) (*Endpoint, bool) {
	h.mu.RLock()
	ep, ok := h.endpoints[name]
	h.mu.RUnlock()
	return ep, ok
}

// Unregister removes the registration for name. Unregistering an unknown
// name is a no-op.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	delete(h.endpoints, name)
	h.mu.Unlock()
}

// Deliver hands payload to the endpoint's handler if the endpoint is still
// the current registration for its name. There is no delivery confirmation;
// a stale endpoint silently drops the payload.
func (h *Hub) Deliver(ep *Endpoint, payload []byte) {
	if ep == nil {
		return
	}
	h.mu.RLock()
	current, ok := h.endpoints[ep.name]
	h.mu.RUnlock()
	if !ok || current != ep {
		return
	}
	ep.handler(payload)
}
