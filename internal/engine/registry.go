package engine

import (
	"context"
	"sync"

	"github.com/pocketerp/outpost/internal/store"
)

// Handler performs the authoritative backend write for one pending record.
//
// On success it returns the server-assigned identifier. Ordinary business
// failures (validation, conflict, network) are reported through the error
// return; the record stays unsynced and is retried on the next pass. A
// panicking handler is recovered by the engine and treated the same as an
// error return.
type Handler func(ctx context.Context, rec *store.PendingRecord) (serverID string, err error)

// Registry maps record types to the handler that reconciles them.
//
// Each business module registers its handlers once at process start; the
// registry is effectively read-only afterwards. Registration is not safe to
// interleave with an active sync pass.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register associates a handler with a record type.
// The last registration for a given type wins.
func (r *Registry) Register(recordType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h == nil {
		panic("engine: Register handler is nil for type " + recordType)
	}

	r.handlers[recordType] = h
}

// Lookup returns the handler for a record type, or nil if none is registered.
func (r *Registry) Lookup(recordType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[recordType]
}

// Types returns all registered record types.
// Useful for testing and debugging.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
