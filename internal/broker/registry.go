// Package broker fans provider-originated status events out to realtime
// subscribers, scoped so a connection can only ever see events for
// transactions its own project initiated.
package broker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

// Handle is one live realtime connection. Events for its subscriptions are
// queued on a buffered channel drained by the connection's writer; a full
// queue loses the event rather than stalling the publisher.
type Handle struct {
	ID        string
	ProjectID string

	mu     sync.Mutex
	closed bool
	events chan schema.StatusEvent
}

// Events is the delivery channel for this connection. It is closed when the
// handle is dropped.
func (h *Handle) Events() <-chan schema.StatusEvent {
	return h.events
}

// send queues evt for the connection, dropping it if the connection is
// closed or its queue is full.
func (h *Handle) send(evt schema.StatusEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	select {
	case h.events <- evt:
		return true
	default:
		return false
	}
}

func (h *Handle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.events)
	}
}

// Registry is the transaction → subscribers mapping. One coarse RWMutex
// serializes subscription churn; publish snapshots the subscriber set under
// the read lock and delivers outside it, so a slow consumer never blocks
// registry mutation.
type Registry struct {
	mu sync.RWMutex
	// byTx[transactionID] is the set of handles subscribed to it.
	byTx map[string]map[*Handle]struct{}
	// byHandle is the reverse index used by Drop.
	byHandle map[*Handle]map[string]struct{}
	buffer   int
}

// NewRegistry creates a registry whose handles buffer up to buffer events.
func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = 16
	}
	return &Registry{
		byTx:     make(map[string]map[*Handle]struct{}),
		byHandle: make(map[*Handle]map[string]struct{}),
		buffer:   buffer,
	}
}

// Attach creates a handle for an authenticated connection.
func (r *Registry) Attach(projectID string) *Handle {
	h := &Handle{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		events:    make(chan schema.StatusEvent, r.buffer),
	}
	r.mu.Lock()
	r.byHandle[h] = make(map[string]struct{})
	r.mu.Unlock()
	return h
}

// Subscribe binds the handle to a transaction id. Ownership must already
// have been verified by the caller; the registry only does bookkeeping.
func (r *Registry) Subscribe(h *Handle, transactionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.byHandle[h]
	if !ok {
		// Dropped handles cannot pick up new subscriptions.
		return
	}
	subs[transactionID] = struct{}{}

	if r.byTx[transactionID] == nil {
		r.byTx[transactionID] = make(map[*Handle]struct{})
	}
	r.byTx[transactionID][h] = struct{}{}
}

// Unsubscribe removes one binding; unknown bindings are a no-op.
func (r *Registry) Unsubscribe(h *Handle, transactionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbind(h, transactionID)
}

// Drop removes every subscription bound to the handle and closes its
// delivery channel. Idempotent; a broken connection gets the same treatment
// as an explicit disconnect.
func (r *Registry) Drop(h *Handle) {
	r.mu.Lock()
	for txID := range r.byHandle[h] {
		r.unbind(h, txID)
	}
	delete(r.byHandle, h)
	r.mu.Unlock()

	h.close()
}

// Publish delivers evt to every live subscriber of the transaction and
// returns how many received it. Zero subscribers is a cheap no-op.
func (r *Registry) Publish(transactionID string, evt schema.StatusEvent) int {
	r.mu.RLock()
	targets := lo.Keys(r.byTx[transactionID])
	r.mu.RUnlock()

	delivered := 0
	for _, h := range targets {
		if h.send(evt) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns how many handles are bound to the transaction.
func (r *Registry) Subscribers(transactionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTx[transactionID])
}

// unbind MUST be called while holding r.mu.
func (r *Registry) unbind(h *Handle, transactionID string) {
	if subs, ok := r.byHandle[h]; ok {
		delete(subs, transactionID)
	}
	if set, ok := r.byTx[transactionID]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(r.byTx, transactionID)
		}
	}
}
