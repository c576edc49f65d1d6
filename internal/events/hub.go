// Package events carries "the store changed" signals to interested
// observers. Delivery is best effort: a change is a hint to re-read, never a
// lock or an ordering guarantee across processes.
package events

import (
	"sync"
	"time"
)

// Op names the mutation that produced a change.
type Op string

const (
	OpAppend Op = "append"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpCancel Op = "cancel"
	OpSave   Op = "save"
)

// Change describes one store mutation. ID is empty for whole-list writes.
type Change struct {
	Key    string    `json:"key"`
	Op     Op        `json:"op"`
	ID     string    `json:"id,omitempty"`
	At     time.Time `json:"at"`
	Origin string    `json:"origin,omitempty"`
}

// subscriberBuffer bounds each subscriber's queue; a full queue drops.
const subscriberBuffer = 16

// Hub is an in-process publish/subscribe fan-out. It is safe for
// concurrent use. The zero value is not usable; call NewHub.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Change
	next    uint64
	version uint64
	hooks   []func(Change)
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Change)}
}

// Subscribe registers a new observer. The returned cancel func unregisters
// it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// OnPublish registers fn to run synchronously for every published change,
// before channel subscribers are notified. Hooks must not block.
func (h *Hub) OnPublish(fn func(Change)) {
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// Publish bumps the hub version and delivers c to every subscriber without
// blocking; subscribers whose buffer is full miss this change.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.Lock()
	h.version++
	hooks := h.hooks
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(c)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Version returns a counter incremented by every Publish. Caches key their
// entries on it so any change invalidates them.
func (h *Hub) Version() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

// Subscribers returns the number of registered channel subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
