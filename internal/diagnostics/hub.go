// Package diagnostics fans page console output out to live viewers while the
// diagnostic view is open.
package diagnostics

import (
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber backlog before entries are dropped
const DefaultBuffer = 64

// Subscription is one live viewer
type Subscription struct {
	ID      uuid.UUID
	Entries <-chan sandbox.LogEntry

	ch     chan sandbox.LogEntry
	hub    *Hub
	closed atomic.Bool
}

// Close detaches the subscription. Its channel is closed.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.hub.remove(s)
}

// Hub broadcasts console entries without ever blocking the publisher. A slow
// subscriber loses entries rather than holding up the page.
type Hub struct {
	mu      sync.RWMutex
	open    bool
	subs    map[uuid.UUID]*Subscription
	dropped atomic.Int64
	sent    atomic.Int64
}

// NewHub creates a hub with the view closed
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]*Subscription)}
}

// Toggle flips the view and reports the new state. Closing the view ends
// every subscription.
func (h *Hub) Toggle() bool {
	h.mu.Lock()
	h.open = !h.open
	open := h.open
	var ended []*Subscription
	if !open {
		for _, s := range h.subs {
			ended = append(ended, s)
		}
	}
	h.mu.Unlock()

	for _, s := range ended {
		s.Close()
	}
	return open
}

// IsOpen reports whether the view is open
func (h *Hub) IsOpen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

// Subscribe registers a viewer. It reports false while the view is closed.
func (h *Hub) Subscribe(buffer int) (*Subscription, bool) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return nil, false
	}

	ch := make(chan sandbox.LogEntry, buffer)
	s := &Subscription{ID: uuid.New(), Entries: ch, ch: ch, hub: h}
	h.subs[s.ID] = s
	return s, true
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.ID]; ok {
		delete(h.subs, s.ID)
		close(s.ch)
	}
}

// Publish delivers e to every subscriber. Entries are discarded while the view
// is closed.
func (h *Hub) Publish(e sandbox.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.open {
		return
	}

	for _, s := range h.subs {
		select {
		case s.ch <- e:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live viewers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns delivered and dropped entry counts
func (h *Hub) Stats() (sent, dropped int64) {
	return h.sent.Load(), h.dropped.Load()
}
