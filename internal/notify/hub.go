package notify

import (
	"sync"
	"time"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
)

// EventType names a registry mutation.
type EventType string

const (
	DonorRegistered      EventType = "donor.registered"
	RequestSubmitted     EventType = "request.submitted"
	RequestStatusChanged EventType = "request.status_changed"
)

// Event is a best-effort notice of a committed mutation. Exactly one of
// Donor and Request is set.
type Event struct {
	Type       EventType            `json:"type"`
	At         time.Time            `json:"at"`
	Donor      *domain.Donor        `json:"donor,omitempty"`
	Request    *domain.BloodRequest `json:"request,omitempty"`
	FromStatus domain.Status        `json:"fromStatus,omitempty"`
}

// Publisher is what the services need from the hub.
type Publisher interface {
	Publish(Event)
}

// Hub fans events out to subscribers. A subscriber whose buffer is full
// misses the event; Publish never blocks.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: map[int]chan Event{}}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, max(buffer, 1))
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber with room for it.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			metrics.IncDroppedEvents()
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel; later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
