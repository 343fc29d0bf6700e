package portal

import (
	"log/slog"
	"sync"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// subscriberBuffer is how many events a slow subscriber may lag before drops
const subscriberBuffer = 16

// Hub fans progress events out to the feed subscribers of each client
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan models.ProgressEvent]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan models.ProgressEvent]struct{})}
}

// Subscribe registers a listener for a client. Call the returned func to stop.
func (h *Hub) Subscribe(clientID string) (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[clientID] == nil {
		h.subs[clientID] = make(map[chan models.ProgressEvent]struct{})
	}
	h.subs[clientID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(clientID, ch) })
	}
}

// Publish delivers an event without blocking; full subscribers miss it
func (h *Hub) Publish(clientID string, ev models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[clientID] {
		select {
		case ch <- ev:
		default:
			slog.Warn("feed subscriber lagging, event dropped",
				"client", models.MaskCode(clientID), "command", ev.Command)
		}
	}
}

// CloseClient closes every subscription of a client
func (h *Hub) CloseClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[clientID] {
		close(ch)
	}
	delete(h.subs, clientID)
}

// Subscribers returns the number of open subscriptions for a client
func (h *Hub) Subscribers(clientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[clientID])
}

func (h *Hub) remove(clientID string, ch chan models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[clientID]
	if !ok {
		return
	}
	// CloseClient may have closed it already
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, clientID)
	}
}
