package status

import (
	"sync"
	"time"
)

// Update is one indicator change as seen by subscribers.
type Update struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// Hub remembers the current state and fans changes out to subscribers.
// Slow subscribers miss intermediate updates rather than blocking the caller.
type Hub struct {
	mu      sync.Mutex
	current Update
	subs    map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{current: Update{State: Unknown.String()}, subs: make(map[chan Update]struct{})}
}

func (h *Hub) SetState(s State) {
	u := Update{State: s.String(), At: time.Now().UTC()}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = u
	for ch := range h.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *Hub) Current() Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe returns a channel primed with the current state and a cancel func.
func (h *Hub) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)
	h.mu.Lock()
	ch <- h.current
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}
