package sync

import stdsync "sync"

// Hub fans drain results out to websocket subscribers. Slow subscribers miss
// results instead of blocking the drain.
type Hub struct {
	mu   stdsync.Mutex
	subs map[chan DrainResult]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan DrainResult]struct{})}
}

func (h *Hub) Subscribe() (<-chan DrainResult, func()) {
	ch := make(chan DrainResult, 8)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once stdsync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(result DrainResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- result:
		default:
		}
	}
}
