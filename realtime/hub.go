package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"ascnd/core"
)

type subscriber struct {
	ch          chan core.Event
	leaderboard string
}

// Hub fans score events out to subscribers, optionally scoped to one leaderboard.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a buffered receiver. An empty leaderboard receives every event.
func (h *Hub) Subscribe(buffer int, leaderboard string) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, leaderboard: leaderboard}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast delivers ev without blocking; full receivers miss it.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.leaderboard != "" && s.leaderboard != ev.LeaderboardID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket frames.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
