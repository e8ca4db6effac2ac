package service

import (
	"sync"
	"sync/atomic"

	"hitclust/internal/core/wire"
)

// Hub fans wire messages out to every connected viewer
// a viewer that cannot keep up loses messages rather than stalling the feed
type Hub struct {
	mu      sync.Mutex
	viewers map[*Viewer]struct{}

	published atomic.Int64
	dropped   atomic.Int64
}

// Viewer is one subscription to the hub
type Viewer struct {
	out chan wire.Message
}

// C is the viewer's outgoing queue; it is closed by Leave
func (v *Viewer) C() <-chan wire.Message { return v.out }

// NewHub returns a hub with no viewers
func NewHub() *Hub { return &Hub{viewers: map[*Viewer]struct{}{}} }

// Join subscribes a viewer with a queue of depth messages
func (h *Hub) Join(depth int) *Viewer {
	v := &Viewer{out: make(chan wire.Message, max(depth, 1))}
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
	return v
}

// Leave unsubscribes v and closes its queue
func (h *Hub) Leave(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v]; !ok {
		return
	}
	delete(h.viewers, v)
	close(v.out)
}

// Publish queues m for every viewer without blocking
func (h *Hub) Publish(m wire.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		select {
		case v.out <- m:
			h.published.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// Viewers returns the number of subscribed viewers
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Counts returns messages queued and messages dropped for slow viewers
func (h *Hub) Counts() (published, dropped int64) {
	return h.published.Load(), h.dropped.Load()
}
