package service

import (
	"sync"

	"hitclust/internal/core/hit"
)

// handoff is the boundary set of one frame cut seq, between frame seq and seq+1
//
// It has three parts, each written once: the back clusters of frame seq, the
// carried pixels of frame seq+1 (with that frame's end) and the clusters the
// station of cut seq-1 left open because they reach the end of frame seq. Cut 0
// has no earlier station. The slot is released to a station exactly once, when
// the last part lands.
type handoff struct {
	seq     int
	back    []hit.Cluster
	chained []hit.Cluster
	carried []hit.Pixel
	next    frameEdge

	hasBack, hasCarried, hasChain bool
}

// frameEdge describes the frame after a cut as far as its station needs it
type frameEdge struct {
	end   float64
	empty bool
	last  bool
}

// slots maps a cut (by the seq of the frame before it) to its handoff
type slots struct {
	mu   sync.Mutex
	open map[int]*handoff
}

func newSlots() *slots {
	return &slots{open: make(map[int]*handoff)}
}

func (s *slots) get(seq int) *handoff {
	h, ok := s.open[seq]
	if !ok {
		h = &handoff{seq: seq, hasChain: seq == 0}
		s.open[seq] = h
	}
	return h
}

// putBack records the back half of cut seq and returns the slot when it became complete
func (s *slots) putBack(seq int, cs []hit.Cluster) *handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.get(seq)
	h.back, h.hasBack = cs, true
	return s.release(h)
}

// putCarried records the front half of cut seq
func (s *slots) putCarried(seq int, ps []hit.Pixel, next frameEdge) *handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.get(seq)
	h.carried, h.next, h.hasCarried = ps, next, true
	return s.release(h)
}

// putChained records what the station of cut seq-1 passed on
func (s *slots) putChained(seq int, cs []hit.Cluster) *handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.get(seq)
	h.chained, h.hasChain = cs, true
	return s.release(h)
}

func (s *slots) release(h *handoff) *handoff {
	if !h.hasBack || !h.hasCarried || !h.hasChain {
		return nil
	}
	delete(s.open, h.seq)
	return h
}

// pending returns how many cuts still wait for a part
func (s *slots) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
