// Package histogram accumulates per-cluster energy spectra and per-pixel hit counts
// Both accumulators are safe for concurrent use and accept finished clusters directly
package histogram

import (
	"slices"
	"sync"

	"hitclust/internal/core/hit"
)

// Energy is a fixed-width energy spectrum of finished clusters
// bin i counts clusters whose energy falls in [i*width, (i+1)*width); larger energies land in the last bin
type Energy struct {
	mu     sync.Mutex
	width  int64
	bins   []uint64
	pixels uint64
	under  uint64
}

// Snapshot is a point-in-time copy of an energy spectrum
type Snapshot struct {
	Width  int64    `json:"width"`
	Bins   []uint64 `json:"bins"`
	Pixels uint64   `json:"pixels"`
	Under  uint64   `json:"under,omitempty"`
}

// NewEnergy returns a spectrum with n bins of the given width; non-positive values fall back to 1
func NewEnergy(n int, width int64) *Energy {
	return &Energy{width: max(width, 1), bins: make([]uint64, max(n, 1))}
}

// Push records one finished cluster
func (h *Energy) Push(c hit.Cluster) { h.Add(c.Energy(), len(c.Pixels)) }

// PushAll records a batch of finished clusters under one lock
func (h *Energy) PushAll(cs []hit.Cluster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range cs {
		h.add(cs[i].Energy(), len(cs[i].Pixels))
	}
}

// Add records a cluster energy computed elsewhere
func (h *Energy) Add(e int64, pixels int) {
	h.mu.Lock()
	h.add(e, pixels)
	h.mu.Unlock()
}

func (h *Energy) add(e int64, pixels int) {
	h.pixels += uint64(pixels)
	if e < 0 {
		h.under++
		return
	}
	i := e / h.width
	if i >= int64(len(h.bins)) {
		i = int64(len(h.bins)) - 1
	}
	h.bins[i]++
}

// Snapshot copies the current state
func (h *Energy) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{Width: h.width, Bins: slices.Clone(h.bins), Pixels: h.pixels, Under: h.under}
}

// Take copies the current state and clears it
func (h *Energy) Take() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{Width: h.width, Bins: slices.Clone(h.bins), Pixels: h.pixels, Under: h.under}
	clear(h.bins)
	h.pixels, h.under = 0, 0
	return s
}

// Clusters returns the number of clusters recorded in s
func (s Snapshot) Clusters() uint64 {
	n := s.Under
	for _, b := range s.Bins {
		n += b
	}
	return n
}

// Spectrum builds an unbounded one-per-unit histogram from cluster energies
// index e holds the number of clusters with energy e; negative energies are skipped
func Spectrum(cs []hit.Cluster) []uint64 {
	var out []uint64
	for i := range cs {
		e := cs[i].Energy()
		if e < 0 {
			continue
		}
		if int(e) >= len(out) {
			out = append(out, make([]uint64, int(e)+1-len(out))...)
		}
		out[e]++
	}
	return out
}
