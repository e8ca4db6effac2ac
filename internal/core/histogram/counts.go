package histogram

import (
	"sync"

	"hitclust/internal/core/hit"
)

// Counts is a per-pixel hit map of the sensor
type Counts struct {
	mu    sync.Mutex
	cells [hit.GridSize * hit.GridSize]uint32
	total uint64
}

// Cell is one non-empty pixel of a count map
type Cell struct {
	X     uint16 `json:"x"`
	Y     uint16 `json:"y"`
	Count uint32 `json:"count"`
}

// NewCounts returns an empty map
func NewCounts() *Counts { return &Counts{} }

// Push records every pixel of a finished cluster
func (m *Counts) Push(c hit.Cluster) { m.AddPixels(c.Pixels) }

// PushAll records a batch of finished clusters under one lock
func (m *Counts) PushAll(cs []hit.Cluster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range cs {
		m.add(cs[i].Pixels)
	}
}

// AddPixels records raw pixels; off-grid pixels are ignored
func (m *Counts) AddPixels(ps []hit.Pixel) {
	m.mu.Lock()
	m.add(ps)
	m.mu.Unlock()
}

func (m *Counts) add(ps []hit.Pixel) {
	for _, p := range ps {
		if !p.InGrid() {
			continue
		}
		m.cells[int(p.Y)*hit.GridSize+int(p.X)]++
		m.total++
	}
}

// At returns the count of pixel (x, y)
func (m *Counts) At(x, y uint16) uint32 {
	if x >= hit.GridSize || y >= hit.GridSize {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cells[int(y)*hit.GridSize+int(x)]
}

// Total returns the number of recorded pixels
func (m *Counts) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Cells lists non-empty pixels in row order
func (m *Counts) Cells() []Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cellsLocked()
}

// Take lists non-empty pixels and clears the map
func (m *Counts) Take() []Cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.cellsLocked()
	clear(m.cells[:])
	m.total = 0
	return out
}

func (m *Counts) cellsLocked() []Cell {
	var out []Cell
	for i, n := range m.cells {
		if n == 0 {
			continue
		}
		out = append(out, Cell{X: uint16(i % hit.GridSize), Y: uint16(i / hit.GridSize), Count: n})
	}
	return out
}
