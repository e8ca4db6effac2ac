package histogram

import (
	"sync"
	"testing"

	"hitclust/internal/core/hit"
)

func cluster(vals ...int32) hit.Cluster {
	var c hit.Cluster
	for i, v := range vals {
		c.Add(hit.Pixel{X: uint16(10 + i), Y: 10, Value: v, Time: float64(i)})
	}
	return c
}

func TestEnergy_Binning(t *testing.T) {
	h := NewEnergy(4, 10)
	h.Push(cluster(3, 4))  // 7 -> bin 0
	h.Push(cluster(10))    // 10 -> bin 1
	h.Push(cluster(20, 9)) // 29 -> bin 2
	h.Push(cluster(500))   // overflow -> last bin
	h.Push(cluster(-5, 1)) // negative -> under
	s := h.Snapshot()

	want := []uint64{1, 1, 1, 1}
	for i := range want {
		if s.Bins[i] != want[i] {
			t.Fatalf("bins=%v want %v", s.Bins, want)
		}
	}
	if s.Under != 1 || s.Pixels != 8 || s.Clusters() != 5 {
		t.Fatalf("under=%d pixels=%d clusters=%d", s.Under, s.Pixels, s.Clusters())
	}
}

func TestEnergy_TakeResets(t *testing.T) {
	h := NewEnergy(2, 0)
	h.PushAll([]hit.Cluster{cluster(0), cluster(1), cluster(5)})
	s := h.Take()
	if s.Width != 1 || s.Bins[0] != 1 || s.Bins[1] != 2 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if after := h.Snapshot(); after.Clusters() != 0 || after.Pixels != 0 {
		t.Fatalf("Take did not reset: %+v", after)
	}
	// the snapshot is a copy
	s.Bins[0] = 99
	if h.Snapshot().Bins[0] != 0 {
		t.Fatalf("snapshot aliases internal bins")
	}
}

func TestEnergy_Concurrent(t *testing.T) {
	h := NewEnergy(8, 1)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.Push(cluster(2))
			}
		}()
	}
	wg.Wait()
	if got := h.Snapshot().Bins[2]; got != 800 {
		t.Fatalf("bin 2=%d want 800", got)
	}
}

func TestSpectrum(t *testing.T) {
	got := Spectrum([]hit.Cluster{cluster(2), cluster(1, 1), cluster(-1), cluster(0)})
	want := []uint64{1, 0, 2}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("spectrum=%v want %v", got, want)
		}
	}
}

func TestCounts(t *testing.T) {
	m := NewCounts()
	m.Push(cluster(1, 1))
	m.AddPixels([]hit.Pixel{{X: 10, Y: 10}, {X: 300, Y: 1}})
	if m.At(10, 10) != 2 || m.At(11, 10) != 1 || m.Total() != 3 {
		t.Fatalf("At(10,10)=%d At(11,10)=%d total=%d", m.At(10, 10), m.At(11, 10), m.Total())
	}
	if m.At(256, 0) != 0 {
		t.Fatalf("off-grid At should be 0")
	}

	cells := m.Take()
	if len(cells) != 2 || cells[0] != (Cell{X: 10, Y: 10, Count: 2}) || cells[1] != (Cell{X: 11, Y: 10, Count: 1}) {
		t.Fatalf("cells=%v", cells)
	}
	if m.Total() != 0 || len(m.Cells()) != 0 {
		t.Fatalf("Take did not clear the map")
	}
}
