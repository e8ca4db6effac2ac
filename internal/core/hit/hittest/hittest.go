// Package hittest generates synthetic hit streams and compares clustering results in tests
package hittest

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"hitclust/internal/core/hit"
)

// StreamOptions shapes a synthetic, time ordered stream of particle events
type StreamOptions struct {
	Seed   uint64
	Events int
	// Gap is the time between event starts (ns)
	Gap float64
	// Step is the time between pixels inside one event (ns)
	Step float64
	// MaxPixels bounds the random-walk length of an event
	MaxPixels int
	// ForkEvery adds a two-armed event that merges on its last pixel every n events; 0 disables
	ForkEvery int
	// Lanes starts event e in column band e%Lanes, bands 12 cells apart, so events
	// overlapping in time never touch; at most 19
	Lanes int
}

// Stream builds the pixels of o.Events events in time order
// every event is a single connected cluster when Gap exceeds the clusterer delay,
// or when Lanes keeps events that are close in time apart
func Stream(o StreamOptions) []hit.Pixel {
	if o.MaxPixels <= 0 {
		o.MaxPixels = 6
	}
	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	out := make([]hit.Pixel, 0, o.Events*o.MaxPixels)
	for e := 0; e < o.Events; e++ {
		t0 := float64(e) * o.Gap
		x, y := 10+rng.IntN(230), 10+rng.IntN(230)
		if o.Lanes > 0 {
			x = 10 + (e%min(o.Lanes, 19))*12
		}
		if o.ForkEvery > 0 && e%o.ForkEvery == o.ForkEvery-1 {
			out = append(out, Fork(x, y, t0, o.Step)...)
			continue
		}
		n := 1 + rng.IntN(o.MaxPixels)
		for i := 0; i < n; i++ {
			out = append(out, hit.Pixel{X: uint16(x), Y: uint16(y), Value: int32(1 + rng.IntN(100)), Time: t0 + float64(i)*o.Step})
			x = min(max(x+rng.IntN(3)-1, 0), hit.GridSize-1)
			y = min(max(y+rng.IntN(3)-1, 0), hit.GridSize-1)
		}
	}
	// events overlap when Gap is shorter than an event
	hit.SortPixelsByTime(out)
	return out
}

// Fork returns two separated arms that only join through the final pixel
func Fork(x, y int, t0, step float64) []hit.Pixel {
	mk := func(dx int, i int) hit.Pixel {
		return hit.Pixel{X: uint16(x + dx), Y: uint16(y), Value: 10, Time: t0 + float64(i)*step}
	}
	return []hit.Pixel{mk(0, 0), mk(4, 1), mk(1, 2), mk(3, 3), mk(2, 4)}
}

// Canon renders each cluster as its sorted pixel set, and sorts the list
// two results describe the same clustering iff their Canon outputs are equal
func Canon(cs []hit.Cluster) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		keys := make([]string, 0, len(c.Pixels))
		for _, p := range c.Pixels {
			keys = append(keys, fmt.Sprintf("%d:%d:%g", p.X, p.Y, p.Time))
		}
		slices.Sort(keys)
		out = append(out, strings.Join(keys, " "))
	}
	slices.Sort(out)
	return out
}

// Diff returns a short description of the first difference, or "" when equal
func Diff(want, got []string) string {
	if len(want) != len(got) {
		return fmt.Sprintf("cluster count %d, want %d", len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Sprintf("cluster %d:\n got  %s\n want %s", i, got[i], want[i])
		}
	}
	return ""
}
