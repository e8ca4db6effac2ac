package hit

import (
	"cmp"
	"slices"
)

// SortKey selects the ordering applied to finished clusters before they are saved
type SortKey string

const (
	// SortNone keeps emission order
	SortNone SortKey = ""
	// SortBySize orders by pixel count, biggest first
	SortBySize SortKey = "size"
	// SortByTime orders by first arrival time
	SortByTime SortKey = "time"
)

// ParseSortKey maps a flag/env value to a SortKey; unknown values are reported with ok=false
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case SortNone, SortBySize, SortByTime:
		return SortKey(s), true
	}
	return SortNone, false
}

// Sort orders cs in place; ties keep their relative order
func Sort(cs []Cluster, key SortKey) {
	switch key {
	case SortBySize:
		slices.SortStableFunc(cs, func(a, b Cluster) int { return cmp.Compare(len(b.Pixels), len(a.Pixels)) })
	case SortByTime:
		slices.SortStableFunc(cs, func(a, b Cluster) int { return cmp.Compare(a.MinTime, b.MinTime) })
	}
}

// SortPixelsByTime orders pixels by arrival time, keeping arrival order for equal times
func SortPixelsByTime(ps []Pixel) {
	slices.SortStableFunc(ps, func(a, b Pixel) int { return cmp.Compare(a.Time, b.Time) })
}
