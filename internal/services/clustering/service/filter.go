package service

import (
	"context"
	"sync/atomic"

	"hitclust/internal/core/hit"
	"hitclust/internal/services/clustering/domain"
)

// SizeFilter drops clusters by size before they reach the next sink
// Size 0 disables it; Bigger drops clusters larger than Size, otherwise smaller ones
type SizeFilter struct {
	Next    domain.Sink
	Size    int
	Bigger  bool
	dropped atomic.Int64
}

// NewSizeFilter returns next unchanged when size is 0
func NewSizeFilter(next domain.Sink, size int, bigger bool) domain.Sink {
	if size <= 0 {
		return next
	}
	return &SizeFilter{Next: next, Size: size, Bigger: bigger}
}

// Keep reports whether a cluster of n pixels passes
func (f *SizeFilter) Keep(n int) bool {
	if f.Size <= 0 {
		return true
	}
	if f.Bigger {
		return n <= f.Size
	}
	return n >= f.Size
}

// Push forwards c when it passes
func (f *SizeFilter) Push(c hit.Cluster) {
	if !f.Keep(len(c.Pixels)) {
		f.dropped.Add(1)
		return
	}
	if f.Next != nil {
		f.Next.Push(c)
	}
}

// Dropped counts filtered clusters
func (f *SizeFilter) Dropped() int64 { return f.dropped.Load() }

// Flush passes through to a buffering next sink
func (f *SizeFilter) Flush(ctx context.Context) error {
	if fl, ok := f.Next.(domain.Flusher); ok {
		return fl.Flush(ctx)
	}
	return nil
}
