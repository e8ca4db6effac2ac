package domain

import (
	"context"

	"hitclust/internal/core/hit"
)

// Sink receives closed clusters in any order; workers and stations call Push concurrently
type Sink interface {
	Push(c hit.Cluster)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(hit.Cluster)

// Push calls f
func (f SinkFunc) Push(c hit.Cluster) { f(c) }

// Source supplies hits in approximately non-decreasing time order
//
// Read fills buf and returns how many hits it wrote. (0, nil) means nothing is
// available yet and the caller should back off; io.EOF ends the stream, and
// may come together with n > 0.
type Source interface {
	Read(ctx context.Context, buf []hit.Pixel) (int, error)
}

// Flusher is implemented by sinks that buffer and need a final write
type Flusher interface {
	Flush(ctx context.Context) error
}

// RunnerPort clusters a bounded hit sequence or a live stream
type RunnerPort interface {
	// Batch clusters a complete, ordered hit sequence with the partition-and-merge protocol
	Batch(ctx context.Context, ps []hit.Pixel, sink Sink) (Stats, error)
	// Stream clusters src until it ends or ctx is canceled
	Stream(ctx context.Context, src Source, sink Sink) (Stats, error)
}
