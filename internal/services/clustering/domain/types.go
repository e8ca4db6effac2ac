// Package domain defines the core types and interfaces for the clustering service
package domain

import (
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/neighbor"
)

// Options shape one clustering run
type Options struct {
	// Workers is the fixed pool size; batch runs cut the input into this many frames
	Workers int
	Params  clusterer.Params
	Index   neighbor.Policy

	// FrameSpan is the covered time (ns) after which the dispatcher cuts a frame
	FrameSpan float64
	// MaxFrameHits forces an early cut so a frame cannot grow without bound
	MaxFrameHits int
	// IdleCut cuts a partial frame when the source has been quiet this long
	IdleCut time.Duration
	// QueueDepth bounds the frames waiting per worker
	QueueDepth int
	// ReadBatch is how many hits the dispatcher asks the source for at once
	ReadBatch int

	// Post processing, see Filter
	Filter Filter
}

// Filter holds the hit and cluster filters applied around clustering
type Filter struct {
	// Outer drops hits closer than this many cells to a sensor edge
	Outer int `json:"outer_filter" yaml:"outer_filter" validate:"gte=0,lt=128"`
	// MinSize is the cluster size filter, 0 disables it
	MinSize int `json:"min_cluster_size" yaml:"min_cluster_size" validate:"gte=0"`
	// Bigger drops clusters larger than MinSize instead of smaller ones
	Bigger bool `json:"filter_bigger" yaml:"filter_bigger"`
}

// Defaults for Options fields left at zero
const (
	DefaultWorkers      = 4
	DefaultFrameSpan    = 250e6 // 0.25 s
	DefaultMaxFrameHits = 1 << 20
	DefaultIdleCut      = 200 * time.Millisecond
	DefaultQueueDepth   = 2
	DefaultReadBatch    = 4096
)

// WithDefaults fills zero fields
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.FrameSpan <= 0 {
		o.FrameSpan = DefaultFrameSpan
	}
	if o.MaxFrameHits <= 0 {
		o.MaxFrameHits = DefaultMaxFrameHits
	}
	if o.IdleCut <= 0 {
		o.IdleCut = DefaultIdleCut
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.ReadBatch <= 0 {
		o.ReadBatch = DefaultReadBatch
	}
	return o
}

// Stats summarise a run; counters are totals since the engine started
type Stats struct {
	RunID         string        `json:"run_id,omitempty"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	Hits          int64         `json:"hits"`
	Clusters      int64         `json:"clusters"`
	ClusterPixels int64         `json:"cluster_pixels"`
	Frames        int64         `json:"frames"`
	FramesDropped int64         `json:"frames_dropped"`
	ForcedCuts    int64         `json:"forced_cuts"`
	Boundary      int64         `json:"boundary_clusters"`
	Carried       int64         `json:"carried_pixels"`
	Stitched      int64         `json:"stitched_clusters"`
	Regressions   int64         `json:"order_regressions"`
	Merges        int64         `json:"merges"`
	Canceled      bool          `json:"canceled,omitempty"`
}

// MHitsPerSec is the ingest rate over Elapsed
func (s Stats) MHitsPerSec() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Hits) / s.Elapsed.Seconds() / 1e6
}
