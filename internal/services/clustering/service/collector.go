package service

import (
	"sync"

	"hitclust/internal/core/hit"
	"hitclust/internal/platform/metrics"
	"hitclust/internal/services/clustering/domain"
)

// Collector is where workers and stations hand their closed clusters
//
// mu guards the counters only; clusters reach the sink after it is released,
// so sinks must accept concurrent Push
type Collector struct {
	sink domain.Sink

	mu     sync.Mutex
	n      int64
	pixels int64
}

// NewCollector forwards to sink when not nil
func NewCollector(sink domain.Sink) *Collector {
	return &Collector{sink: sink}
}

// Add moves cs into the collection; stage labels the metric
func (c *Collector) Add(stage string, cs []hit.Cluster) {
	if len(cs) == 0 {
		return
	}
	var px int64
	for i := range cs {
		px += int64(len(cs[i].Pixels))
	}
	c.mu.Lock()
	c.n += int64(len(cs))
	c.pixels += px
	c.mu.Unlock()
	metrics.ClustersClosed.WithLabelValues(stage).Add(float64(len(cs)))

	if c.sink == nil {
		return
	}
	for i := range cs {
		c.sink.Push(cs[i])
	}
}

// Counts returns clusters and pixels collected so far
func (c *Collector) Counts() (clusters, pixels int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, c.pixels
}
