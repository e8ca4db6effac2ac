// Package clusterer implements the incremental sequential clustering procedure
//
// Pixels are fed one at a time in (approximately) non-decreasing time order.
// For each pixel the clusterer:
//
//  1. closes every open cluster whose newest pixel is more than Delay older than the pixel
//  2. collects candidate clusters: within Span of the cluster's oldest pixel, inside
//     the bounding box grown by one cell, and 8-adjacent to a member per the Index
//  3. with no candidate starts a new cluster, with one appends, with several merges
//     them all into the first candidate in open-list order and then appends
//
// The pixel time stands in for "now"; an out of order pixel can close a cluster it
// belonged to. Ordering is a caller contract, Regressions counts violations.
package clusterer

import (
	"hitclust/internal/core/hit"
	"hitclust/internal/core/neighbor"
)

// open is a cluster that may still grow, plus its membership index
type open struct {
	c   *hit.Cluster
	idx neighbor.Index
}

// Clusterer holds the open-cluster list of one task; it is not safe for concurrent use
type Clusterer struct {
	params Params
	policy neighbor.Policy

	open []open
	cand []int

	last        float64
	seen        bool
	regressions int
	merges      int
}

// New builds a Clusterer
func New(p Params, policy neighbor.Policy) *Clusterer {
	return &Clusterer{params: p, policy: policy, open: make([]open, 0, 64), cand: make([]int, 0, 4)}
}

// Params returns the windows in use
func (c *Clusterer) Params() Params { return c.params }

// Open returns the number of open clusters
func (c *Clusterer) Open() int { return len(c.open) }

// Regressions counts pixels that arrived earlier than their predecessor
func (c *Clusterer) Regressions() int { return c.regressions }

// Merges counts how many clusters were folded into another one
func (c *Clusterer) Merges() int { return c.merges }

// Ingest runs the full step for p and appends clusters closed by it to done
func (c *Clusterer) Ingest(p hit.Pixel, done []hit.Cluster) []hit.Cluster {
	return c.step(p, done, true)
}

// Attach runs matching and resolution only: nothing is closed
// clusters more than Delay behind p are skipped as candidates, as they would
// have been closed in a sequential run
func (c *Clusterer) Attach(p hit.Pixel) {
	c.step(p, nil, false)
}

// Flush closes every open cluster, in open-list order
func (c *Clusterer) Flush(done []hit.Cluster) []hit.Cluster {
	for i := range c.open {
		done = append(done, *c.open[i].c)
		c.open[i] = open{}
	}
	c.open = c.open[:0]
	return done
}

// Seed adds already formed open clusters (e.g. forwarded from another task)
// their indexes are rebuilt from the pixel lists
func (c *Clusterer) Seed(cs []hit.Cluster) {
	for i := range cs {
		cl := &hit.Cluster{}
		*cl = cs[i]
		idx := c.policy.Build(len(cl.Pixels), func(fn func(x, y int)) {
			for _, p := range cl.Pixels {
				fn(int(p.X), int(p.Y))
			}
		})
		c.open = append(c.open, open{c: cl, idx: idx})
	}
}

// Reset drops all open clusters and counters
func (c *Clusterer) Reset() {
	clear(c.open)
	c.open = c.open[:0]
	c.last, c.seen, c.regressions, c.merges = 0, false, 0, 0
}

func (c *Clusterer) step(p hit.Pixel, done []hit.Cluster, age bool) []hit.Cluster {
	if c.seen && p.Time < c.last {
		c.regressions++
	}
	c.last, c.seen = p.Time, true

	x, y := int(p.X), int(p.Y)
	c.cand = c.cand[:0]

	// single pass: close or keep, compacting survivors in place
	w := 0
	for _, oc := range c.open {
		if p.Time-oc.c.MaxTime > c.params.Delay {
			if age {
				done = append(done, *oc.c)
				continue
			}
			c.open[w] = oc
			w++
			continue
		}
		c.open[w] = oc
		if c.matches(oc, p, x, y) {
			c.cand = append(c.cand, w)
		}
		w++
	}
	clear(c.open[w:])
	c.open = c.open[:w]

	switch len(c.cand) {
	case 0:
		idx := c.policy.Add(c.policy.New(), x, y)
		c.open = append(c.open, open{c: hit.NewCluster(p), idx: idx})
	case 1:
		c.grow(&c.open[c.cand[0]], p, x, y)
	default:
		c.mergeCandidates()
		c.grow(&c.open[c.cand[0]], p, x, y)
	}
	return done
}

func (c *Clusterer) matches(oc open, p hit.Pixel, x, y int) bool {
	dt := p.Time - oc.c.MinTime
	if dt > c.params.Span || -dt > c.params.Span {
		return false
	}
	if !oc.c.NearBox(x, y) {
		return false
	}
	return oc.idx.ContainsNeighbor(x, y)
}

func (c *Clusterer) grow(oc *open, p hit.Pixel, x, y int) {
	oc.c.Add(p)
	oc.idx = c.policy.Add(oc.idx, x, y)
}

// mergeCandidates folds cand[1:] into cand[0] and removes them in one compaction
// cand is ascending, so cand[0] keeps its position
func (c *Clusterer) mergeCandidates() {
	first := &c.open[c.cand[0]]
	for _, k := range c.cand[1:] {
		other := c.open[k]
		first.c.Absorb(other.c)
		first.idx = c.policy.Union(first.idx, other.idx)
		c.open[k].c = nil
		c.merges++
	}
	w := 0
	for _, oc := range c.open {
		if oc.c == nil {
			continue
		}
		c.open[w] = oc
		w++
	}
	clear(c.open[w:])
	c.open = c.open[:w]
}
