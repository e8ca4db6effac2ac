package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hitclust/internal/core/partition"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/services/clustering/domain"

	"golang.org/x/sync/errgroup"
)

// counters are the run totals, written by workers, stations and the dispatcher
type counters struct {
	hits, frames, framesDropped, forcedCuts  atomic.Int64
	boundary, carried, stitched, regressions atomic.Int64
	merges                                   atomic.Int64
}

// Pool is a fixed set of workers plus as many merge stations
//
// Frame seq j is always processed by worker j%Workers, each worker owning a queue
// of QueueDepth frames, so Submit blocks when that worker falls behind. The first
// error of any goroutine cancels the run; workers and stations notice it between
// pixels and stop.
type Pool struct {
	opts  domain.Options
	log   *logger.Logger
	col   *Collector
	slots *slots

	queues []chan partition.Frame
	ready  chan *handoff

	g         *errgroup.Group
	gctx      context.Context
	stopAbort func() bool
	abort     atomic.Bool
	pending   sync.WaitGroup

	stats   counters
	started time.Time
	closed  bool
}

// NewPool builds an idle pool; Start launches it
func NewPool(opts domain.Options, col *Collector) *Pool {
	opts = opts.WithDefaults()
	return &Pool{
		opts:  opts,
		log:   logger.Named("engine"),
		col:   col,
		slots: newSlots(),
	}
}

// Start launches the workers and stations; ctx cancellation aborts the run
func (p *Pool) Start(ctx context.Context) {
	p.log = logger.NamedC(ctx, "engine")
	p.started = time.Now()
	p.g, p.gctx = errgroup.WithContext(ctx)
	p.stopAbort = context.AfterFunc(p.gctx, func() { p.abort.Store(true) })

	n := p.opts.Workers
	p.queues = make([]chan partition.Frame, n)
	p.ready = make(chan *handoff, n)

	var workers sync.WaitGroup
	for i := range n {
		q := make(chan partition.Frame, p.opts.QueueDepth)
		p.queues[i] = q
		w := newWorker(i, p)
		workers.Add(1)
		p.g.Go(func() error {
			defer workers.Done()
			return w.run(p.gctx, q)
		})
	}
	// stations read until every worker is gone
	go func() {
		workers.Wait()
		close(p.ready)
	}()
	for range n {
		st := newStation(p)
		p.g.Go(func() error { return st.run(p.gctx) })
	}
	p.log.Debug().Int("workers", n).Int("queue_depth", p.opts.QueueDepth).Msg("pool started")
}

// Submit routes f to its worker; it blocks while that queue is full
func (p *Pool) Submit(ctx context.Context, f partition.Frame) error {
	q := p.queues[f.Seq%len(p.queues)]
	p.pending.Add(1)
	select {
	case q <- f:
		return nil
	case <-p.gctx.Done():
		p.pending.Done()
		return p.failure()
	case <-ctx.Done():
		p.pending.Done()
		return perr.Canceled(ctx.Err())
	}
}

// Drain waits until every submitted frame was processed by its worker
func (p *Pool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-p.gctx.Done():
		return p.failure()
	case <-ctx.Done():
		return perr.Canceled(ctx.Err())
	}
}

// Close stops accepting frames and waits for workers and stations to finish
// it returns the first error of the run
func (p *Pool) Close() error {
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	err := p.g.Wait()
	p.stopAbort()
	if left := p.slots.pending(); err == nil && left > 0 {
		return perr.Invariantf("%d frame cuts never completed", left)
	}
	return err
}

// failure reports the error that canceled the group, or a plain cancellation
func (p *Pool) failure() error {
	if err := context.Cause(p.gctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return perr.Canceled(context.Canceled)
}

func (p *Pool) aborted() bool { return p.abort.Load() }

// Stats snapshots the counters; Clusters come from the collector
func (p *Pool) Stats() domain.Stats {
	cl, px := p.col.Counts()
	return domain.Stats{
		Elapsed:       time.Since(p.started),
		Hits:          p.stats.hits.Load(),
		Clusters:      cl,
		ClusterPixels: px,
		Frames:        p.stats.frames.Load(),
		FramesDropped: p.stats.framesDropped.Load(),
		ForcedCuts:    p.stats.forcedCuts.Load(),
		Boundary:      p.stats.boundary.Load(),
		Carried:       p.stats.carried.Load(),
		Stitched:      p.stats.stitched.Load(),
		Regressions:   p.stats.regressions.Load(),
		Merges:        p.stats.merges.Load(),
	}
}
