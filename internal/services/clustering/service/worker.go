package service

import (
	"context"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	"hitclust/internal/core/partition"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/metrics"
)

// worker runs the sequential clusterer over every frame routed to it
// its clusterer and scratch buffers are never shared
type worker struct {
	id   int
	pool *Pool
	cl   *clusterer.Clusterer
	done []hit.Cluster
	log  *logger.Logger
}

func newWorker(id int, p *Pool) *worker {
	l := p.log.With().Str("component", "worker").Int("worker", id).Logger()
	return &worker{
		id:   id,
		pool: p,
		cl:   clusterer.New(p.opts.Params, p.opts.Index),
		log:  &l,
	}
}

func (w *worker) run(ctx context.Context, in <-chan partition.Frame) error {
	for f := range in {
		err := w.process(ctx, f)
		w.pool.pending.Done()
		if err != nil {
			return err
		}
	}
	return nil
}

// process clusters one frame and hands its boundary sets over
//
// Closed and open clusters whose oldest pixel lies within Delay of the frame start
// may continue a cluster of the previous frame: they are broken back into pixels
// and carried to the station of the previous cut (never for seq 0), even when they
// also reach the frame end; that station passes them on if they do. Other clusters
// still open at the end go to the station of the next cut unless the frame is the
// last one, where they are final.
//
// The front test is inclusive: a pixel exactly Delay after the previous frame's
// newest pixel still joins its cluster in a sequential run.
func (w *worker) process(ctx context.Context, f partition.Frame) error {
	p := w.pool
	if f.Err != nil {
		w.log.Warn().Err(f.Err).Int("seq", f.Seq).Int("hits", f.Len()).Msg("malformed frame dropped")
		p.stats.framesDropped.Add(1)
		metrics.Frames.WithLabelValues(metrics.FrameDropped).Inc()
		return w.handoff(ctx, f, nil, nil, frameEdge{empty: true, last: f.Last})
	}

	if err := ctx.Err(); err != nil {
		return perr.Canceled(err)
	}
	start := time.Now()
	w.cl.Reset()
	w.done = w.done[:0]
	for _, px := range f.Pixels {
		if p.aborted() {
			return perr.Canceled(context.Canceled)
		}
		w.done = w.cl.Ingest(px, w.done)
	}

	delay := p.opts.Params.Delay
	hasFront := f.Seq > 0
	isFront := func(c *hit.Cluster) bool { return hasFront && c.MinTime-f.FirstTime <= delay }
	end := f.FirstTime
	if n := len(f.Pixels); n > 0 {
		end = f.Pixels[n-1].Time
	}

	var carried []hit.Pixel
	final := w.done[:0]
	for i := range w.done {
		if isFront(&w.done[i]) {
			carried = append(carried, w.done[i].Pixels...)
			continue
		}
		final = append(final, w.done[i])
	}

	var back []hit.Cluster
	for _, c := range w.cl.Flush(nil) {
		switch {
		case isFront(&c):
			carried = append(carried, c.Pixels...)
		case !f.Last && end-c.MaxTime <= delay:
			back = append(back, c)
		default:
			final = append(final, c)
		}
	}
	hit.SortPixelsByTime(carried)

	p.col.Add(metrics.StageWorker, final)

	p.stats.hits.Add(int64(len(f.Pixels)))
	p.stats.frames.Add(1)
	p.stats.regressions.Add(int64(w.cl.Regressions()))
	p.stats.merges.Add(int64(w.cl.Merges()))
	p.stats.boundary.Add(int64(len(back)))
	p.stats.carried.Add(int64(len(carried)))
	metrics.HitsIngested.Add(float64(len(f.Pixels)))
	metrics.Frames.WithLabelValues(metrics.FrameOK).Inc()
	metrics.FrameDuration.Observe(time.Since(start).Seconds())
	metrics.BoundaryClusters.Add(float64(len(back)))
	metrics.CarriedPixels.Add(float64(len(carried)))
	if r := w.cl.Regressions(); r > 0 {
		metrics.OrderRegressions.Add(float64(r))
		w.log.Warn().Int("seq", f.Seq).Int("regressions", r).Msg("hits out of time order")
	}

	w.log.Debug().
		Int("seq", f.Seq).
		Int("hits", f.Len()).
		Int("final", len(final)).
		Int("back", len(back)).
		Int("carried", len(carried)).
		Bool("last", f.Last).
		Dur("took", time.Since(start)).
		Msg("frame done")

	return w.handoff(ctx, f, back, carried, frameEdge{end: end, empty: len(f.Pixels) == 0, last: f.Last})
}

// handoff moves the boundary sets into their slots; a dropped frame still hands over
// empty halves so the neighbouring stations do not wait for it
func (w *worker) handoff(ctx context.Context, f partition.Frame, back []hit.Cluster, carried []hit.Pixel, edge frameEdge) error {
	p := w.pool
	var ready []*handoff
	if f.Seq > 0 {
		if h := p.slots.putCarried(f.Seq-1, carried, edge); h != nil {
			ready = append(ready, h)
		}
	}
	if !f.Last {
		if h := p.slots.putBack(f.Seq, back); h != nil {
			ready = append(ready, h)
		}
	}
	for _, h := range ready {
		select {
		case p.ready <- h:
		case <-ctx.Done():
			return perr.Canceled(ctx.Err())
		}
	}
	return nil
}
