package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"hitclust/internal/core/histogram"
	"hitclust/internal/core/hit"
	"hitclust/internal/core/wire"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	clustering "hitclust/internal/services/clustering/domain"
	cservice "hitclust/internal/services/clustering/service"
	"hitclust/internal/services/online/domain"

	"github.com/cenkalti/backoff/v4"
)

// session is one mode running over one feed
type session struct {
	mode   domain.Mode
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) stop() {
	s.cancel()
	<-s.done
}

// output accumulates what the next flush sends for one mode
type output struct {
	mode domain.Mode
	hub  *Hub
	max  int

	mu       sync.Mutex
	pixels   []hit.Pixel
	clusters []hit.Cluster
	energy   *histogram.Energy
	counts   *histogram.Counts
}

func newOutput(mode domain.Mode, hub *Hub, o Options) *output {
	out := &output{mode: mode, hub: hub, max: o.MaxPending}
	switch mode {
	case domain.ModeEnergies:
		out.energy = histogram.NewEnergy(o.HistBins, o.HistWidth)
	case domain.ModeCounts:
		out.counts = histogram.NewCounts()
	}
	return out
}

// Push takes a finished cluster from the engine
func (o *output) Push(c hit.Cluster) {
	if o.energy != nil {
		o.energy.Push(c)
		return
	}
	o.mu.Lock()
	o.clusters = append(o.clusters, c)
	full := len(o.clusters) >= o.max
	o.mu.Unlock()
	if full {
		o.flush()
	}
}

func (o *output) addPixels(ps []hit.Pixel) {
	if o.counts != nil {
		o.counts.AddPixels(ps)
		return
	}
	o.mu.Lock()
	o.pixels = append(o.pixels, ps...)
	full := len(o.pixels) >= o.max
	o.mu.Unlock()
	if full {
		o.flush()
	}
}

// flush publishes what accumulated since the last flush; nothing is sent when it is empty
func (o *output) flush() {
	var m wire.Message
	switch o.mode {
	case domain.ModeReceive:
		o.mu.Lock()
		ps := o.pixels
		o.pixels = nil
		o.mu.Unlock()
		if len(ps) == 0 {
			return
		}
		m = wire.Pixels(ps)
	case domain.ModeClusters:
		o.mu.Lock()
		cs := o.clusters
		o.clusters = nil
		o.mu.Unlock()
		if len(cs) == 0 {
			return
		}
		m = wire.Clusters(cs)
	case domain.ModeEnergies:
		s := o.energy.Take()
		if s.Clusters() == 0 {
			return
		}
		m = wire.Histogram(s.Pixels, s.Bins)
	case domain.ModeCounts:
		cells := o.counts.Take()
		if len(cells) == 0 {
			return
		}
		m = wire.Counts(cells)
	default:
		return
	}
	o.hub.Publish(m)
}

// countingSource tallies hits read and applies the edge filter
type countingSource struct {
	src    clustering.Source
	margin int
	n      *atomic.Int64
}

func (s countingSource) Read(ctx context.Context, buf []hit.Pixel) (int, error) {
	n, err := s.src.Read(ctx, buf)
	if s.margin > 0 {
		k := 0
		for _, p := range buf[:n] {
			if p.Inside(s.margin) {
				buf[k] = p
				k++
			}
		}
		n = k
	}
	s.n.Add(int64(n))
	return n, err
}

// idleBackOff paces reads of a quiet feed in the pass through modes
var idleBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// pump copies src into out until the feed ends
func pump(ctx context.Context, src clustering.Source, out *output, batch int) error {
	buf := make([]hit.Pixel, max(batch, 1))
	wait := idleBackOff()
	for {
		if err := ctx.Err(); err != nil {
			return perr.Canceled(err)
		}
		n, err := src.Read(ctx, buf)
		if n > 0 {
			// the output keeps the slice until the next flush
			out.addPixels(append([]hit.Pixel(nil), buf[:n]...))
			wait.Reset()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return perr.WrapIf(err, perr.ErrorCodeUnavailable, "read hit feed")
		}
		if n > 0 {
			continue
		}
		t := time.NewTimer(wait.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return perr.Canceled(ctx.Err())
		case <-t.C:
		}
	}
}

// run drives one session until its feed ends or it is stopped
func (c *Controller) run(ctx context.Context, s *session, feed domain.Feed, p domain.Params) {
	defer close(s.done)
	log := logger.NamedC(ctx, "online").With().Str("mode", string(s.mode)).Logger()

	out := newOutput(s.mode, c.hub, c.opts)
	src := countingSource{src: feed, margin: p.Outer, n: &c.hits}

	c.feeding.Store(true)
	c.hub.Publish(wire.Text(wire.KindMessage, domain.MeasStarted))

	flushed := make(chan struct{})
	fctx, stopFlush := context.WithCancel(ctx)
	go func() {
		defer close(flushed)
		t := time.NewTicker(c.opts.FlushEvery)
		defer t.Stop()
		for {
			select {
			case <-fctx.Done():
				return
			case <-t.C:
				out.flush()
			}
		}
	}()

	var err error
	if s.mode.Clustering() {
		err = c.cluster(ctx, src, out, p)
	} else {
		err = pump(ctx, src, out, c.opts.Engine.ReadBatch)
	}

	stopFlush()
	<-flushed
	if cerr := feed.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close feed")
	}
	c.feeding.Store(false)

	if ctx.Err() != nil || perr.IsCode(err, perr.ErrorCodeCanceled) {
		log.Debug().Msg("session stopped")
		return
	}
	out.flush()
	if err != nil {
		log.Error().Err(err).Msg("session failed")
		c.hub.Publish(wire.Text(wire.KindError, err.Error()))
	}
	c.hub.Publish(wire.Text(wire.KindMessage, domain.MeasFinished))
	log.Info().Int64("hits", c.hits.Load()).Msg("measurement finished")
}

// cluster streams src through the clustering engine with the session parameters
func (c *Controller) cluster(ctx context.Context, src clustering.Source, out *output, p domain.Params) error {
	o := c.opts.Engine
	o.Params = p.Clusterer()
	o.Filter = p.Filter()
	// the session source already applied the edge filter
	o.Filter.Outer = 0
	svc, err := cservice.New(o)
	if err != nil {
		return err
	}
	sink := clustering.SinkFunc(func(cl hit.Cluster) {
		c.clusters.Add(1)
		out.Push(cl)
	})
	st, err := svc.Stream(ctx, src, sink)
	c.last.Store(&st)
	return err
}
