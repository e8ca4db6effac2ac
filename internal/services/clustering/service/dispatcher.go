package service

import (
	"context"
	"errors"
	"io"
	"time"

	"hitclust/internal/core/hit"
	"hitclust/internal/core/partition"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/metrics"
	"hitclust/internal/services/clustering/domain"

	"github.com/cenkalti/backoff/v4"
)

// Dispatcher reads a live source into one buffer and cuts it into frames for the pool
//
// A frame is cut before a hit that lies more than FrameSpan after the first hit of
// the buffer, when the buffer holds MaxFrameHits (a forced cut), or when the source
// has been quiet for IdleCut with hits buffered. At end of stream the Shutdown stages
// fire in order around the final frame, which carries Last.
type Dispatcher struct {
	opts     domain.Options
	pool     *Pool
	shutdown *Shutdown
	log      *logger.Logger

	cur  []hit.Pixel
	seq  int
	read int64
}

// NewDispatcher feeds pool; sd may be shared with observers of the end of stream
func NewDispatcher(opts domain.Options, pool *Pool, sd *Shutdown) *Dispatcher {
	if sd == nil {
		sd = NewShutdown()
	}
	return &Dispatcher{opts: opts.WithDefaults(), pool: pool, shutdown: sd, log: logger.Named("dispatcher")}
}

// Shutdown exposes the end of stream stages
func (d *Dispatcher) Shutdown() *Shutdown { return d.shutdown }

// idleBackOff is how long the dispatcher sleeps between empty reads
var idleBackOff = func(idle time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = max(idle/4, 2*time.Millisecond)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run pumps src until io.EOF, a source error or ctx cancel; the pool is not closed
func (d *Dispatcher) Run(ctx context.Context, src domain.Source) error {
	d.log = logger.NamedC(ctx, "dispatcher")
	buf := make([]hit.Pixel, d.opts.ReadBatch)
	wait := idleBackOff(d.opts.IdleCut)
	lastData := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return perr.Canceled(err)
		}
		n, err := src.Read(ctx, buf)
		for _, px := range buf[:n] {
			if err := d.push(ctx, px); err != nil {
				return err
			}
		}
		d.read += int64(n)
		if errors.Is(err, io.EOF) {
			return d.finish(ctx)
		}
		if err != nil {
			return perr.WithOp(perr.WrapIf(err, perr.ErrorCodeUnavailable, "read hit source"), "dispatcher.read")
		}
		if n > 0 {
			lastData = time.Now()
			wait.Reset()
			continue
		}

		if len(d.cur) > 0 && time.Since(lastData) >= d.opts.IdleCut {
			d.log.Debug().Int("seq", d.seq).Int("hits", len(d.cur)).Msg("idle cut")
			if err := d.cut(ctx); err != nil {
				return err
			}
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

func (d *Dispatcher) push(ctx context.Context, px hit.Pixel) error {
	if len(d.cur) > 0 && px.Time-d.cur[0].Time > d.opts.FrameSpan {
		if err := d.cut(ctx); err != nil {
			return err
		}
	}
	if len(d.cur) >= d.opts.MaxFrameHits {
		d.pool.stats.forcedCuts.Add(1)
		metrics.Frames.WithLabelValues(metrics.FrameForced).Inc()
		d.log.Warn().Int("seq", d.seq).Int("hits", len(d.cur)).Msg("frame hit limit reached, forced cut")
		if err := d.cut(ctx); err != nil {
			return err
		}
	}
	d.cur = append(d.cur, px)
	return nil
}

// cut hands the buffer to the pool; the frame owns the slice from here on
func (d *Dispatcher) cut(ctx context.Context) error {
	f := partition.New(d.seq, d.cur)
	if err := d.pool.Submit(ctx, f); err != nil {
		return err
	}
	d.seq++
	d.cur = make([]hit.Pixel, 0, min(cap(d.cur), d.opts.MaxFrameHits))
	return nil
}

// finish runs the end of stream handshake
func (d *Dispatcher) finish(ctx context.Context) error {
	d.shutdown.Advance() // NoMoreFrames
	if err := d.pool.Drain(ctx); err != nil {
		return err
	}
	d.shutdown.Advance() // WorkersDrained

	f := partition.New(d.seq, d.cur)
	f.Last = true
	if err := d.pool.Submit(ctx, f); err != nil {
		return err
	}
	d.seq++
	d.cur = nil
	d.shutdown.Advance() // FinalSent

	d.log.Info().Int("frames", d.seq).Int64("hits", d.read).Msg("stream ended")
	return nil
}
