// Package service runs the partition-and-merge clustering engine over hit batches and streams
package service

import (
	"context"
	"time"

	"hitclust/internal/core/hit"
	"hitclust/internal/core/partition"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/services/clustering/domain"

	"github.com/google/uuid"
)

// Service implements domain.RunnerPort
type Service struct {
	opts domain.Options
}

var _ domain.RunnerPort = (*Service)(nil)

// New validates the clustering windows and fills option defaults
func New(opts domain.Options) (*Service, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Filter.Outer < 0 || opts.Filter.MinSize < 0 {
		return nil, perr.WithField(perr.InvalidArgf("filters must be >= 0"), "filter")
	}
	return &Service{opts: opts.WithDefaults()}, nil
}

// Options returns the effective options
func (s *Service) Options() domain.Options { return s.opts }

// Batch cuts ps into Workers frames and clusters them concurrently
func (s *Service) Batch(ctx context.Context, ps []hit.Pixel, sink domain.Sink) (domain.Stats, error) {
	ctx, runID := s.begin(ctx)
	log := logger.NamedC(ctx, "engine")

	ps = s.outer(ps)
	sink = NewSizeFilter(sink, s.opts.Filter.MinSize, s.opts.Filter.Bigger)
	pool := NewPool(s.opts, NewCollector(sink))
	pool.Start(ctx)

	plan := partition.Split(ps, s.opts.Workers)
	var err error
	for _, f := range plan.Frames {
		if err = pool.Submit(ctx, f); err != nil {
			break
		}
	}
	err = firstErr(err, pool.Close())
	return s.end(ctx, log, runID, pool, sink, err)
}

// BatchFrames clusters frames that were cut upstream, one per worker slot
//
// Frames must be contiguous in time, numbered from 0 and end with a Last
// frame. The edge filter is not applied here; decoders apply it while parsing.
func (s *Service) BatchFrames(ctx context.Context, frames []partition.Frame, sink domain.Sink) (domain.Stats, error) {
	if len(frames) == 0 || !frames[len(frames)-1].Last {
		return domain.Stats{}, perr.WithField(perr.InvalidArgf("frames must end with the last frame"), "frames")
	}
	for i, f := range frames {
		if f.Seq != i {
			return domain.Stats{}, perr.WithField(perr.InvalidArgf("frame %d carries seq %d", i, f.Seq), "frames")
		}
	}
	ctx, runID := s.begin(ctx)
	log := logger.NamedC(ctx, "engine")

	sink = NewSizeFilter(sink, s.opts.Filter.MinSize, s.opts.Filter.Bigger)
	pool := NewPool(s.opts, NewCollector(sink))
	pool.Start(ctx)

	var err error
	for _, f := range frames {
		if err = pool.Submit(ctx, f); err != nil {
			break
		}
	}
	err = firstErr(err, pool.Close())
	return s.end(ctx, log, runID, pool, sink, err)
}

// Stream clusters src through a Dispatcher until the source ends
func (s *Service) Stream(ctx context.Context, src domain.Source, sink domain.Sink) (domain.Stats, error) {
	return s.StreamWith(ctx, src, sink, nil)
}

// StreamWith is Stream with a caller owned Shutdown to observe the end of stream
func (s *Service) StreamWith(ctx context.Context, src domain.Source, sink domain.Sink, sd *Shutdown) (domain.Stats, error) {
	ctx, runID := s.begin(ctx)
	log := logger.NamedC(ctx, "engine")

	if s.opts.Filter.Outer > 0 {
		src = outerSource{src: src, margin: s.opts.Filter.Outer}
	}
	sink = NewSizeFilter(sink, s.opts.Filter.MinSize, s.opts.Filter.Bigger)
	pool := NewPool(s.opts, NewCollector(sink))
	pool.Start(ctx)

	d := NewDispatcher(s.opts, pool, sd)
	err := d.Run(ctx, src)
	err = firstErr(err, pool.Close())
	return s.end(ctx, log, runID, pool, sink, err)
}

func (s *Service) begin(ctx context.Context) (context.Context, string) {
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRun(ctx, runID)
	}
	return ctx, runID
}

func (s *Service) end(ctx context.Context, log *logger.Logger, runID string, pool *Pool, sink domain.Sink, err error) (domain.Stats, error) {
	st := pool.Stats()
	st.RunID = runID
	if fl, ok := sink.(domain.Flusher); ok {
		// the run context may be gone; the write of what was clustered still goes through
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		err = firstErr(err, fl.Flush(fctx))
		cancel()
	}
	if perr.IsCode(err, perr.ErrorCodeCanceled) {
		st.Canceled = true
	}

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int64("hits", st.Hits).
		Int64("clusters", st.Clusters).
		Int64("frames", st.Frames).
		Int64("dropped", st.FramesDropped).
		Int64("stitched", st.Stitched).
		Dur("elapsed", st.Elapsed).
		Float64("mhits_per_s", st.MHitsPerSec()).
		Msg("run finished")
	return st, err
}

// outer applies the edge filter to a batch without touching the caller's slice
func (s *Service) outer(ps []hit.Pixel) []hit.Pixel {
	m := s.opts.Filter.Outer
	if m <= 0 {
		return ps
	}
	out := make([]hit.Pixel, 0, len(ps))
	for _, p := range ps {
		if p.Inside(m) {
			out = append(out, p)
		}
	}
	return out
}

// outerSource drops edge hits as they are read
type outerSource struct {
	src    domain.Source
	margin int
}

func (o outerSource) Read(ctx context.Context, buf []hit.Pixel) (int, error) {
	n, err := o.src.Read(ctx, buf)
	w := 0
	for _, p := range buf[:n] {
		if p.Inside(o.margin) {
			buf[w] = p
			w++
		}
	}
	return w, err
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}
