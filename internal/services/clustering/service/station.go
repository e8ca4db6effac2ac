package service

import (
	"context"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/metrics"
)

// station stitches one frame cut at a time: the clusters reaching the cut from
// earlier frames are reopened and the carried pixels of the later frame are
// attached in time order
//
// A stitched cluster that still reaches the end of the later frame can grow in
// the frame after it, so it is passed on to the next cut instead of being closed.
// That chains stitches across frames shorter than the delay.
type station struct {
	pool *Pool
	cl   *clusterer.Clusterer
}

func newStation(p *Pool) *station {
	return &station{pool: p, cl: clusterer.New(p.opts.Params, p.opts.Index)}
}

func (s *station) run(ctx context.Context) error {
	for h := range s.pool.ready {
		for h != nil {
			next, err := s.stitch(ctx, h)
			if err != nil {
				return err
			}
			h = next
		}
	}
	return nil
}

// stitch closes what cut h can close and returns the next cut if passing clusters on completed it
func (s *station) stitch(ctx context.Context, h *handoff) (*handoff, error) {
	p := s.pool
	if err := ctx.Err(); err != nil {
		return nil, perr.Canceled(err)
	}
	s.cl.Reset()
	s.cl.Seed(h.chained)
	s.cl.Seed(h.back)
	for _, px := range h.carried {
		if p.aborted() {
			return nil, perr.Canceled(context.Canceled)
		}
		s.cl.Attach(px)
	}
	out := s.cl.Flush(nil)

	var pass []hit.Cluster
	if !h.next.last {
		final := out[:0]
		for _, c := range out {
			if h.next.empty || h.next.end-c.MaxTime <= p.opts.Params.Delay {
				pass = append(pass, c)
				continue
			}
			final = append(final, c)
		}
		out = final
	}
	p.col.Add(metrics.StageStation, out)
	p.stats.stitched.Add(int64(len(out)))
	p.stats.merges.Add(int64(s.cl.Merges()))

	p.log.Debug().
		Int("cut", h.seq).
		Int("chained", len(h.chained)).
		Int("back", len(h.back)).
		Int("carried", len(h.carried)).
		Int("out", len(out)).
		Int("passed", len(pass)).
		Msg("cut stitched")

	if h.next.last {
		return nil, nil
	}
	return p.slots.putChained(h.seq+1, pass), nil
}
