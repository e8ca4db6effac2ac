package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hitclust/internal/core/hit"
	"hitclust/internal/core/partition"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/services/clustering/domain"
)

func TestPool_DropsMalformedFrameAndKeepsGoing(t *testing.T) {
	t.Parallel()

	var sink memSink
	p := NewPool(domain.Options{Workers: 2, Params: testParams}, NewCollector(&sink))
	p.Start(context.Background())

	f0 := partition.New(0, []hit.Pixel{{X: 5, Y: 5, Time: 0}, {X: 6, Y: 5, Time: 10}})
	f1 := partition.New(1, []hit.Pixel{{X: 7, Y: 5, Time: 20}})
	f1.Err = perr.Malformedf("bad record at line 3")
	f2 := partition.New(2, []hit.Pixel{{X: 40, Y: 40, Time: 5000}})
	f2.Last = true
	for _, f := range []partition.Frame{f0, f1, f2} {
		if err := p.Submit(context.Background(), f); err != nil {
			t.Fatalf("Submit %d: %v", f.Seq, err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st := p.Stats()
	if st.FramesDropped != 1 || st.Frames != 2 {
		t.Fatalf("frames %d dropped %d", st.Frames, st.FramesDropped)
	}
	got := sink.all()
	if hit.CountPixels(got) != 3 || len(got) != 2 {
		t.Fatalf("want the 3 pixels of frames 0 and 2 in 2 clusters, got %v", got)
	}
}

func TestPool_DrainWaitsForSubmittedFrames(t *testing.T) {
	t.Parallel()

	col := NewCollector(nil)
	p := NewPool(domain.Options{Workers: 3, Params: testParams}, col)
	p.Start(context.Background())

	ps := testStream()
	plan := partition.Split(ps, 6)
	for _, f := range plan.Frames {
		if err := p.Submit(context.Background(), f); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if got := p.Stats().Hits; got != int64(len(ps)) {
		t.Fatalf("after drain %d hits processed, want %d", got, len(ps))
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, px := col.Counts(); px != int64(len(ps)) {
		t.Fatalf("collected %d pixels, want %d", px, len(ps))
	}
}

func TestPool_MissingLastFrameIsAnInvariantError(t *testing.T) {
	t.Parallel()

	p := NewPool(domain.Options{Workers: 2, Params: testParams}, NewCollector(nil))
	p.Start(context.Background())
	f := partition.New(0, []hit.Pixel{{X: 1, Y: 1, Time: 0}})
	if err := p.Submit(context.Background(), f); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Close(); !perr.IsCode(err, perr.ErrorCodeInvariant) {
		t.Fatalf("want invariant error for an unfinished cut, got %v", err)
	}
}

func TestSlots_ReleaseOnceEveryPartLands(t *testing.T) {
	t.Parallel()

	s := newSlots()
	if h := s.putCarried(3, []hit.Pixel{{X: 1}}, frameEdge{end: 40}); h != nil {
		t.Fatalf("released with one part")
	}
	if h := s.putBack(3, []hit.Cluster{{}}); h != nil {
		t.Fatalf("released before the earlier station passed its clusters on")
	}
	if s.pending() != 1 {
		t.Fatalf("pending = %d", s.pending())
	}
	h := s.putChained(3, []hit.Cluster{{}, {}})
	if h == nil || h.seq != 3 || len(h.carried) != 1 || len(h.back) != 1 || len(h.chained) != 2 || h.next.end != 40 {
		t.Fatalf("bad release %+v", h)
	}
	if s.pending() != 0 {
		t.Fatalf("slot not removed")
	}

	// the first cut has no earlier station
	if s.putBack(0, nil) != nil {
		t.Fatalf("cut 0 released with one part")
	}
	if h := s.putCarried(0, nil, frameEdge{last: true}); h == nil || !h.next.last {
		t.Fatalf("cut 0 not released: %+v", h)
	}
}

func TestCollector_ForwardsAndCounts(t *testing.T) {
	t.Parallel()

	var sink memSink
	c := NewCollector(&sink)
	c.Add("worker", nil)
	c.Add("worker", []hit.Cluster{{Pixels: make([]hit.Pixel, 2)}, {Pixels: make([]hit.Pixel, 3)}})
	n, px := c.Counts()
	if n != 2 || px != 5 || len(sink.all()) != 2 {
		t.Fatalf("n=%d px=%d sink=%d", n, px, len(sink.all()))
	}
}

// gateSink blocks the first Push until open is closed
type gateSink struct {
	first   sync.Once
	entered chan struct{}
	open    chan struct{}
	pushed  atomic.Int64
}

func (g *gateSink) Push(hit.Cluster) {
	g.first.Do(func() {
		close(g.entered)
		<-g.open
	})
	g.pushed.Add(1)
}

func TestCollector_SlowSinkDoesNotHoldTheLock(t *testing.T) {
	t.Parallel()

	g := &gateSink{entered: make(chan struct{}), open: make(chan struct{})}
	defer close(g.open)
	c := NewCollector(g)
	go c.Add("worker", []hit.Cluster{{Pixels: make([]hit.Pixel, 1)}})
	<-g.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Add("station", []hit.Cluster{{Pixels: make([]hit.Pixel, 2)}})
		if n, px := c.Counts(); n != 2 || px != 3 {
			t.Errorf("counts %d/%d while the sink is busy", n, px)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Add and Counts waited for a blocked sink")
	}
	if g.pushed.Load() != 1 {
		t.Fatalf("second cluster not pushed: %d", g.pushed.Load())
	}
}

func TestSizeFilter(t *testing.T) {
	t.Parallel()

	var sink memSink
	if NewSizeFilter(&sink, 0, false) != domain.Sink(&sink) {
		t.Fatalf("size 0 should not wrap")
	}
	f := NewSizeFilter(&sink, 2, false).(*SizeFilter)
	for _, n := range []int{1, 2, 3} {
		f.Push(hit.Cluster{Pixels: make([]hit.Pixel, n)})
	}
	if len(sink.all()) != 2 || f.Dropped() != 1 {
		t.Fatalf("kept %d dropped %d", len(sink.all()), f.Dropped())
	}
	big := &SizeFilter{Size: 2, Bigger: true}
	if !big.Keep(2) || big.Keep(3) {
		t.Fatalf("bigger filter keeps the wrong sizes")
	}
}
