package main

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"hitclust/internal/adapters/ingest/hitfile"
	"hitclust/internal/adapters/snapshot"
	"hitclust/internal/core/calib"
	"hitclust/internal/core/hit"
	"hitclust/internal/modkit"
	"hitclust/internal/platform/config"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/store"

	"hitclust/internal/services/clustering/domain"
	cmodule "hitclust/internal/services/clustering/module"
	"hitclust/internal/services/clustering/repo"
	"hitclust/internal/services/clustering/service"

	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Job is one batch invocation; empty outputs are skipped
type Job struct {
	In       string
	Raw      bool
	Clusters string
	Pixels   string
	Snapshot string
	Sort     hit.SortKey
	Stats    string
	Store    bool
}

// Report is what a finished job prints
type Report struct {
	In      string        `json:"in"`
	Decode  hitfile.Stats `json:"decode"`
	Engine  domain.Stats  `json:"engine"`
	Stored  int64         `json:"stored"`
	Backend string        `json:"backend,omitempty"`
}

// output is a sink that has to be finished once every cluster was pushed
type output interface {
	domain.Sink
	domain.Flusher
}

// Run decodes the input into one frame per worker, clusters it and writes the outputs
func Run(ctx context.Context, root config.Conf, job Job) (Report, error) {
	log := logger.NamedC(ctx, "batch")
	rep := Report{In: job.In}

	opts, err := cmodule.FromConfig(root)
	if err != nil {
		return rep, err
	}
	svc, err := service.New(opts)
	if err != nil {
		return rep, err
	}
	opts = svc.Options()

	cal, err := calibration(root)
	if err != nil {
		return rep, err
	}

	data, err := os.ReadFile(job.In)
	if err != nil {
		if os.IsNotExist(err) {
			return rep, perr.WithField(perr.NotFoundf("hit file %s not found", job.In), "in")
		}
		return rep, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read %s", job.In)
	}
	format := hitfile.Processed
	if job.Raw {
		format = hitfile.Raw
	}
	frames, dst, err := hitfile.Frames(ctx, data, opts.Workers, hitfile.Options{
		Format: format,
		Outer:  opts.Filter.Outer,
		Calib:  cal,
	})
	rep.Decode = dst
	if err != nil {
		return rep, err
	}
	log.Debug().
		Int("frames", len(frames)).
		Int64("lines", dst.Lines).
		Int64("malformed", dst.Malformed).
		Msg("input decoded")

	var (
		mu sync.Mutex
		cs []hit.Cluster
	)
	rep.Engine, err = svc.BatchFrames(ctx, frames, domain.SinkFunc(func(c hit.Cluster) {
		mu.Lock()
		cs = append(cs, c)
		mu.Unlock()
	}))
	if err != nil {
		return rep, err
	}
	hit.Sort(cs, job.Sort)

	outs, closers, err := outputs(job, rep.Engine.RunID, opts)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return rep, err
	}

	var sink *repo.Sink
	if job.Store {
		st, name, done, err := clusterStore(ctx, root)
		if err != nil {
			return rep, err
		}
		defer done()
		sink = repo.NewSink(ctx, st, rep.Engine.RunID, 0)
		rep.Backend = name
		outs = append(outs, sink)
	}

	for i := range cs {
		for _, o := range outs {
			o.Push(cs[i])
		}
	}
	for _, o := range outs {
		if ferr := o.Flush(ctx); ferr != nil && err == nil {
			err = ferr
		}
	}
	if sink != nil {
		rep.Stored = sink.Written()
	}
	if err != nil {
		return rep, err
	}
	return rep, writeStats(job.Stats, rep)
}

// outputs opens the file sinks named by job
func outputs(job Job, runID string, opts domain.Options) ([]output, []io.Closer, error) {
	var (
		outs    []output
		closers []io.Closer
	)
	open := func(path string, mk func(io.Writer) *hitfile.Writer) error {
		f, err := os.Create(path)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "create %s", path)
		}
		closers = append(closers, f)
		outs = append(outs, mk(f))
		return nil
	}
	if job.Clusters != "" {
		if err := open(job.Clusters, hitfile.NewClusterWriter); err != nil {
			return outs, closers, err
		}
	}
	if job.Pixels != "" {
		if err := open(job.Pixels, hitfile.NewPixelWriter); err != nil {
			return outs, closers, err
		}
	}
	if job.Snapshot != "" {
		w, err := snapshot.Create(job.Snapshot, snapshot.Header{
			RunID:   runID,
			Params:  opts.Params,
			Created: time.Now().UTC(),
		})
		if err != nil {
			return outs, closers, err
		}
		outs = append(outs, w)
	}
	return outs, closers, nil
}

// calibration loads CORE_CLUSTER_CALIB_DIR when it is set
func calibration(root config.Conf) (calib.Func, error) {
	c := root.Prefix("CORE_CLUSTER_")
	dir := c.MayString("CALIB_DIR", "")
	if dir == "" {
		return nil, nil
	}
	cal, err := calib.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	cal.BuildLUT(c.MayIntIn("CALIB_LUT", 0, 0, 1<<14))
	return cal.Func(), nil
}

// clusterStore opens the first configured backend, sqlite before postgres before clickhouse
func clusterStore(ctx context.Context, root config.Conf) (domain.ClusterStore, string, func(), error) {
	cfg := store.FromEnv(root, "batch")
	if !cfg.Any() {
		return nil, "", nil, perr.Unavailablef("-store needs SERVICE_SQLITE_PATH, SERVICE_PGSQL_DBURL or SERVICE_CLICKHOUSE_DBURL")
	}
	s, err := store.Open(ctx, cfg, store.WithLogger(*logger.Get()))
	if err != nil {
		return nil, "", nil, err
	}
	done := func() { _ = s.Close(context.WithoutCancel(ctx)) }

	deps := modkit.NewDeps(root, s, nil)
	cs, err := repo.Open(ctx, deps.SQL, deps.CH)
	if err != nil {
		done()
		return nil, "", nil, err
	}
	return cs, cs.Backend(), done, nil
}

func writeStats(path string, rep Report) error {
	if path == "" {
		return nil
	}
	b, err := sonnet.MarshalIndent(rep, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "encode stats")
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "write %s", path)
	}
	return nil
}

// Print writes a human summary with grouped numbers
func (r Report) Print(w io.Writer) {
	p := message.NewPrinter(language.English)
	e := r.Engine
	p.Fprintf(w, "run %s  %s\n", e.RunID, r.In)
	p.Fprintf(w, "  lines      %d (malformed %d, filtered %d)\n", r.Decode.Lines, r.Decode.Malformed, r.Decode.Filtered)
	p.Fprintf(w, "  hits       %d\n", e.Hits)
	p.Fprintf(w, "  clusters   %d (%d pixels)\n", e.Clusters, e.ClusterPixels)
	p.Fprintf(w, "  frames     %d (dropped %d)\n", e.Frames, e.FramesDropped)
	p.Fprintf(w, "  stitched   %d of %d boundary clusters\n", e.Stitched, e.Boundary)
	p.Fprintf(w, "  elapsed    %v  %.2f MHits/s\n", e.Elapsed.Round(time.Microsecond), e.MHitsPerSec())
	if r.Backend != "" {
		p.Fprintf(w, "  stored     %d clusters in %s\n", r.Stored, r.Backend)
	}
}
