package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/services/clustering/domain"
	"hitclust/internal/services/clustering/repo"

	"github.com/google/uuid"
)

// Loader reads the hits of a file named in a RunRequest
type Loader func(ctx context.Context, path string, raw bool) ([]hit.Pixel, error)

// RunsOptions configure the run manager
type RunsOptions struct {
	// Store persists clusters; nil keeps them in memory
	Store domain.ClusterStore
	Load  Loader
	// Retain is how many finished runs stay listed
	Retain int
	// Batch is the store write batch
	Batch int
}

type runState struct {
	view   domain.Run
	cancel context.CancelFunc
	done   chan struct{}

	// clusters is filled by concurrent Push calls while the run is going
	cmu      sync.Mutex
	clusters []hit.Cluster
}

// Push keeps c in memory
func (st *runState) Push(c hit.Cluster) {
	st.cmu.Lock()
	st.clusters = append(st.clusters, c)
	st.cmu.Unlock()
}

// Runs starts batch runs in the background and tracks them by id
type Runs struct {
	root context.Context
	base domain.Options
	opts RunsOptions

	mu    sync.RWMutex
	runs  map[string]*runState
	order []string
}

var _ domain.RunsPort = (*Runs)(nil)

// NewRuns builds a manager; runs live until root ends or they are canceled
func NewRuns(root context.Context, base domain.Options, opts RunsOptions) *Runs {
	if opts.Retain <= 0 {
		opts.Retain = 64
	}
	return &Runs{root: root, base: base, opts: opts, runs: map[string]*runState{}}
}

// Start validates req and launches the run
func (m *Runs) Start(_ context.Context, req domain.RunRequest) (domain.Run, error) {
	opts := m.base
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	if req.Params != nil {
		opts.Params = *req.Params
	}
	if req.Filter != nil {
		opts.Filter = *req.Filter
	}
	svc, err := New(opts)
	if err != nil {
		return domain.Run{}, err
	}
	if len(req.Pixels) == 0 && req.Path == "" {
		return domain.Run{}, perr.WithField(perr.InvalidArgf("pixels or path is required"), "pixels")
	}
	if req.Path != "" && m.opts.Load == nil {
		return domain.Run{}, perr.WithField(perr.InvalidArgf("this server does not read hit files"), "path")
	}
	for i, p := range req.Pixels {
		if !p.InGrid() {
			return domain.Run{}, perr.WithField(perr.InvalidArgf("pixel %d at (%d,%d) is off the %dx%d grid", i, p.X, p.Y, hit.GridSize, hit.GridSize), "pixels")
		}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(logger.WithRun(m.root, id))
	st := &runState{
		view:   domain.Run{ID: id, Status: domain.RunRunning, Started: time.Now().UTC()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.runs[id] = st
	m.order = append(m.order, id)
	gone := m.pruneLocked()
	view := st.view
	m.mu.Unlock()

	if len(gone) > 0 && m.opts.Store != nil {
		go m.purge(gone)
	}
	go m.run(ctx, svc, st, req)
	return view, nil
}

func (m *Runs) run(ctx context.Context, svc *Service, st *runState, req domain.RunRequest) {
	defer close(st.done)
	defer st.cancel()
	log := logger.NamedC(ctx, "runs")

	ps := req.Pixels
	var err error
	if req.Path != "" {
		ps, err = m.opts.Load(ctx, req.Path, req.Raw)
	}

	var stats domain.Stats
	if err == nil {
		var sink domain.Sink = st
		if m.opts.Store != nil {
			sink = repo.NewSink(context.WithoutCancel(ctx), m.opts.Store, st.view.ID, m.opts.Batch)
		}
		stats, err = svc.Batch(ctx, ps, sink)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	st.view.Finished = &now
	st.view.Stats = &stats
	switch {
	case err == nil:
		st.view.Status = domain.RunDone
	case perr.IsCode(err, perr.ErrorCodeCanceled):
		st.view.Status = domain.RunCanceled
	default:
		st.view.Status = domain.RunFailed
		st.view.Error = err.Error()
		log.Error().Err(err).Msg("run failed")
	}
}

// pruneLocked forgets the oldest finished runs past Retain and returns their ids
func (m *Runs) pruneLocked() []string {
	var gone []string
	for len(m.order) > m.opts.Retain {
		idx := slices.IndexFunc(m.order, func(id string) bool {
			return m.runs[id].view.Status != domain.RunRunning
		})
		if idx < 0 {
			break
		}
		gone = append(gone, m.order[idx])
		delete(m.runs, m.order[idx])
		m.order = slices.Delete(m.order, idx, idx+1)
	}
	return gone
}

// purge drops the stored clusters of forgotten runs
func (m *Runs) purge(ids []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.root), time.Minute)
	defer cancel()
	log := logger.NamedC(ctx, "runs")
	for _, id := range ids {
		n, err := m.opts.Store.Delete(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("run_id", id).Msg("purge failed")
			continue
		}
		log.Debug().Str("run_id", id).Int64("clusters", n).Msg("run purged")
	}
}

func (m *Runs) lookup(id string) (*runState, error) {
	st, ok := m.runs[id]
	if !ok {
		return nil, perr.NotFoundf("run %s not found", id)
	}
	return st, nil
}

// Get returns the view of run id
func (m *Runs) Get(_ context.Context, id string) (domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, err := m.lookup(id)
	if err != nil {
		return domain.Run{}, err
	}
	return st.view, nil
}

// List returns every tracked run, newest first
func (m *Runs) List(_ context.Context) ([]domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]].view)
	}
	return out, nil
}

// Cancel stops a running run and waits for it to settle
func (m *Runs) Cancel(ctx context.Context, id string) (domain.Run, error) {
	m.mu.RLock()
	st, err := m.lookup(id)
	if err == nil && st.view.Status != domain.RunRunning {
		err = perr.Conflictf("run %s is %s", id, st.view.Status)
	}
	m.mu.RUnlock()
	if err != nil {
		return domain.Run{}, err
	}

	st.cancel()
	select {
	case <-st.done:
	case <-ctx.Done():
		return domain.Run{}, perr.Canceled(ctx.Err())
	}
	return m.Get(ctx, id)
}

// Clusters pages through the clusters of a finished run
func (m *Runs) Clusters(ctx context.Context, id string, p domain.Page) ([]domain.StoredCluster, int64, error) {
	m.mu.RLock()
	st, err := m.lookup(id)
	var status domain.RunStatus
	if err == nil {
		status = st.view.Status
	}
	m.mu.RUnlock()
	if err != nil {
		return nil, 0, err
	}
	if status == domain.RunRunning {
		return nil, 0, perr.Conflictf("run %s is still running", id)
	}

	if m.opts.Store != nil {
		n, err := m.opts.Store.Count(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		cs, err := m.opts.Store.List(ctx, id, p)
		return cs, n, err
	}

	st.cmu.Lock()
	all := st.clusters
	st.cmu.Unlock()
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	lo := min(p.Offset, len(all))
	hi := min(lo+limit, len(all))
	out := make([]domain.StoredCluster, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, Stored(id, int64(i), &all[i]))
	}
	return out, int64(len(all)), nil
}

// Stored renders c the way a ClusterStore returns it
func Stored(runID string, no int64, c *hit.Cluster) domain.StoredCluster {
	return domain.StoredCluster{
		RunID:   runID,
		No:      no,
		Size:    len(c.Pixels),
		Energy:  c.Energy(),
		MinTime: c.MinTime,
		MaxTime: c.MaxTime,
		BBox:    [4]uint16{c.XMin, c.YMin, c.XMax, c.YMax},
		Pixels:  c.Pixels,
	}
}

// Wait blocks until run id finished; for callers that own the run's lifetime
func (m *Runs) Wait(ctx context.Context, id string) (domain.Run, error) {
	m.mu.RLock()
	st, err := m.lookup(id)
	m.mu.RUnlock()
	if err != nil {
		return domain.Run{}, err
	}
	select {
	case <-st.done:
	case <-ctx.Done():
		return domain.Run{}, perr.Canceled(ctx.Err())
	}
	return m.Get(ctx, id)
}
