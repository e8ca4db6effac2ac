// Package module wires the clustering runs API using modkit
package module

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"hitclust/internal/adapters/ingest/hitfile"
	"hitclust/internal/core/calib"
	"hitclust/internal/core/hit"
	modkit "hitclust/internal/modkit"
	"hitclust/internal/modkit/httpkit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"

	"hitclust/internal/services/clustering/domain"
	chttp "hitclust/internal/services/clustering/http"
	"hitclust/internal/services/clustering/repo"
	"hitclust/internal/services/clustering/service"
)

// Ports exposed by the clustering module
type Ports struct {
	Runner domain.RunnerPort
	Runs   domain.RunsPort
}

// Module implements modkit.Module for batch runs
type Module struct {
	built  modkit.Built
	ports  Ports
	runs   *service.Runs
	cancel context.CancelFunc
}

// New constructs the clustering module from CORE_CLUSTER_* config
// invalid parameters or an unreachable cluster store panic at startup
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build("runs", "/runs", opts...)

	o, err := FromConfig(deps.Cfg)
	if err != nil {
		panic("clustering module: " + err.Error())
	}
	svc, err := service.New(o)
	if err != nil {
		panic("clustering module: " + err.Error())
	}

	store, err := clusterStore(deps)
	if err != nil {
		panic("clustering module: " + err.Error())
	}

	root, cancel := context.WithCancel(context.Background())
	runs := service.NewRuns(root, o, service.RunsOptions{
		Store:  store,
		Load:   loader(deps),
		Retain: retain(deps.Cfg),
		Batch:  storeBatch(deps.Cfg),
	})

	return &Module{
		built:  b,
		ports:  Ports{Runner: svc, Runs: runs},
		runs:   runs,
		cancel: cancel,
	}
}

// clusterStore opens the configured backend; without one runs keep clusters in memory
func clusterStore(deps modkit.Deps) (domain.ClusterStore, error) {
	if !deps.Persistent() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := repo.Open(ctx, deps.SQL, deps.CH)
	if err != nil {
		return nil, err
	}
	logger.Named("runs").Info().Str("backend", st.Backend()).Msg("clusters persisted")
	return st, nil
}

// loader reads hit files below CORE_CLUSTER_DATA_DIR; without it runs take inline pixels only
func loader(deps modkit.Deps) service.Loader {
	c := deps.Cfg.Prefix("CORE_CLUSTER_")
	root := c.MayString("DATA_DIR", "")
	if root == "" {
		return nil
	}
	fn := calibration(deps)
	return func(ctx context.Context, path string, raw bool) ([]hit.Pixel, error) {
		full, err := within(root, path)
		if err != nil {
			return nil, err
		}
		f := hitfile.Processed
		if raw {
			f = hitfile.Raw
		}
		ps, st, err := hitfile.Load(ctx, full, hitfile.Options{Format: f, Calib: fn})
		logger.NamedC(ctx, "runs").Debug().
			Str("path", path).
			Int64("lines", st.Lines).
			Int64("kept", st.Kept).
			Int64("malformed", st.Malformed).
			Msg("hit file loaded")
		return ps, err
	}
}

// within joins a request path to root and refuses escapes
func within(root, path string) (string, error) {
	full := filepath.Join(root, filepath.Clean("/"+path))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", perr.WithField(perr.InvalidArgf("path escapes the data directory"), "path")
	}
	return full, nil
}

// calibration loads CORE_CLUSTER_CALIB_DIR (a.txt b.txt c.txt t.txt) when set
func calibration(deps modkit.Deps) calib.Func {
	c := deps.Cfg.Prefix("CORE_CLUSTER_")
	dir := c.MayString("CALIB_DIR", "")
	if dir == "" {
		return nil
	}
	cal, err := calib.LoadDir(dir)
	if err != nil {
		panic("clustering module: " + err.Error())
	}
	cal.BuildLUT(c.MayIntIn("CALIB_LUT", 0, 0, 1<<14))
	return cal.Func()
}

// MountRoutes mounts the runs endpoints under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(r httpkit.Router) { chttp.Register(r, m.runs) })
}

// Close cancels every run still in flight
func (m *Module) Close() { m.cancel() }

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.built.Prefix }

// Ports returns the runner and run manager
func (m *Module) Ports() any { return m.ports }
