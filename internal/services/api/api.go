// Package api composes the HTTP control surface of hitclust
package api

import (
	"net/http"

	"hitclust/internal/platform/config"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/metrics"
	phttp "hitclust/internal/platform/net/http"
	"hitclust/internal/platform/store"

	"hitclust/internal/modkit"
	"hitclust/internal/modkit/httpkit"
	"hitclust/internal/modkit/module"
	"hitclust/internal/modkit/swaggerkit"

	metamod "hitclust/internal/services/api/meta/module"
	runsmod "hitclust/internal/services/clustering/module"
	onlinemod "hitclust/internal/services/online/module"
)

// Options are the API options
type Options struct {
	// Config is the root scope; modules read their own prefixes from it
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	// Online mounts the online controls; the batch runs are always mounted
	Online bool
}

// API holds the mounted modules that outlive a request
type API struct {
	Runs   *runsmod.Module
	Online *onlinemod.Module
	// Modules finds any mounted module by name
	Modules *module.Registry

	mods []modkit.Module
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) *API {
	deps := modkit.NewDeps(opt.Config, opt.Store, opt.Logger)

	a := &API{Runs: runsmod.New(deps), Modules: module.NewRegistry()}
	a.mods = []modkit.Module{metamod.New(deps), a.Runs}
	if opt.Online {
		a.Online = onlinemod.New(deps)
		a.mods = append(a.mods, a.Online)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	origins := opt.Config.Prefix("CORE_API_").MayCSV("CORS_ORIGINS", nil)
	httpkit.MountAPIV1(r, httpkit.CommonStack(origins), func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range a.mods {
			a.Modules.Register(m)
			m.MountRoutes(api)
		}
	})
	return a
}

// Close stops the online session, then background runs
func (a *API) Close() { modkit.CloseAll(a.mods) }
