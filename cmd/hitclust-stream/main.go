// @title         hitclust API
// @version       0.1.0
// @description   Batch clustering runs and online measurement controls

// Command hitclust-stream serves the online clusterer and the HTTP API
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hitclust/internal/core/version"
	"hitclust/internal/modkit/repokit"
	"hitclust/internal/platform/config"
	"hitclust/internal/platform/logger"
	phttp "hitclust/internal/platform/net/http"
	"hitclust/internal/platform/store"

	"hitclust/internal/services/api"

	"golang.org/x/sync/errgroup"
)

func main() {
	version.SetService("hitclust-stream")
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stores are optional; runs keep clusters in memory without one
	var st *store.Store
	if cfg := store.FromEnv(root, "stream"); cfg.Any() {
		s, err := store.Open(ctx, cfg, store.WithLogger(*l))
		if err != nil {
			l.Panic().Err(err).Msg("store.Open failed")
		}
		st = s
		repokit.MustGuard(ctx, st)
		defer func() {
			if err := st.Close(context.Background()); err != nil {
				l.Error().Err(err).Msg("failed to close store")
			}
		}()
	}

	// http server (reads CORE_API_PORT)
	srv := phttp.NewServer(apiCfg)
	a := api.Mount(srv.Router(), api.Options{
		Config:         root,
		Store:          st,
		Logger:         l,
		EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
		EnableProfiler: apiCfg.MayBool("PROFILER", false),
		Online:         true,
	})
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return a.Online.Serve(gctx) })
	g.Go(func() error {
		// a viewer's -SHUT ends the process like a signal
		select {
		case <-a.Online.ShutdownRequested():
			l.Info().Msg("shutdown requested by viewer")
			stop()
		case <-gctx.Done():
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		l.Panic().Err(err).Msg("server stopped")
	}
}
