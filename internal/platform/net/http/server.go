package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"time"

	"hitclust/internal/platform/config"
	"hitclust/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server serves a chi mux and drains in-flight requests when its context ends
//
// It reads from its config scope:
//
//	PORT                 listen address or bare port, default :8080
//	READ_HEADER_TIMEOUT  default 10s
//	IDLE_TIMEOUT         default 2m
//	SHUTDOWN_GRACE       how long Run waits for requests on shutdown, default 5s
type Server struct {
	addr  string
	grace time.Duration
	mux   *chi.Mux
	srv   *stdhttp.Server
}

func NewServer(cfg config.Conf) *Server {
	mux := chi.NewRouter()
	addr := cfg.MayAddr("PORT", ":8080")
	return &Server{
		addr:  addr,
		grace: cfg.MayDuration("SHUTDOWN_GRACE", 5*time.Second),
		mux:   mux,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.MayDuration("READ_HEADER_TIMEOUT", 10*time.Second),
			IdleTimeout:       cfg.MayDuration("IDLE_TIMEOUT", 2*time.Minute),
		},
	}
}

// Router is the route facade over the server's mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr is the configured listen address
func (s *Server) Addr() string { return s.addr }

// Run listens on Addr and serves until ctx ends
func (s *Server) Run(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln; when ctx ends it stops accepting and waits up to the
// shutdown grace for open requests
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.Named("http")
	log.Info().Str("addr", ln.Addr().String()).Msg("http listening")

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("grace", s.grace).Msg("http draining")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	err := s.srv.Shutdown(sctx)
	<-served
	return err
}

// Shutdown stops the server without waiting for ctx to end
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
