package service

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"hitclust/internal/core/wire"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/metrics"
)

// Server speaks the wire protocol with viewers over TCP
type Server struct {
	ctl *Controller
	// Depth is each viewer's outgoing queue
	Depth int
	// MaxMessage bounds an incoming message
	MaxMessage int
	// WriteTimeout bounds one message write
	WriteTimeout time.Duration

	wg sync.WaitGroup
}

// NewServer serves ctl
func NewServer(ctl *Controller) *Server {
	return &Server{ctl: ctl, Depth: 256, MaxMessage: 1 << 20, WriteTimeout: 5 * time.Second}
}

// Serve accepts viewers until ctx is done, then closes ln and waits for the connections
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.NamedC(ctx, "wire")
	log.Info().Str("addr", ln.Addr().String()).Msg("wire server listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "accept viewer")
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// handle runs one viewer connection: replies and broadcasts share a single writer
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	log := logger.NamedC(ctx, "wire").With().Str("viewer", conn.RemoteAddr().String()).Logger()
	log.Info().Msg("viewer connected")

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(cctx, func() { _ = conn.Close() })
	defer stop()

	hub := s.ctl.Hub()
	v := hub.Join(s.Depth)
	written := make(chan struct{})
	go func() {
		defer close(written)
		defer cancel()
		enc := wire.NewEncoder(conn)
		for m := range v.C() {
			_ = conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			if err := enc.Encode(m); err != nil {
				log.Debug().Err(err).Msg("write to viewer")
				return
			}
			metrics.WireMessages.WithLabelValues("out", m.Kind.String()).Inc()
		}
	}()

	s.read(cctx, conn, v)

	hub.Leave(v)
	<-written
	_ = conn.Close()
	log.Info().Msg("viewer disconnected")
}

// read decodes viewer messages until the connection ends
func (s *Server) read(ctx context.Context, conn net.Conn, v *Viewer) {
	log := logger.NamedC(ctx, "wire")
	dec := wire.NewDecoder(conn)
	dec.SetMax(s.MaxMessage)
	for {
		m, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			if c := perr.CodeOf(err); c == perr.ErrorCodeProtocol || c == perr.ErrorCodeExhausted {
				log.Warn().Err(err).Msg("bad message from viewer")
				s.reply(ctx, v, wire.Text(wire.KindError, err.Error()))
			}
			return
		}
		metrics.WireMessages.WithLabelValues("in", m.Kind.String()).Inc()
		for _, r := range s.ctl.Handle(ctx, m) {
			s.reply(ctx, v, r)
		}
	}
}

// reply queues m for this viewer only, waiting for room
func (s *Server) reply(ctx context.Context, v *Viewer, m wire.Message) {
	select {
	case v.out <- m:
	case <-ctx.Done():
	}
}
