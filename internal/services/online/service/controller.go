// Package service runs the online modes over a live hit feed and answers wire commands
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hitclust/internal/core/wire"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/net/http/bind"
	clustering "hitclust/internal/services/clustering/domain"
	"hitclust/internal/services/online/domain"
)

// Options configure a Controller
type Options struct {
	// Engine holds the pool and framing options; params and filters come from the session
	Engine clustering.Options
	Open   domain.Opener
	// FlushEvery is how often accumulated results are sent to viewers
	FlushEvery time.Duration
	HistBins   int
	HistWidth  int64
	// MaxPending sends early once this many pixels or clusters are waiting
	MaxPending int
	// Shutdown is called for the shutdown command
	Shutdown func()
}

// Defaults for Options fields left at zero
const (
	DefaultFlushEvery = 200 * time.Millisecond
	DefaultHistBins   = 1000
	DefaultHistWidth  = 10
	DefaultMaxPending = 1 << 16
)

func (o Options) withDefaults() Options {
	if o.FlushEvery <= 0 {
		o.FlushEvery = DefaultFlushEvery
	}
	if o.HistBins <= 0 {
		o.HistBins = DefaultHistBins
	}
	if o.HistWidth <= 0 {
		o.HistWidth = DefaultHistWidth
	}
	if o.MaxPending <= 0 {
		o.MaxPending = DefaultMaxPending
	}
	o.Engine = o.Engine.WithDefaults()
	return o
}

// Controller owns the current mode and the session running it
type Controller struct {
	opts Options
	hub  *Hub
	root context.Context
	stop context.CancelFunc

	// switching serializes mode changes; mu guards the fields below it
	switching sync.Mutex
	mu        sync.Mutex
	mode      domain.Mode
	params    domain.Params
	sess      *session
	since     time.Time

	hits     atomic.Int64
	clusters atomic.Int64
	feeding  atomic.Bool
	last     atomic.Pointer[clustering.Stats]
}

var _ domain.ControlPort = (*Controller)(nil)

// NewController starts idle with the default parameters
func NewController(opts Options) *Controller {
	root, stop := context.WithCancel(context.Background())
	return &Controller{
		opts:   opts.withDefaults(),
		hub:    NewHub(),
		root:   root,
		stop:   stop,
		mode:   domain.ModeIdle,
		params: domain.DefaultParams(),
		since:  time.Now(),
	}
}

// Hub returns the viewer hub
func (c *Controller) Hub() *Hub { return c.hub }

// Mode returns the current mode
func (c *Controller) Mode() domain.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode stops the running session and starts m on a fresh feed
// when the feed cannot be opened the controller falls back to idle and returns the error
func (c *Controller) SetMode(ctx context.Context, m domain.Mode) error {
	if !m.Valid() {
		return perr.WithField(perr.InvalidArgf("unknown mode %q", m), "mode")
	}
	c.switching.Lock()
	defer c.switching.Unlock()
	if err := c.root.Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "controller closed")
	}

	c.mu.Lock()
	old, p := c.sess, c.params
	c.sess = nil
	c.mu.Unlock()
	if old != nil {
		old.stop()
	}

	log := logger.NamedC(ctx, "online")
	if m == domain.ModeIdle {
		c.setMode(domain.ModeIdle, nil)
		log.Info().Msg("idle")
		return nil
	}
	if c.opts.Open == nil {
		c.setMode(domain.ModeIdle, nil)
		return perr.Unavailablef("no hit feed configured")
	}

	sctx, cancel := context.WithCancel(c.root)
	if id := logger.RunID(ctx); id != "" {
		sctx = logger.WithRun(sctx, id)
	}
	feed, err := c.opts.Open(sctx)
	if err != nil {
		cancel()
		c.setMode(domain.ModeIdle, nil)
		log.Warn().Err(err).Str("mode", string(m)).Msg("open feed failed, back to idle")
		return perr.WrapIf(err, perr.ErrorCodeUnavailable, "open hit feed")
	}

	s := &session{mode: m, cancel: cancel, done: make(chan struct{})}
	c.setMode(m, s)
	log.Info().Str("mode", string(m)).Interface("params", p).Msg("mode started")
	go c.run(sctx, s, feed, p)
	return nil
}

func (c *Controller) setMode(m domain.Mode, s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode, c.sess, c.since = m, s, time.Now()
}

// Params returns the parameters the next session will use
func (c *Controller) Params() domain.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetParams validates p and stores it; a running session keeps its parameters
// until the next mode change
func (c *Controller) SetParams(ctx context.Context, p domain.Params) (domain.Params, error) {
	if err := bind.Struct(p); err != nil {
		return domain.Params{}, err
	}
	c.mu.Lock()
	c.params = p
	c.mu.Unlock()
	logger.NamedC(ctx, "online").Info().Interface("params", p).Msg("params set")
	return p, nil
}

// Stats returns the current view
func (c *Controller) Stats() domain.Stats {
	c.mu.Lock()
	st := domain.Stats{Mode: c.mode, Params: c.params, Since: c.since}
	c.mu.Unlock()
	st.Feeding = c.feeding.Load()
	st.Viewers = c.hub.Viewers()
	st.Hits = c.hits.Load()
	st.Clusters = c.clusters.Load()
	st.Sent, st.Dropped = c.hub.Counts()
	if l := c.last.Load(); l != nil {
		cp := *l
		st.Last = &cp
	}
	return st
}

// Handle answers one message from a viewer; the replies go back to that viewer only
func (c *Controller) Handle(ctx context.Context, m wire.Message) []wire.Message {
	switch m.Kind {
	case wire.KindCommand:
		return c.Command(ctx, string(m.Payload))
	case wire.KindConfig:
		wp, err := wire.ParseConfig(m.Payload)
		if err != nil {
			return []wire.Message{wire.Text(wire.KindError, err.Error())}
		}
		p, err := c.SetParams(ctx, domain.FromWire(wp).Sanitize())
		if err != nil {
			return []wire.Message{wire.Text(wire.KindError, err.Error())}
		}
		return []wire.Message{wire.Config(p.Wire())}
	}
	return []wire.Message{wire.Text(wire.KindError, "unexpected message kind "+m.Kind.String())}
}

// Command runs the last command of text
//
// A mode change is acknowledged with the command itself, or with the idle command
// when the mode could not start.
func (c *Controller) Command(ctx context.Context, text string) []wire.Message {
	cmd := domain.LastCommand(text)
	switch cmd {
	case domain.CmdShutdown:
		logger.NamedC(ctx, "online").Info().Msg("shutdown requested")
		if c.opts.Shutdown != nil {
			c.opts.Shutdown()
		}
		return nil
	case domain.CmdHelp:
		return []wire.Message{wire.Text(wire.KindMessage, domain.Help)}
	}
	m, ok := domain.ModeOf(cmd)
	if !ok {
		return []wire.Message{wire.Text(wire.KindMessage, domain.UnknownCommand)}
	}
	if err := c.SetMode(ctx, m); err != nil {
		return []wire.Message{wire.Text(wire.KindAck, domain.CmdIdle)}
	}
	return []wire.Message{wire.Text(wire.KindAck, cmd)}
}

// Close stops the running session and refuses further mode changes
func (c *Controller) Close() {
	c.switching.Lock()
	defer c.switching.Unlock()
	c.stop()
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mode = domain.ModeIdle
	c.mu.Unlock()
	if s != nil {
		<-s.done
	}
}
