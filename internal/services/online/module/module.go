// Package module wires the online service using modkit
package module

import (
	"context"
	"net"
	"sync"

	modkit "hitclust/internal/modkit"
	"hitclust/internal/modkit/httpkit"
	perr "hitclust/internal/platform/errors"

	"hitclust/internal/services/online/domain"
	ohttp "hitclust/internal/services/online/http"
	"hitclust/internal/services/online/service"
)

// Ports exposed by the online module
type Ports struct {
	Control domain.ControlPort
}

// Module implements modkit.Module for the online service
type Module struct {
	built  modkit.Built
	cfg    Config
	ctl    *service.Controller
	ports  Ports
	done   chan struct{}
	doneMu sync.Once
}

// New constructs the online module from CORE_ONLINE_* config
// a bad feed spec or calibration panics at startup
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build("online", "/online", opts...)

	cfg, err := FromConfig(deps.Cfg)
	if err != nil {
		panic("online module: " + err.Error())
	}
	cal, err := calibration(deps.Cfg)
	if err != nil {
		panic("online module: " + err.Error())
	}
	open, err := Opener(cfg.Feed, cfg.FeedFormat, cal)
	if err != nil {
		panic("online module: " + err.Error())
	}

	m := &Module{
		built: b,
		cfg:   cfg,
		done:  make(chan struct{}),
	}
	co := cfg.Controller
	co.Open = open
	co.Shutdown = func() { m.doneMu.Do(func() { close(m.done) }) }
	m.ctl = service.NewController(co)
	m.ports = Ports{Control: m.ctl}
	return m
}

// Serve runs the wire server on CORE_ONLINE_WIRE_ADDR until ctx is done
// it returns at once when no address is configured
func (m *Module) Serve(ctx context.Context) error {
	if m.cfg.WireAddr == "" {
		return nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", m.cfg.WireAddr)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "listen %s", m.cfg.WireAddr)
	}
	return service.NewServer(m.ctl).Serve(ctx, ln)
}

// ShutdownRequested is closed when a viewer sends the shutdown command
func (m *Module) ShutdownRequested() <-chan struct{} { return m.done }

// MountRoutes mounts the control endpoints under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(r httpkit.Router) { ohttp.Register(r, m.ctl) })
}

// Close stops the running session
func (m *Module) Close() { m.ctl.Close() }

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.built.Prefix }

// Ports returns the control port
func (m *Module) Ports() any { return m.ports }
