// Package module wires meta endpoints into the API
package module

import (
	"time"

	"hitclust/internal/core/version"
	modkit "hitclust/internal/modkit"
	"hitclust/internal/modkit/httpkit"
	"hitclust/internal/platform/store"

	metahttp "hitclust/internal/services/api/meta/http"
)

// Module serves health, readiness and build info
type Module struct {
	built modkit.Built
	deps  metahttp.Deps
}

// New builds the meta module; readiness pings whichever stores deps carries
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	return &Module{
		built: modkit.Build("meta", "/meta", opts...),
		deps: metahttp.Deps{
			Service: version.Info().Service,
			Started: time.Now(),
			Probes:  probes(deps),
		},
	}
}

func probes(deps modkit.Deps) []metahttp.Probe {
	var out []metahttp.Probe
	for _, b := range []struct {
		name string
		v    any
	}{{"sql", deps.SQL}, {"ch", deps.CH}} {
		if p, ok := b.v.(store.Pinger); ok {
			out = append(out, metahttp.Probe{Name: b.name, Ping: p.Ping})
		}
	}
	return out
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(r httpkit.Router) { metahttp.Register(r, m.deps) })
}

// Name implements modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports implements modkit.Module; meta exposes none
func (m *Module) Ports() any { return nil }
