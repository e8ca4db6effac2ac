// Package http serves liveness, readiness and build information
package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	"hitclust/internal/core/neighbor"
	"hitclust/internal/core/version"
	"hitclust/internal/modkit/httpkit"
)

// readyTimeout bounds all probes of one readiness request together
const readyTimeout = 2 * time.Second

// Probe is one readiness dependency
type Probe struct {
	Name string
	Ping func(context.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	Service string
	Started time.Time
	Probes  []Probe
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	httpkit.Get(r, "/health", d.health)
	httpkit.Get(r, "/ready", d.ready)
	httpkit.Get(r, "/version", func(*http.Request) (any, error) { return version.Info(), nil })
	httpkit.Get(r, "/engine", engine)
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	Service string `json:"service" example:"hitclust-stream"`
	Started string `json:"started" example:"2026-03-03T13:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"300"`
}

// ReadyCheck is the outcome of one probe
type ReadyCheck struct {
	Name  string `json:"name"            example:"sqlite"`
	OK    bool   `json:"ok"              example:"true"`
	Error string `json:"error,omitempty" example:"dial tcp 127.0.0.1:5432: connect: connection refused"`
}

// ReadyResponse is ok only when every probe is
type ReadyResponse struct {
	OK     bool         `json:"ok"`
	Checks []ReadyCheck `json:"checks"`
}

// EngineResponse reports the clustering defaults of this build
type EngineResponse struct {
	GridSize      int               `json:"grid_size" example:"256"`
	DefaultParams clusterer.Params  `json:"default_params"`
	Indexes       []string          `json:"indexes"   example:"adaptive,linear,quad"`
	CPUs          int               `json:"cpus"      example:"8"`
	Build         version.BuildInfo `json:"build"`
}

// @Summary Liveness and uptime
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /meta/health [get]
func (d Deps) health(*http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: d.Service,
		Started: d.Started.UTC().Format(time.RFC3339),
		Uptime:  int64(time.Since(d.Started) / time.Second),
	}, nil
}

// @Summary Readiness of the configured stores
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /meta/ready [get]
func (d Deps) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	res := ReadyResponse{OK: true, Checks: make([]ReadyCheck, 0, len(d.Probes))}
	for _, p := range d.Probes {
		c := ReadyCheck{Name: p.Name, OK: true}
		if err := p.Ping(ctx); err != nil {
			c.OK, c.Error = false, err.Error()
			res.OK = false
		}
		res.Checks = append(res.Checks, c)
	}
	if !res.OK {
		return httpkit.Status(http.StatusServiceUnavailable, res), nil
	}
	return res, nil
}

// @Summary Clustering defaults of this build
// @Tags Meta
// @Produce json
// @Success 200 {object} EngineResponse
// @Router /meta/engine [get]
func engine(*http.Request) (any, error) {
	return EngineResponse{
		GridSize:      hit.GridSize,
		DefaultParams: clusterer.DefaultParams(),
		Indexes:       neighbor.StrategyNames(),
		CPUs:          runtime.GOMAXPROCS(0),
		Build:         version.Info(),
	}, nil
}
