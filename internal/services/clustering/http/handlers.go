// Package http provides http transport for clustering runs
package http

import (
	stdhttp "net/http"

	"hitclust/internal/modkit/httpkit"
	"hitclust/internal/services/clustering/domain"
)

// Register mounts the run routes
func Register(r httpkit.Router, runs domain.RunsPort) {
	h := &handlers{runs: runs}
	httpkit.PostJSON[domain.RunRequest](r, "/", h.start)
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.get)
	httpkit.Get(r, "/{id}/clusters", h.clusters)
	httpkit.Post(r, "/{id}/cancel", h.cancel)
}

type handlers struct{ runs domain.RunsPort }

// ClusterPage is one page of a run's clusters
type ClusterPage struct {
	Total    int64                  `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Clusters []domain.StoredCluster `json:"clusters"`
}

// @Summary Start a batch run
// @Tags runs
// @Accept json
// @Produce json
// @Param payload body domain.RunRequest true "Run"
// @Success 202 {object} domain.Run "accepted"
// @Failure 422 {object} httpkit.Envelope "invalid"
// @Router /runs [post]
func (h *handlers) start(r *stdhttp.Request, in domain.RunRequest) (any, error) {
	run, err := h.runs.Start(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Accepted(run), nil
}

// @Summary List runs, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} domain.Run "ok"
// @Router /runs [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.runs.List(r.Context())
}

// @Summary Get one run
// @Tags runs
// @Produce json
// @Success 200 {object} domain.Run "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /runs/{id} [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	return h.runs.Get(r.Context(), httpkit.Param(r, "id"))
}

// @Summary Page through the clusters of a finished run
// @Tags runs
// @Produce json
// @Param limit query int false "page size"
// @Param offset query int false "first cluster"
// @Success 200 {object} ClusterPage "ok"
// @Failure 409 {object} httpkit.Envelope "still running"
// @Router /runs/{id}/clusters [get]
func (h *handlers) clusters(r *stdhttp.Request) (any, error) {
	limit, err := httpkit.QueryInt(r, "limit", 100)
	if err != nil {
		return nil, err
	}
	offset, err := httpkit.QueryInt(r, "offset", 0)
	if err != nil {
		return nil, err
	}
	limit = min(max(limit, 1), 1000)
	cs, total, err := h.runs.Clusters(r.Context(), httpkit.Param(r, "id"), domain.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = []domain.StoredCluster{}
	}
	return ClusterPage{Total: total, Limit: limit, Offset: offset, Clusters: cs}, nil
}

// @Summary Cancel a running run
// @Tags runs
// @Produce json
// @Success 200 {object} domain.Run "ok"
// @Failure 409 {object} httpkit.Envelope "not running"
// @Router /runs/{id}/cancel [post]
func (h *handlers) cancel(r *stdhttp.Request) (any, error) {
	return h.runs.Cancel(r.Context(), httpkit.Param(r, "id"))
}
