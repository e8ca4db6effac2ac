// Package http exposes the online controls over HTTP
package http

import (
	stdhttp "net/http"

	"hitclust/internal/modkit/httpkit"
	"hitclust/internal/services/online/domain"
)

// Register mounts the online routes
func Register(r httpkit.Router, ctl domain.ControlPort) {
	h := &handlers{ctl: ctl}
	httpkit.Get(r, "/stats", h.stats)
	httpkit.Get(r, "/params", h.params)
	httpkit.PutJSON[domain.Params](r, "/params", h.setParams)
	httpkit.PostJSON[domain.ModeRequest](r, "/mode", h.setMode)
}

type handlers struct{ ctl domain.ControlPort }

// @Summary Online service state
// @Tags online
// @Produce json
// @Success 200 {object} domain.Stats "ok"
// @Router /online/stats [get]
func (h *handlers) stats(_ *stdhttp.Request) (any, error) {
	return h.ctl.Stats(), nil
}

// @Summary Parameters of the next session
// @Tags online
// @Produce json
// @Success 200 {object} domain.Params "ok"
// @Router /online/params [get]
func (h *handlers) params(_ *stdhttp.Request) (any, error) {
	return h.ctl.Params(), nil
}

// @Summary Replace the parameters
// @Tags online
// @Accept json
// @Produce json
// @Param payload body domain.Params true "Params"
// @Success 200 {object} domain.Params "ok"
// @Failure 400 {object} httpkit.Envelope "invalid"
// @Router /online/params [put]
func (h *handlers) setParams(r *stdhttp.Request, in domain.Params) (any, error) {
	return h.ctl.SetParams(r.Context(), in)
}

// @Summary Switch mode
// @Tags online
// @Accept json
// @Produce json
// @Param payload body domain.ModeRequest true "Mode"
// @Success 200 {object} domain.Stats "ok"
// @Failure 503 {object} httpkit.Envelope "feed unavailable"
// @Router /online/mode [post]
func (h *handlers) setMode(r *stdhttp.Request, in domain.ModeRequest) (any, error) {
	if err := h.ctl.SetMode(r.Context(), in.Mode); err != nil {
		return nil, err
	}
	return h.ctl.Stats(), nil
}
