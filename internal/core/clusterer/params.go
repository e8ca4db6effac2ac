package clusterer

import (
	"math"

	perr "hitclust/internal/platform/errors"
)

// Params are the time windows that drive closing and matching
type Params struct {
	// Delay is how long (ns) after its newest pixel a cluster stays open
	Delay float64 `json:"delay_ns" yaml:"delay_ns" validate:"finite,gte=0"`
	// Span is how far (ns) from its oldest pixel a cluster still accepts new pixels
	Span float64 `json:"span_ns" yaml:"span_ns" validate:"finite,gte=0"`
}

// DefaultParams matches the detector defaults used by the operator tools
func DefaultParams() Params { return Params{Delay: 500, Span: 300} }

// Validate rejects negative or non-finite windows
func (p Params) Validate() error {
	if !window(p.Delay) {
		return perr.WithField(perr.InvalidArgf("delay must be finite and >= 0, got %g", p.Delay), "delay_ns")
	}
	if !window(p.Span) {
		return perr.WithField(perr.InvalidArgf("span must be finite and >= 0, got %g", p.Span), "span_ns")
	}
	return nil
}

func window(v float64) bool { return v >= 0 && !math.IsInf(v, 1) }
