package modkit

import (
	"net/http"
	"strings"

	"hitclust/internal/modkit/httpkit"
)

// Option adjusts how a module is mounted
type Option func(*Built)

// Built is the resolved mount plan of a module
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	// Extra routes registered after the module's own
	Extra []func(httpkit.Router)
}

// Build resolves opts over the module defaults
func Build(name, prefix string, opts ...Option) Built {
	b := Built{Name: name, Prefix: prefix}
	for _, o := range opts {
		o(&b)
	}
	if strings.TrimSpace(b.Name) == "" {
		panic("modkit: module name is required")
	}
	b.Prefix = "/" + strings.Trim(b.Prefix, " /")
	if b.Prefix == "/" {
		panic("modkit: module " + b.Name + " needs a prefix")
	}
	return b
}

// Mount registers routes under the prefix with the module middleware in order
func (b Built) Mount(r httpkit.Router, routes func(httpkit.Router)) {
	r.Route(b.Prefix, func(rr httpkit.Router) {
		for _, mw := range b.Mw {
			rr.Use(mw)
		}
		if routes != nil {
			routes(rr)
		}
		for _, fn := range b.Extra {
			fn(rr)
		}
	})
}

// WithName overrides the name used for logs and port lookups
func WithName(name string) Option {
	return func(b *Built) { b.Name = name }
}

// WithPrefix mounts the module under another path
func WithPrefix(prefix string) Option {
	return func(b *Built) { b.Prefix = prefix }
}

// WithMiddlewares appends per module middleware
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithRoutes adds endpoints next to the module's own
func WithRoutes(fn func(httpkit.Router)) Option {
	return func(b *Built) { b.Extra = append(b.Extra, fn) }
}
