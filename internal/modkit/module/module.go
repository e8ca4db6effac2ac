// Package module holds the module contract and the port lookups used during bootstrap
package module

import (
	phttp "hitclust/internal/platform/net/http"
)

// Module is something the API can mount and query for ports
type Module interface {
	Name() string
	MountRoutes(r phttp.Router)
	// Ports returns the module's port set, usually a struct of interfaces, or nil
	Ports() any
}
