// Package modkit wires API modules onto the shared router
package modkit

import "hitclust/internal/modkit/module"

// Module is the contract every mounted module satisfies
type Module = module.Module

// Closer is implemented by modules that own background work
type Closer interface {
	Close()
}

// CloseAll closes mods in reverse mount order, skipping those without background work
func CloseAll(mods []Module) {
	for i := len(mods) - 1; i >= 0; i-- {
		if c, ok := mods[i].(Closer); ok {
			c.Close()
		}
	}
}
