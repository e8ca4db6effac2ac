// Package repokit holds the seams repos are written against
package repokit

import (
	"context"
	"fmt"

	"hitclust/internal/platform/store"
)

type (
	// Queryer is the read and write surface a bound repo uses
	Queryer = store.RowQuerier
	// TxRunner runs a function inside a transaction
	TxRunner   = store.TxRunner
	Rows       = store.Rows
	Row        = store.Row
	CommandTag = store.CommandTag
)

// Binder binds a repo to a Queryer, either the store itself or an open transaction
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds b to q and panics when q is nil
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: bind on a nil queryer")
	}
	return b.Bind(q)
}

// WithTx runs fn in one transaction of tx
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}

// MustGuard pings the configured backends and panics when one is down
func MustGuard(ctx context.Context, st interface{ Guard(context.Context) error }) {
	if err := st.Guard(ctx); err != nil {
		panic(fmt.Errorf("dependency guard failed: %w", err))
	}
}
