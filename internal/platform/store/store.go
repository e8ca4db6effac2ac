// Package store provides a unified interface to optional storage backends
package store

import (
	"context"
	"errors"
	"fmt"

	"hitclust/internal/platform/logger"
)

// Store holds the optional backends; a disabled backend is nil
// the zero value is usable and has nothing configured
type Store struct {
	// Log is handed to backend clients, tagged component=store
	Log logger.Logger

	PG   SQL
	Lite SQL
	CH   Clickhouse
}

// Option configures a Store before any backend opens
type Option func(*Store)

// WithLogger routes backend logs to log
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.Log = log }
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Batcher bulk loads rows into one table; cols name the values of every row in order
type Batcher interface {
	CopyRows(ctx context.Context, table string, cols []string, rows [][]any) (int64, error)
}

// Dialect tells repos how the backend spells things that differ between engines
type Dialect interface {
	// Placeholder returns the bind marker for the n-th (1-based) argument
	Placeholder(n int) string
	Name() string
}

// SQL is a row store backend: queries, transactions, bulk loads
type SQL interface {
	TxRunner
	Batcher
	Dialect
}

// Clickhouse is a tiny seam for columnar writes and queries
type Clickhouse interface {
	Insert(ctx context.Context, table string, cols []string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open connects the backends cfg enables; if one fails the ones already
// open are closed again
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	s.Log = s.Log.With().Str("component", "store").Logger()

	steps := []struct {
		on   bool
		open func() error
	}{
		{cfg.PG.Enabled, func() (err error) { s.PG, err = openPG(ctx, cfg, s); return }},
		{cfg.Lite.Enabled, func() (err error) { s.Lite, err = openLite(ctx, cfg, s); return }},
		{cfg.CH.Enabled, func() (err error) { s.CH, err = openCH(ctx, cfg, s); return }},
	}
	for _, st := range steps {
		if !st.on {
			continue
		}
		if err := st.open(); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

type backend struct {
	name string
	b    any
}

// backends lists what is configured, clickhouse first so it closes before the row stores
func (s *Store) backends() []backend {
	var out []backend
	if s.CH != nil {
		out = append(out, backend{"ch", s.CH})
	}
	if s.Lite != nil {
		out = append(out, backend{"sqlite", s.Lite})
	}
	if s.PG != nil {
		out = append(out, backend{"pg", s.PG})
	}
	return out
}

// Guard pings every backend that can be pinged and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	for _, be := range s.backends() {
		if p, ok := be.b.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", be.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend and joins the failures
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, be := range s.backends() {
		if c, ok := be.b.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", be.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
