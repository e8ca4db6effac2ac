package store

import (
	"context"
	"errors"
	"strconv"

	perr "hitclust/internal/platform/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgAdapter implements SQL over a pgx pool
// statement tracing lives on the pool's connection config
type pgAdapter struct {
	pool *pgxpool.Pool
}

var _ SQL = (*pgAdapter)(nil)

func newPGAdapter(p *pgxpool.Pool) *pgAdapter { return &pgAdapter{pool: p} }

func (a *pgAdapter) Name() string             { return "postgres" }
func (a *pgAdapter) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.pool == nil {
		return errors.New("pg: nil adapter")
	}
	return a.pool.Ping(ctx)
}

func (a *pgAdapter) Close() error { a.pool.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	ct, err := a.pool.Exec(ctx, sql, args...)
	return tag{ct}, err
}

func (a *pgAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := a.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows{rs}, nil
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return row{a.pool.QueryRow(ctx, sql, args...)}
}

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		return fn(txQuerier{tx})
	})
}

// CopyRows streams rows through the COPY protocol
func (a *pgAdapter) CopyRows(ctx context.Context, table string, cols []string, rs [][]any) (int64, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	n, err := a.pool.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rs))
	if err != nil {
		return n, perr.FromPostgresf(err, "copy into %s", table)
	}
	return n, nil
}

type row struct{ r pgx.Row }

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if errors.Is(err, pgx.ErrNoRows) {
		return perr.ErrNotFound
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }

// txQuerier runs statements inside a pgx transaction
type txQuerier struct{ tx pgx.Tx }

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	ct, err := t.tx.Exec(ctx, sql, args...)
	return tag{ct}, err
}

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows{rs}, nil
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return row{t.tx.QueryRow(ctx, sql, args...)}
}
