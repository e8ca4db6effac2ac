package store

import (
	"context"
	"iter"

	perr "hitclust/internal/platform/errors"
)

// Querier returns result sets; every SQL backend and Clickhouse is one
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Each yields the rows of a query mapped through scan. The first error,
// from the query, a scan or the driver, is yielded last.
func Each[T any](ctx context.Context, q Querier, scan func(Row) (T, error), sql string, args ...any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rs, err := q.Query(ctx, sql, args...)
		if err != nil {
			yield(zero, err)
			return
		}
		defer rs.Close()
		for rs.Next() {
			v, err := scan(rs)
			if !yield(v, err) || err != nil {
				return
			}
		}
		if err := rs.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// Collect drains seq, stopping at the first error
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// First is the first row of the query; an empty result is perr.ErrNotFound
func First[T any](ctx context.Context, q Querier, scan func(Row) (T, error), sql string, args ...any) (T, error) {
	for v, err := range Each(ctx, q, scan, sql, args...) {
		return v, err
	}
	var zero T
	return zero, perr.ErrNotFound
}

// ScanOne reads a single column row
func ScanOne[T any](r Row) (T, error) {
	var v T
	err := r.Scan(&v)
	return v, err
}
