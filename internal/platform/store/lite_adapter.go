package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/store/lite"
)

// sqlQuerier is what *sql.DB and *sql.Tx share
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// liteAdapter wraps lite.Lite and implements SQL
type liteAdapter struct {
	l *lite.Lite
	liteQuerier
}

var _ SQL = (*liteAdapter)(nil)

func newLiteAdapter(l *lite.Lite) *liteAdapter {
	return &liteAdapter{l: l, liteQuerier: liteQuerier{q: l.DB}}
}

func (a *liteAdapter) Name() string           { return "sqlite" }
func (a *liteAdapter) Placeholder(int) string { return "?" }

func (a *liteAdapter) Ping(ctx context.Context) error {
	if a == nil || a.l == nil {
		return errors.New("sqlite: nil adapter")
	}
	return a.l.DB.PingContext(ctx)
}

func (a *liteAdapter) Close() error { return a.l.Close() }

func (a *liteAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.l.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(liteQuerier{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CopyRows inserts rows with one prepared statement inside a transaction
func (a *liteAdapter) CopyRows(ctx context.Context, table string, cols []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"

	tx, err := a.l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	st, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	var n int64
	for i, r := range rows {
		if _, err := st.ExecContext(ctx, r...); err != nil {
			return 0, perr.Wrapf(err, perr.ErrorCodeDB, "insert row %d into %s", i, table)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// liteQuerier adapts database/sql to RowQuerier, inside or outside a transaction
type liteQuerier struct{ q sqlQuerier }

func (x liteQuerier) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	res, err := x.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return liteTag{res: res, verb: verb(query)}, nil
}

func (x liteQuerier) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rs, err := x.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return liteRows{r: rs}, nil
}

func (x liteQuerier) QueryRow(ctx context.Context, query string, args ...any) Row {
	return liteRow{r: x.q.QueryRowContext(ctx, query, args...)}
}

type liteRow struct{ r *sql.Row }

// Scan maps sql.ErrNoRows onto perr.ErrNotFound like the other backends
func (x liteRow) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if errors.Is(err, sql.ErrNoRows) {
		return perr.ErrNotFound
	}
	return err
}

type liteRows struct{ r *sql.Rows }

func (x liteRows) Next() bool            { return x.r.Next() }
func (x liteRows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x liteRows) Err() error            { return x.r.Err() }
func (x liteRows) Close()                { _ = x.r.Close() }
func (x liteRows) Columns() []string {
	cols, _ := x.r.Columns()
	return cols
}

// liteTag renders a pg style command tag ("INSERT 0 3", "DELETE 2")
type liteTag struct {
	res  sql.Result
	verb string
}

func (t liteTag) RowsAffected() int64 {
	n, _ := t.res.RowsAffected()
	return n
}

func (t liteTag) String() string {
	n := t.RowsAffected()
	if t.verb == "INSERT" {
		return "INSERT 0 " + strconv.FormatInt(n, 10)
	}
	return strings.TrimSpace(t.verb + " " + strconv.FormatInt(n, 10))
}

func verb(q string) string {
	f := strings.Fields(q)
	if len(f) == 0 {
		return ""
	}
	return strings.ToUpper(f[0])
}
