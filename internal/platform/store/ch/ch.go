// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	perr "hitclust/internal/platform/errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL         string
	Role        string
	Tag         string
	DialTimeout time.Duration
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// Conn is the subset of driver.Conn the client uses
type Conn interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Close() error
}

// CH is a clickhouse client
type CH struct {
	conn Conn
}

var dial = func(opt *clickhouse.Options) (Conn, error) { return clickhouse.Open(opt) }

// Open parses the DSN and dials; connectivity is checked by the caller via Ping
func Open(_ context.Context, cfg Config) (*CH, error) {
	opt, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse clickhouse dsn")
	}
	opt.ClientInfo = clientInfo(cfg.Role, cfg.Tag)
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	conn, err := dial(opt)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "open clickhouse")
	}
	return &CH{conn: conn}, nil
}

// New wraps an existing connection
func New(conn Conn) *CH { return &CH{conn: conn} }

// Ping checks connectivity
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Exec runs a statement without results (DDL)
func (c *CH) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

// Insert appends rows to table in one native batch
// cols names the target columns in row order; empty means all columns
func (c *CH) Insert(ctx context.Context, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	q := "INSERT INTO " + table
	if len(cols) > 0 {
		q += " (" + strings.Join(cols, ", ") + ")"
	}
	b, err := c.conn.PrepareBatch(ctx, q)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "prepare batch for %s", table)
	}
	for i, r := range rows {
		if err := b.Append(r...); err != nil {
			_ = b.Abort()
			return perr.Wrapf(err, perr.ErrorCodeDB, "append row %d to %s", i, table)
		}
	}
	if err := b.Send(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "send batch to %s", table)
	}
	return nil
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	r, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Close closes resources
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// clientInfo shows up in system.query_log so runs can be traced to a binary and host
func clientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	orDash := func(s string) string {
		if s = strings.TrimSpace(s); s == "" {
			return "-"
		}
		return s
	}
	return clickhouse.ClientInfo{Products: []struct{ Name, Version string }{
		{Name: "hitclust", Version: orDash(tag)},
		{Name: "role", Version: orDash(role)},
		{Name: "go", Version: runtime.Version()},
		{Name: "host", Version: orDash(host)},
	}}
}
