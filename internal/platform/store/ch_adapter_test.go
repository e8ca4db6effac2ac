package store

import (
	"context"
	"errors"
	"testing"

	perr "hitclust/internal/platform/errors"
	chx "hitclust/internal/platform/store/ch"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// stubRows yields n rows of toInt32(1)
type stubRows struct {
	driver.Rows
	n      int
	closed bool
}

func (r *stubRows) Next() bool {
	if r.n == 0 {
		return false
	}
	r.n--
	return true
}
func (r *stubRows) Scan(dest ...any) error { *(dest[0].(*int32)) = 1; return nil }
func (r *stubRows) Err() error             { return nil }
func (r *stubRows) Close() error           { r.closed = true; return nil }

type stubConn struct {
	chx.Conn
	pingErr error
	rows    *stubRows
}

func (c stubConn) Ping(context.Context) error { return c.pingErr }
func (c stubConn) Query(context.Context, string, ...any) (driver.Rows, error) {
	return c.rows, nil
}

func TestCHAdapter_Ping(t *testing.T) {
	ctx := context.Background()

	healthy := &stubRows{n: 1}
	if err := newCHAdapter(chx.New(stubConn{rows: healthy})).Ping(ctx); err != nil || !healthy.closed {
		t.Fatalf("healthy ping: %v closed=%v", err, healthy.closed)
	}

	down := errors.New("i/o timeout")
	if err := newCHAdapter(chx.New(stubConn{pingErr: down})).Ping(ctx); !errors.Is(err, down) {
		t.Fatalf("want the ping error, got %v", err)
	}

	if err := newCHAdapter(chx.New(stubConn{rows: &stubRows{}})).Ping(ctx); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("a ping that reads no row should fail, got %v", err)
	}
}
