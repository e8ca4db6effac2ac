package store

import (
	"context"

	"hitclust/internal/platform/store/ch"
)

// chAdapter exposes *ch.CH as Clickhouse; only result sets need converting
type chAdapter struct {
	*ch.CH
}

var (
	_ Clickhouse = chAdapter{}
	_ Pinger     = chAdapter{}
)

func newCHAdapter(c *ch.CH) chAdapter { return chAdapter{c} }

func (a chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.CH.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

// Ping also reads a row, which catches a connection that is only half open
func (a chAdapter) Ping(ctx context.Context) error {
	if err := a.CH.Ping(ctx); err != nil {
		return err
	}
	_, err := First(ctx, a, ScanOne[int32], "SELECT toInt32(1)")
	return err
}

type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
