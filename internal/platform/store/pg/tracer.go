package pg

import (
	"context"
	"strings"
	"time"

	"hitclust/internal/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// tracer logs statements and COPY loads through the pgx tracing hooks
// bind values are not logged, only their count
type tracer struct {
	log  logger.Logger
	slow time.Duration
}

type startKey struct{}

type started struct {
	sql  string
	args int
	at   time.Time
}

var (
	_ pgx.QueryTracer    = (*tracer)(nil)
	_ pgx.CopyFromTracer = (*tracer)(nil)
)

func (t *tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, d pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, startKey{}, started{sql: d.SQL, args: len(d.Args), at: time.Now()})
}

func (t *tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, d pgx.TraceQueryEndData) {
	t.done(ctx, d.CommandTag, d.Err)
}

func (t *tracer) TraceCopyFromStart(ctx context.Context, _ *pgx.Conn, d pgx.TraceCopyFromStartData) context.Context {
	return context.WithValue(ctx, startKey{}, started{sql: "COPY " + d.TableName.Sanitize(), at: time.Now()})
}

func (t *tracer) TraceCopyFromEnd(ctx context.Context, _ *pgx.Conn, d pgx.TraceCopyFromEndData) {
	t.done(ctx, d.CommandTag, d.Err)
}

func (t *tracer) done(ctx context.Context, tag pgconn.CommandTag, err error) {
	s, ok := ctx.Value(startKey{}).(started)
	if !ok {
		return
	}
	elapsed := time.Since(s.at)
	slow := t.slow > 0 && elapsed >= t.slow
	ev := t.log.Debug()
	switch {
	case err != nil:
		ev = t.log.Error().Err(err)
	case slow:
		ev = t.log.Warn()
	}
	ev.Dur("elapsed", elapsed).
		Bool("slow", slow).
		Str("sql", compact(s.sql)).
		Int("args", s.args).
		Int64("rows", tag.RowsAffected()).
		Msg("pg query")
}

func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
