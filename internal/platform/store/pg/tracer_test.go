package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type logLine struct {
	Level string `json:"level"`
	SQL   string `json:"sql"`
	Args  int    `json:"args"`
	Rows  int64  `json:"rows"`
	Slow  bool   `json:"slow"`
	Error string `json:"error"`
}

func traced(t *testing.T, slow time.Duration, run func(*tracer)) []logLine {
	t.Helper()
	var buf bytes.Buffer
	tr := &tracer{log: zerolog.New(&buf).Level(zerolog.DebugLevel), slow: slow}
	run(tr)
	var out []logLine
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var l logLine
		if err := dec.Decode(&l); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		out = append(out, l)
	}
	return out
}

func TestTracer_Query(t *testing.T) {
	lines := traced(t, time.Hour, func(tr *tracer) {
		ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
			SQL:  "DELETE FROM clusters\n\tWHERE run_id = $1",
			Args: []any{"r1"},
		})
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("DELETE 4")})
	})
	if len(lines) != 1 {
		t.Fatalf("lines %+v", lines)
	}
	l := lines[0]
	if l.Level != "debug" || l.SQL != "DELETE FROM clusters WHERE run_id = $1" || l.Args != 1 || l.Rows != 4 || l.Slow {
		t.Fatalf("line %+v", l)
	}
}

func TestTracer_SlowAndFailed(t *testing.T) {
	lines := traced(t, time.Nanosecond, func(tr *tracer) {
		ctx := tr.TraceCopyFromStart(context.Background(), nil, pgx.TraceCopyFromStartData{TableName: pgx.Identifier{"clusters"}})
		time.Sleep(time.Millisecond)
		tr.TraceCopyFromEnd(ctx, nil, pgx.TraceCopyFromEndData{CommandTag: pgconn.NewCommandTag("COPY 2")})

		ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("conn reset")})
	})
	if len(lines) != 2 {
		t.Fatalf("lines %+v", lines)
	}
	if c := lines[0]; c.Level != "warn" || !c.Slow || c.SQL != `COPY "clusters"` || c.Rows != 2 {
		t.Fatalf("copy line %+v", c)
	}
	if e := lines[1]; e.Level != "error" || e.Error != "conn reset" {
		t.Fatalf("error line %+v", e)
	}
}

func TestTracer_EndWithoutStart(t *testing.T) {
	lines := traced(t, 0, func(tr *tracer) {
		tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	})
	if len(lines) != 0 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}
