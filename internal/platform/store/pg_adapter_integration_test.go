//go:build integration_pg

package store

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	perr "hitclust/internal/platform/errors"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// postgresDSN starts a throwaway postgres for the test and returns its url
func postgresDSN(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env:          map[string]string{"POSTGRES_USER": "hitclust", "POSTGRES_PASSWORD": "hitclust", "POSTGRES_DB": "hits"},
			// the entrypoint restarts the server once after init
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	tc.CleanupContainer(t, c)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	endpoint, err := c.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		t.Fatalf("postgres endpoint: %v", err)
	}
	return "postgres://hitclust:hitclust@" + endpoint + "/hits?sslmode=disable"
}

func TestPGAdapter_Integration_CopyRowsAndTx(t *testing.T) {
	dsn := postgresDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := Open(ctx, Config{
		AppName: "hitclust-test",
		PG:      PGConfig{Enabled: true, URL: dsn, MaxConns: 2, LogSQL: true, SlowQueryMs: 1000},
	}, WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close(ctx) }()

	if err := st.Guard(ctx); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	if _, err := st.PG.Exec(ctx, `CREATE TABLE clusters (run_id text, cluster_no int, size int, energy bigint)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows := [][]any{{"r1", 1, 3, int64(12)}, {"r1", 2, 1, int64(5)}, {"r2", 1, 7, int64(70)}}
	n, err := st.PG.CopyRows(ctx, "clusters", []string{"run_id", "cluster_no", "size", "energy"}, rows)
	if err != nil || n != 3 {
		t.Fatalf("CopyRows: %d %v", n, err)
	}

	total, err := First(ctx, st.PG, ScanOne[int64], `SELECT sum(energy) FROM clusters WHERE run_id = `+st.PG.Placeholder(1), "r1")
	if err != nil || total != 17 {
		t.Fatalf("sum: %d %v", total, err)
	}

	// a failing callback rolls back
	boom := fmt.Errorf("boom")
	err = st.PG.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `DELETE FROM clusters`); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("Tx error = %v", err)
	}
	left, err := First(ctx, st.PG, ScanOne[int64], `SELECT count(*) FROM clusters`)
	if err != nil || left != 3 {
		t.Fatalf("rollback lost rows: %d %v", left, err)
	}

	if tag, err := st.PG.Exec(ctx, `DELETE FROM clusters WHERE run_id = $1`, "r2"); err != nil || tag.RowsAffected() != 1 {
		t.Fatalf("delete: %v %v", tag, err)
	}
	if _, err := First(ctx, st.PG, ScanOne[int], `SELECT size FROM clusters WHERE run_id = $1`, "r9"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing row should be not found, got %v", err)
	}
}
