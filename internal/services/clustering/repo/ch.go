package repo

import (
	"context"
	"time"

	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/metrics"
	"hitclust/internal/platform/store"
	"hitclust/internal/services/clustering/domain"
)

const chSchemaSQL = `
	CREATE TABLE IF NOT EXISTS clusters (
		run_id     String,
		cluster_no Int64,
		size       Int32,
		energy     Int64,
		min_time   Float64,
		max_time   Float64,
		bbox       String,
		pixels     String CODEC(ZSTD(3))
	)
	ENGINE = MergeTree
	ORDER BY (run_id, cluster_no)`

// NewCH returns a columnar cluster store
func NewCH(c store.Clickhouse) domain.ClusterStore { return &chStore{ch: c} }

type chStore struct{ ch store.Clickhouse }

func (s *chStore) Backend() string { return "clickhouse" }

func (s *chStore) EnsureSchema(ctx context.Context) error {
	if err := s.ch.Exec(ctx, chSchemaSQL); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "create %s table", Table)
	}
	return nil
}

func (s *chStore) Save(ctx context.Context, runID string, first int64, cs []hit.Cluster) error {
	if len(cs) == 0 {
		return nil
	}
	rs := rows(runID, first, cs)
	// the driver wants the column types exactly
	for _, r := range rs {
		r[2] = int32(r[2].(int))
	}
	start := time.Now()
	err := s.ch.Insert(ctx, Table, Columns, rs)
	metrics.SinkWrites.WithLabelValues("clickhouse").Observe(time.Since(start).Seconds())
	if err != nil {
		return perr.WrapIf(err, perr.ErrorCodeDB, "insert clusters")
	}
	return nil
}

func (s *chStore) List(ctx context.Context, runID string, p domain.Page) ([]domain.StoredCluster, error) {
	q := `SELECT ` + chSelectCols + ` FROM clusters WHERE run_id = ? ORDER BY cluster_no LIMIT ? OFFSET ?`
	out, err := store.Collect(store.Each(ctx, s.ch, scanCluster, q, runID, limitOf(p), p.Offset))
	return out, dbErr(err, "list clusters")
}

func (s *chStore) Count(ctx context.Context, runID string) (int64, error) {
	n, err := store.First(ctx, s.ch, store.ScanOne[int64], `SELECT toInt64(count()) FROM clusters WHERE run_id = ?`, runID)
	return n, dbErr(err, "count clusters")
}

// Delete issues a mutation; the rows disappear once the server applies it
func (s *chStore) Delete(ctx context.Context, runID string) (int64, error) {
	n, err := s.Count(ctx, runID)
	if err != nil || n == 0 {
		return 0, err
	}
	if err := s.ch.Exec(ctx, `ALTER TABLE clusters DELETE WHERE run_id = ?`, runID); err != nil {
		return 0, perr.WrapIf(err, perr.ErrorCodeDB, "delete clusters")
	}
	return n, nil
}
