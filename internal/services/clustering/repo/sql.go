package repo

import (
	"context"
	"time"

	"hitclust/internal/core/hit"
	"hitclust/internal/modkit/repokit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/metrics"
	"hitclust/internal/platform/store"
	"hitclust/internal/services/clustering/domain"
)

// schemaSQL is understood by both sqlite and Postgres
const schemaSQL = `
	CREATE TABLE IF NOT EXISTS clusters (
		run_id     TEXT             NOT NULL,
		cluster_no BIGINT           NOT NULL,
		size       INTEGER          NOT NULL,
		energy     BIGINT           NOT NULL,
		min_time   DOUBLE PRECISION NOT NULL,
		max_time   DOUBLE PRECISION NOT NULL,
		bbox       TEXT             NOT NULL,
		pixels     TEXT             NOT NULL,
		PRIMARY KEY (run_id, cluster_no)
	)`

// NewSQL returns a binder over a row store; bulk loads go through db,
// reads through the bound Queryer (a transaction or db itself)
func NewSQL(db store.SQL) repokit.Binder[domain.ClusterStore] { return sqlBinder{db: db} }

type sqlBinder struct{ db store.SQL }

func (b sqlBinder) Bind(q repokit.Queryer) domain.ClusterStore {
	return &sqlStore{db: b.db, q: q}
}

type sqlStore struct {
	db store.SQL
	q  repokit.Queryer
}

func (s *sqlStore) Backend() string { return s.db.Name() }

func (s *sqlStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaSQL); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "create %s table", Table)
	}
	return nil
}

func (s *sqlStore) Save(ctx context.Context, runID string, first int64, cs []hit.Cluster) error {
	if len(cs) == 0 {
		return nil
	}
	start := time.Now()
	_, err := s.db.CopyRows(ctx, Table, Columns, rows(runID, first, cs))
	metrics.SinkWrites.WithLabelValues(s.db.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return perr.WrapIf(err, perr.ErrorCodeDB, "save clusters")
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context, runID string, p domain.Page) ([]domain.StoredCluster, error) {
	ph := s.db.Placeholder
	q := `SELECT ` + selectCols + ` FROM clusters WHERE run_id = ` + ph(1) + `
		ORDER BY cluster_no LIMIT ` + ph(2) + ` OFFSET ` + ph(3)
	out, err := store.Collect(store.Each(ctx, s.q, scanCluster, q, runID, limitOf(p), p.Offset))
	return out, dbErr(err, "list clusters")
}

func (s *sqlStore) Count(ctx context.Context, runID string) (int64, error) {
	n, err := store.First(ctx, s.q, store.ScanOne[int64], `SELECT COUNT(*) FROM clusters WHERE run_id = `+s.db.Placeholder(1), runID)
	return n, dbErr(err, "count clusters")
}

func (s *sqlStore) Delete(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		tag, err := q.Exec(ctx, `DELETE FROM clusters WHERE run_id = `+s.db.Placeholder(1), runID)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, perr.WrapIf(err, perr.ErrorCodeDB, "delete clusters")
	}
	return n, nil
}
