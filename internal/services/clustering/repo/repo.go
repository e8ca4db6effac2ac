// Package repo persists clusters to sqlite, Postgres or ClickHouse
package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hitclust/internal/core/hit"
	"hitclust/internal/core/wire"
	"hitclust/internal/modkit/repokit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/store"
	"hitclust/internal/services/clustering/domain"
)

// Open picks the row store over clickhouse and creates the clusters table
// it returns nil, nil when neither backend is given
func Open(ctx context.Context, sql store.SQL, ch store.Clickhouse) (domain.ClusterStore, error) {
	var st domain.ClusterStore
	switch {
	case sql != nil:
		st = repokit.MustBind(NewSQL(sql), sql)
	case ch != nil:
		st = NewCH(ch)
	default:
		return nil, nil
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// Table holds one row per cluster
const Table = "clusters"

// Columns in insert order
var Columns = []string{"run_id", "cluster_no", "size", "energy", "min_time", "max_time", "bbox", "pixels"}

// row renders c as the values of Columns
func row(runID string, no int64, c *hit.Cluster) []any {
	return []any{
		runID,
		no,
		len(c.Pixels),
		c.Energy(),
		c.MinTime,
		c.MaxTime,
		formatBBox(c),
		string(wire.Pixels(c.Pixels).Payload),
	}
}

func rows(runID string, first int64, cs []hit.Cluster) [][]any {
	out := make([][]any, len(cs))
	for i := range cs {
		out[i] = row(runID, first+int64(i), &cs[i])
	}
	return out
}

func formatBBox(c *hit.Cluster) string {
	return fmt.Sprintf("%d,%d,%d,%d", c.XMin, c.YMin, c.XMax, c.YMax)
}

func parseBBox(s string) ([4]uint16, error) {
	var out [4]uint16
	f := strings.Split(s, ",")
	if len(f) != 4 {
		return out, perr.Newf(perr.ErrorCodeDB, "bbox %q has %d fields", s, len(f))
	}
	for i, v := range f {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeDB, "bbox %q", s)
		}
		out[i] = uint16(n)
	}
	return out, nil
}

// selectCols is the column order scanCluster reads; clickhouse stores size narrower
const (
	selectCols   = `run_id, cluster_no, size, energy, min_time, max_time, bbox, pixels`
	chSelectCols = `run_id, cluster_no, toInt64(size), energy, min_time, max_time, bbox, pixels`
)

func scanCluster(r store.Row) (domain.StoredCluster, error) {
	var s scanned
	if err := r.Scan(&s.runID, &s.no, &s.size, &s.energy, &s.minTime, &s.maxTime, &s.bbox, &s.pixels); err != nil {
		return domain.StoredCluster{}, perr.Wrap(err, perr.ErrorCodeDB, "scan cluster")
	}
	return s.cluster()
}

// dbErr codes driver errors; errors that already carry a code keep it
func dbErr(err error, msg string) error {
	if _, coded := perr.As(err); err == nil || coded {
		return err
	}
	return perr.Wrap(err, perr.ErrorCodeDB, msg)
}

// scanned is the raw column set read back from any backend
type scanned struct {
	runID   string
	no      int64
	size    int64
	energy  int64
	minTime float64
	maxTime float64
	bbox    string
	pixels  string
}

func (s scanned) cluster() (domain.StoredCluster, error) {
	bb, err := parseBBox(s.bbox)
	if err != nil {
		return domain.StoredCluster{}, err
	}
	ps, err := wire.ParsePixels([]byte(s.pixels))
	if err != nil {
		return domain.StoredCluster{}, perr.WithOp(err, "repo.pixels")
	}
	return domain.StoredCluster{
		RunID:   s.runID,
		No:      s.no,
		Size:    int(s.size),
		Energy:  s.energy,
		MinTime: s.minTime,
		MaxTime: s.maxTime,
		BBox:    bb,
		Pixels:  ps,
	}, nil
}

func limitOf(p domain.Page) int {
	if p.Limit <= 0 {
		return 100
	}
	return p.Limit
}
