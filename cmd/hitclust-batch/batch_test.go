package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hitclust/internal/adapters/ingest/hitfile"
	"hitclust/internal/adapters/snapshot"
	"hitclust/internal/core/hit"
	"hitclust/internal/platform/config"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/testkit"

	"github.com/sugawarayuuta/sonnet"
)

const input = "# test run\n" +
	"10\t10\t5\t0\n" +
	"11\t10\t3\t10\n" +
	"200\t200\t9\t5000\n" +
	"not a hit\n"

func TestRun_WritesEveryOutput(t *testing.T) {
	t.Setenv("CORE_CLUSTER_WORKERS", "2")
	dir := t.TempDir()
	job := Job{
		In:       testkit.WriteFile(t, "in.txt", input),
		Clusters: filepath.Join(dir, "out.clusters.txt"),
		Pixels:   filepath.Join(dir, "out.pixels.txt"),
		Snapshot: filepath.Join(dir, "out.hcs"),
		Stats:    filepath.Join(dir, "stats.json"),
		Sort:     hit.SortBySize,
	}
	rep, err := Run(context.Background(), config.New(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Engine.Clusters != 2 || rep.Engine.Hits != 3 || rep.Decode.Malformed != 1 {
		t.Fatalf("report %+v", rep)
	}

	f, err := os.Open(job.Clusters)
	if err != nil {
		t.Fatalf("open dump: %v", err)
	}
	defer f.Close()
	cs, err := hitfile.ReadClusters(f)
	if err != nil {
		t.Fatalf("ReadClusters: %v", err)
	}
	if len(cs) != 2 || len(cs[0].Pixels) != 2 || len(cs[1].Pixels) != 1 {
		t.Fatalf("dump not sorted by size: %+v", cs)
	}

	h, snap, err := snapshot.ReadFile(job.Snapshot)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if h.RunID != rep.Engine.RunID || len(snap) != 2 {
		t.Fatalf("snapshot header %+v with %d clusters", h, len(snap))
	}

	pixels, err := os.ReadFile(job.Pixels)
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	testkit.MustContain(t, string(pixels), "200\t200\t9\t5000")

	b, err := os.ReadFile(job.Stats)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var back Report
	if err := sonnet.Unmarshal(b, &back); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if back.Engine.Clusters != 2 || back.In != job.In {
		t.Fatalf("stats %+v", back)
	}

	var out bytes.Buffer
	rep.Print(&out)
	if !strings.Contains(out.String(), "clusters   2 (3 pixels)") {
		t.Fatalf("summary %q", out.String())
	}
}

func TestRun_StoresInSQLite(t *testing.T) {
	t.Setenv("CORE_CLUSTER_WORKERS", "2")
	t.Setenv("SERVICE_SQLITE_PATH", filepath.Join(t.TempDir(), "clusters.db"))
	rep, err := Run(context.Background(), config.New(), Job{
		In:    testkit.WriteFile(t, "in.txt", input),
		Store: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Stored != 2 || rep.Backend != "sqlite" {
		t.Fatalf("stored %d in %q", rep.Stored, rep.Backend)
	}
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Run(ctx, config.New(), Job{In: filepath.Join(t.TempDir(), "missing")}); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing input: %v", err)
	}
	in := testkit.WriteFile(t, "in.txt", input)
	if _, err := Run(ctx, config.New(), Job{In: in, Store: true}); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("store without backend: %v", err)
	}
}
