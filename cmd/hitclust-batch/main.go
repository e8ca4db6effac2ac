// Command hitclust-batch clusters one hit file with the partition and merge engine
//
//	hitclust-batch -in run.txt -clusters run.clusters.txt -snapshot run.hcs -sort size
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"hitclust/internal/core/hit"
	"hitclust/internal/core/version"
	"hitclust/internal/platform/config"
	"hitclust/internal/platform/logger"
)

func mustSetEnv(k, v string) {
	if v != "" {
		_ = os.Setenv(k, v)
	}
}

func main() {
	version.SetService("hitclust-batch")
	l := logger.Get()

	var (
		fIn       = flag.String("in", "", "hit file to cluster (required)")
		fRaw      = flag.Bool("raw", false, "input uses the raw index/ToA/fToA/ToT layout")
		fClusters = flag.String("clusters", "", "write a cluster dump here")
		fPixels   = flag.String("pixels", "", "write clustered pixels here")
		fSnapshot = flag.String("snapshot", "", "write a zstd snapshot here")
		fSort     = flag.String("sort", "", "order clusters before writing: size | time")
		fStats    = flag.String("stats", "", "write run statistics as JSON here (- for stdout)")
		fStore    = flag.Bool("store", false, "persist clusters to the configured SERVICE_* database")
		fCalib    = flag.String("calib", "", "calibration directory with a.txt b.txt c.txt t.txt")
		fWorkers  = flag.Int("workers", 0, "worker count (0 keeps CORE_CLUSTER_WORKERS)")
		fParams   = flag.String("params", "", "YAML parameter file")
	)
	flag.Parse()

	if *fIn == "" {
		l.Fatal().Msg("-in is required")
	}
	key, ok := hit.ParseSortKey(*fSort)
	if !ok {
		l.Fatal().Str("sort", *fSort).Msg("-sort must be size or time")
	}

	// engine options are read by the clustering module from CORE_CLUSTER_*
	if *fWorkers > 0 {
		mustSetEnv("CORE_CLUSTER_WORKERS", strconv.Itoa(*fWorkers))
	}
	mustSetEnv("CORE_CLUSTER_PARAMS_FILE", *fParams)
	mustSetEnv("CORE_CLUSTER_CALIB_DIR", *fCalib)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := Job{
		In:       *fIn,
		Raw:      *fRaw,
		Clusters: *fClusters,
		Pixels:   *fPixels,
		Snapshot: *fSnapshot,
		Sort:     key,
		Stats:    *fStats,
		Store:    *fStore,
	}
	rep, err := Run(ctx, config.New(), job)
	if err != nil {
		l.Fatal().Err(err).Str("in", *fIn).Msg("batch failed")
	}
	rep.Print(os.Stderr)
}
