// Package metrics holds the process-wide prometheus collectors of the clustering pipeline
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame outcomes
const (
	FrameOK      = "ok"
	FrameDropped = "dropped"
	FrameForced  = "forced"
)

// Cluster stages
const (
	StageWorker  = "worker"
	StageStation = "station"
)

var (
	// HitsIngested counts pixels handed to a worker
	HitsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitclust_hits_ingested_total",
		Help: "Pixels handed to clustering workers",
	})

	// ClustersClosed counts finished clusters by the stage that closed them
	ClustersClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitclust_clusters_closed_total",
		Help: "Finished clusters by closing stage",
	}, []string{"stage"})

	// Frames counts frames by outcome
	Frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitclust_frames_total",
		Help: "Frames processed, dropped as malformed or cut early",
	}, []string{"outcome"})

	// FrameDuration observes per-frame worker time
	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hitclust_frame_duration_seconds",
		Help:    "Worker time spent clustering one frame",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// BoundaryClusters counts clusters forwarded to merge stations
	BoundaryClusters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitclust_boundary_clusters_total",
		Help: "Open clusters forwarded across a frame cut",
	})

	// CarriedPixels counts pixels re-attached by merge stations
	CarriedPixels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitclust_carried_pixels_total",
		Help: "Front boundary pixels forwarded to the preceding merge station",
	})

	// OrderRegressions counts hits older than their predecessor
	OrderRegressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitclust_order_regressions_total",
		Help: "Hits arriving with a timestamp older than the previous hit",
	})

	// WireMessages counts wire messages by direction and kind
	WireMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitclust_wire_messages_total",
		Help: "Wire protocol messages by direction and kind",
	}, []string{"direction", "kind"})

	// HTTPRequests observes control surface requests by route and status class
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hitclust_http_request_seconds",
		Help:    "HTTP request duration by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// SinkWrites observes cluster batches written to persistent sinks
	SinkWrites = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hitclust_sink_write_seconds",
		Help:    "Duration of cluster batch writes by backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})
)

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }
