package domain

import (
	"context"

	"hitclust/internal/core/hit"
)

// StoredCluster is one persisted cluster of a run
type StoredCluster struct {
	RunID   string      `json:"run_id"`
	No      int64       `json:"cluster_no"`
	Size    int         `json:"size"`
	Energy  int64       `json:"energy"`
	MinTime float64     `json:"min_time"`
	MaxTime float64     `json:"max_time"`
	BBox    [4]uint16   `json:"bbox"` // xmin, ymin, xmax, ymax
	Pixels  []hit.Pixel `json:"pixels"`
}

// Page bounds a listing
type Page struct {
	Limit  int `json:"limit" validate:"gte=0,lte=10000"`
	Offset int `json:"offset" validate:"gte=0"`
}

// ClusterStore persists the clusters of runs
type ClusterStore interface {
	EnsureSchema(ctx context.Context) error
	// Save writes cs numbered from first on
	Save(ctx context.Context, runID string, first int64, cs []hit.Cluster) error
	List(ctx context.Context, runID string, p Page) ([]StoredCluster, error)
	Count(ctx context.Context, runID string) (int64, error)
	// Delete drops every cluster of runID and reports how many went
	Delete(ctx context.Context, runID string) (int64, error)
	// Backend names the engine for logs and metrics
	Backend() string
}
