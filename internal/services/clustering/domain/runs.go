package domain

import (
	"context"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
)

// RunStatus is the lifecycle state of a submitted run
type RunStatus string

// Run states
const (
	RunRunning  RunStatus = "running"
	RunDone     RunStatus = "done"
	RunFailed   RunStatus = "failed"
	RunCanceled RunStatus = "canceled"
)

// RunRequest asks for a batch run over inline pixels or a hit file on the server
// one of Pixels and Path is required
type RunRequest struct {
	Pixels []hit.Pixel `json:"pixels,omitempty" validate:"omitempty,max=2000000,dive"`
	// Path names a hit file readable by the server
	Path string `json:"path,omitempty" validate:"omitempty,max=4096"`
	// Raw selects the raw detector line format for Path
	Raw     bool              `json:"raw,omitempty"`
	Workers int               `json:"workers,omitempty" validate:"gte=0,lte=256"`
	Params  *clusterer.Params `json:"params,omitempty"`
	Filter  *Filter           `json:"filter,omitempty"`
}

// Run is the view of a submitted run
type Run struct {
	ID       string     `json:"id"`
	Status   RunStatus  `json:"status"`
	Started  time.Time  `json:"started_at"`
	Finished *time.Time `json:"finished_at,omitempty"`
	Stats    *Stats     `json:"stats,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// RunsPort manages asynchronous batch runs
type RunsPort interface {
	Start(ctx context.Context, req RunRequest) (Run, error)
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context) ([]Run, error)
	Cancel(ctx context.Context, id string) (Run, error)
	Clusters(ctx context.Context, id string, p Page) ([]StoredCluster, int64, error)
}
