package repo

import (
	"context"
	"sync"
	"time"

	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	"hitclust/internal/services/clustering/domain"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBatch is how many clusters a Sink buffers before it writes
const DefaultBatch = 2048

// Sink buffers pushed clusters and writes them to a ClusterStore in batches
// cluster numbers are assigned in push order starting at 0
//
// Push cannot fail, so the first write error is kept and returned by Flush;
// later batches are discarded once a write failed. Transient failures are
// retried a few times before they count.
type Sink struct {
	ctx   context.Context
	store domain.ClusterStore
	runID string
	size  int

	mu   sync.Mutex
	buf  []hit.Cluster
	next int64
	err  error
}

var (
	_ domain.Sink    = (*Sink)(nil)
	_ domain.Flusher = (*Sink)(nil)
)

// NewSink writes the clusters of runID; ctx bounds the writes made from Push
func NewSink(ctx context.Context, st domain.ClusterStore, runID string, batch int) *Sink {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Sink{ctx: ctx, store: st, runID: runID, size: batch, buf: make([]hit.Cluster, 0, batch)}
}

// Push buffers c and writes a full batch
func (s *Sink) Push(c hit.Cluster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.buf = append(s.buf, c)
	if len(s.buf) >= s.size {
		s.writeLocked(s.ctx)
	}
}

// Flush writes what is buffered and reports the first write error
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && len(s.buf) > 0 {
		s.writeLocked(ctx)
	}
	return s.err
}

// Written is the number of clusters handed to the store
func (s *Sink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

var saveBackOff = func(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

func (s *Sink) writeLocked(ctx context.Context) {
	log := logger.NamedC(ctx, "store")
	save := func() error {
		err := s.store.Save(ctx, s.runID, s.next, s.buf)
		if err != nil && !perr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	retry := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("backend", s.store.Backend()).Dur("wait", wait).Msg("retrying cluster batch")
	}
	if err := backoff.RetryNotify(save, saveBackOff(ctx), retry); err != nil {
		s.err = err
		log.Error().Err(err).
			Str("backend", s.store.Backend()).
			Int("batch", len(s.buf)).
			Msg("cluster batch write failed")
		return
	}
	s.next += int64(len(s.buf))
	s.buf = s.buf[:0]
}
