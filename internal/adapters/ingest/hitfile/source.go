package hitfile

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source defaults
const (
	DefaultChunk = 4096
	DefaultAhead = 8
	readBuffer   = 1 << 20
)

// LineSource decodes a hit stream from a reader in the background
//
// Read never blocks: it returns (0, nil) until the next decoded chunk is ready
// and io.EOF once the reader is exhausted. It serves stdin, files and sockets.
type LineSource struct {
	opts   Options
	chunk  int
	r      io.Reader
	ch     chan []hit.Pixel
	cancel context.CancelFunc
	done   chan struct{}

	pending []hit.Pixel

	mu    sync.Mutex
	stats Stats
	err   error
}

// NewLineSource starts decoding r; chunk and ahead bound the hits held in memory
func NewLineSource(ctx context.Context, r io.Reader, opts Options, chunk, ahead int) *LineSource {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	if ahead <= 0 {
		ahead = DefaultAhead
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &LineSource{
		opts:   opts,
		chunk:  chunk,
		r:      r,
		ch:     make(chan []hit.Pixel, ahead),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(ctx)
	return s
}

func (s *LineSource) pump(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)
	log := logger.NamedC(ctx, "hitfile")

	br := bufio.NewReaderSize(transform.NewReader(s.r, unicode.BOMOverride(transform.Nop)), readBuffer)
	d := decoder{opts: s.opts}
	buf := make([]hit.Pixel, 0, s.chunk)

	send := func() bool {
		if len(buf) == 0 {
			return true
		}
		select {
		case s.ch <- buf:
		case <-ctx.Done():
			return false
		}
		buf = make([]hit.Pixel, 0, s.chunk)
		s.mu.Lock()
		s.stats = d.stats
		s.mu.Unlock()
		return true
	}

	var rerr error
	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// a line longer than the buffer is never a hit record
			d.stats.Lines++
			d.stats.Malformed++
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = br.ReadSlice('\n')
			}
			line = nil
		}
		if len(line) > 0 {
			if p, ok := d.line(line); ok {
				buf = append(buf, p)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				rerr = err
			}
			break
		}
		// ship when full, or when the next read would wait on the producer
		if len(buf) >= s.chunk || (br.Buffered() == 0 && len(buf) > 0) {
			if !send() {
				rerr = ctx.Err()
				break
			}
		}
	}
	if rerr == nil && !send() {
		rerr = ctx.Err()
	}

	s.mu.Lock()
	s.stats = d.stats
	if rerr != nil && ctx.Err() == nil {
		s.err = perr.WrapIf(rerr, perr.ErrorCodeUnavailable, "read hit stream")
	}
	s.mu.Unlock()

	if d.stats.Malformed > 0 {
		log.Warn().Int64("malformed", d.stats.Malformed).Err(d.first).Msg("skipped malformed hit lines")
	}
	log.Debug().Int64("lines", d.stats.Lines).Int64("kept", d.stats.Kept).Msg("hit stream ended")
}

// Read implements the clustering Source contract
func (s *LineSource) Read(ctx context.Context, buf []hit.Pixel) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, perr.Canceled(err)
	}
	if len(s.pending) == 0 {
		select {
		case c, ok := <-s.ch:
			if !ok {
				return 0, s.endErr()
			}
			s.pending = c
		default:
			return 0, nil
		}
	}
	n := copy(buf, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *LineSource) endErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return io.EOF
}

// Stats returns the decoder counters; they are final once Read has returned io.EOF
func (s *LineSource) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops the decoder; a reader that is also an io.Closer is closed to unblock it
func (s *LineSource) Close() error {
	s.cancel()
	c, ok := s.r.(io.Closer)
	if !ok {
		// a blocked read on a plain reader ends when its producer does
		return nil
	}
	err := c.Close()
	<-s.done
	return err
}
