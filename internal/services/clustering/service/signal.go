package service

import (
	"context"
	"sync"
)

// Stage is one step of the end-of-stream handshake
type Stage int

// Shutdown stages, fired strictly in this order
const (
	NoMoreFrames Stage = iota
	WorkersDrained
	FinalSent
	stageCount
)

func (s Stage) String() string {
	switch s {
	case NoMoreFrames:
		return "no_more_frames"
	case WorkersDrained:
		return "workers_drained"
	case FinalSent:
		return "final_sent"
	}
	return "unknown"
}

// Shutdown is a chain of one-shot signals; Advance fires the next stage only,
// so no observer can see a later stage without every earlier one
type Shutdown struct {
	mu   sync.Mutex
	next Stage
	done [stageCount]chan struct{}
}

// NewShutdown returns a chain with no stage fired
func NewShutdown() *Shutdown {
	s := &Shutdown{}
	for i := range s.done {
		s.done[i] = make(chan struct{})
	}
	return s
}

// Advance fires the next stage and returns it; it is a no-op once FinalSent fired
func (s *Shutdown) Advance() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= stageCount {
		return FinalSent
	}
	st := s.next
	close(s.done[st])
	s.next++
	return st
}

// Fired reports whether st has fired
func (s *Shutdown) Fired(st Stage) bool {
	select {
	case <-s.Done(st):
		return true
	default:
		return false
	}
}

// Done is closed once st fired
func (s *Shutdown) Done(st Stage) <-chan struct{} { return s.done[st] }

// Wait blocks until st fired or ctx ends
func (s *Shutdown) Wait(ctx context.Context, st Stage) error {
	select {
	case <-s.done[st]:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
