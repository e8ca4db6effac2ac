// Package partition splits bounded hit sequences into contiguous frames
package partition

import (
	"bytes"

	"hitclust/internal/core/hit"
)

// Frame is a contiguous, time ordered slice of the hit stream owned by one worker
type Frame struct {
	Seq       int
	Pixels    []hit.Pixel
	FirstTime float64
	// Last marks the final frame of a run: its open clusters are final
	Last bool
	// Err is set when the records of this frame could not be decoded; the frame is dropped
	Err error
}

// Len returns the pixel count
func (f Frame) Len() int { return len(f.Pixels) }

// Covered is the time between the first and the last pixel
func (f Frame) Covered() float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	return f.Pixels[len(f.Pixels)-1].Time - f.Pixels[0].Time
}

// New builds a frame and fills FirstTime from the pixels
func New(seq int, ps []hit.Pixel) Frame {
	f := Frame{Seq: seq, Pixels: ps}
	if len(ps) > 0 {
		f.FirstTime = ps[0].Time
	}
	return f
}

// Plan is the result of a split
type Plan struct {
	Frames []Frame
	// CutTimes[i] is the first timestamp of Frames[i+1]
	CutTimes []float64
}

// Split cuts ps into n contiguous frames of near equal size
// n is clamped to [1, len(ps)] so no frame is empty; an empty input yields one empty frame
// frames share the backing array of ps
func Split(ps []hit.Pixel, n int) Plan {
	n = max(1, min(n, len(ps)))
	plan := Plan{Frames: make([]Frame, 0, n), CutTimes: make([]float64, 0, n-1)}
	lo := 0
	for i := 0; i < n; i++ {
		hi := (i + 1) * len(ps) / n
		f := New(i, ps[lo:hi:hi])
		if i > 0 {
			plan.CutTimes = append(plan.CutTimes, f.FirstTime)
		}
		plan.Frames = append(plan.Frames, f)
		lo = hi
	}
	plan.Frames[n-1].Last = true
	return plan
}

// Chunks cuts data into at most n pieces of near equal size, only after a '\n'
// so no record is split; pieces share data's backing array
func Chunks(data []byte, n int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	n = max(1, n)
	out := make([][]byte, 0, n)
	lo := 0
	for i := 1; i < n && lo < len(data); i++ {
		target := max(i*len(data)/n, lo)
		nl := bytes.IndexByte(data[target:], '\n')
		if nl < 0 {
			break
		}
		hi := target + nl + 1
		if hi <= lo {
			continue
		}
		out = append(out, data[lo:hi])
		lo = hi
	}
	if lo < len(data) {
		out = append(out, data[lo:])
	}
	return out
}
