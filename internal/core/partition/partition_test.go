package partition

import (
	"bytes"
	"strings"
	"testing"

	"hitclust/internal/core/hit"
)

func pixels(n int) []hit.Pixel {
	ps := make([]hit.Pixel, n)
	for i := range ps {
		ps[i] = hit.Pixel{X: uint16(i % 256), Time: float64(i * 10)}
	}
	return ps
}

func TestSplit_CoversInputContiguously(t *testing.T) {
	for _, tc := range []struct{ n, frames, want int }{
		{10, 1, 1},
		{10, 3, 3},
		{10, 4, 4},
		{3, 8, 3},
		{0, 4, 1},
	} {
		ps := pixels(tc.n)
		plan := Split(ps, tc.frames)
		if len(plan.Frames) != tc.want {
			t.Fatalf("n=%d frames=%d: got %d frames", tc.n, tc.frames, len(plan.Frames))
		}
		if len(plan.CutTimes) != tc.want-1 {
			t.Fatalf("cut times = %d, want %d", len(plan.CutTimes), tc.want-1)
		}
		total := 0
		for i, f := range plan.Frames {
			if f.Seq != i {
				t.Fatalf("seq %d at %d", f.Seq, i)
			}
			if tc.n > 0 && f.Len() == 0 {
				t.Fatalf("empty frame %d", i)
			}
			if f.Len() > 0 && (f.Pixels[0] != ps[total] || f.FirstTime != ps[total].Time) {
				t.Fatalf("frame %d does not continue at %d", i, total)
			}
			if i > 0 && plan.CutTimes[i-1] != f.FirstTime {
				t.Fatalf("cut time %d = %g, want %g", i-1, plan.CutTimes[i-1], f.FirstTime)
			}
			if f.Last != (i == len(plan.Frames)-1) {
				t.Fatalf("Last flag wrong on frame %d", i)
			}
			total += f.Len()
		}
		if total != tc.n {
			t.Fatalf("covered %d of %d", total, tc.n)
		}
	}
}

func TestSplit_FramesDoNotAlias(t *testing.T) {
	plan := Split(pixels(4), 2)
	f0 := plan.Frames[0]
	f0.Pixels = append(f0.Pixels, hit.Pixel{X: 99})
	if plan.Frames[1].Pixels[0].X == 99 {
		t.Fatalf("append on frame 0 overwrote frame 1")
	}
}

func TestFrame_Covered(t *testing.T) {
	if (Frame{}).Covered() != 0 {
		t.Fatalf("empty frame covers nothing")
	}
	if got := New(0, pixels(5)).Covered(); got != 40 {
		t.Fatalf("Covered() = %g, want 40", got)
	}
}

func TestChunks_SplitOnLineBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("1234\t5678\t9\t10\n")
	}
	data := []byte(b.String())
	for _, n := range []int{1, 2, 3, 7, 16} {
		cs := Chunks(data, n)
		if len(cs) == 0 || len(cs) > n {
			t.Fatalf("n=%d: got %d chunks", n, len(cs))
		}
		if !bytes.Equal(bytes.Join(cs, nil), data) {
			t.Fatalf("n=%d: chunks do not reassemble the input", n)
		}
		for i, c := range cs {
			if len(c) == 0 || c[len(c)-1] != '\n' {
				t.Fatalf("n=%d: chunk %d cut inside a record", n, i)
			}
		}
	}
}

func TestChunks_NoTrailingNewline(t *testing.T) {
	cs := Chunks([]byte("a\nb\nc"), 3)
	if got := string(bytes.Join(cs, []byte("|"))); got != "a\n|b\n|c" {
		t.Fatalf("chunks = %q", got)
	}
	if Chunks(nil, 4) != nil {
		t.Fatalf("empty input should give no chunks")
	}
	if cs := Chunks([]byte("one long line"), 4); len(cs) != 1 {
		t.Fatalf("single record should stay whole, got %d", len(cs))
	}
}
