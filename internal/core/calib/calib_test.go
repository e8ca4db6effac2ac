package calib

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/testkit"
)

func fill(v float64) *Matrix {
	var m Matrix
	for i := range m {
		m[i] = v
	}
	return &m
}

func uniform(a, b, c, t float64) *Calibration {
	return &Calibration{A: fill(a), B: fill(b), C: fill(c), T: fill(t)}
}

func TestEnergy_Formula(t *testing.T) {
	// a=1 b=0 c=0 t=0 reduces to E = ToT
	id := uniform(1, 0, 0, 0)
	for _, tot := range []int32{1, 7, 250} {
		if got := id.Energy(3, 4, tot); got != tot {
			t.Fatalf("identity coefficients: Energy(%d)=%d", tot, got)
		}
	}

	c := uniform(2, 1, 0, 0)
	if got := c.Energy(0, 0, 5); got != 2 {
		t.Fatalf("Energy(5)=%d want 2", got)
	}
	// discriminant is exactly 0 at ToT=1
	if got := c.Energy(0, 0, 1); got != 0 {
		t.Fatalf("zero discriminant should give 0, got %d", got)
	}
}

func TestEnergy_PerPixelOffset(t *testing.T) {
	c := uniform(1, 0, 0, 0)
	// pixel (x=5, y=2) gets a doubled slope
	c.A[2*256+5] = 2
	c.B[2*256+5] = 0
	if got := c.Energy(5, 2, 10); got != 5 {
		t.Fatalf("Energy(5,2)=%d want 5", got)
	}
	if got := c.Energy(2, 5, 10); got != 10 {
		t.Fatalf("transposed pixel should be untouched, got %d", got)
	}
}

func TestLUT_MatchesDirect(t *testing.T) {
	c := uniform(1.7, 23, 120, 3.1)
	c.A[1000] = 0.9
	want := make([]int32, 0, 64)
	for tot := int32(0); tot < 64; tot++ {
		want = append(want, c.Energy(uint16(1000%256), uint16(1000/256), tot))
	}

	c.BuildLUT(32)
	if c.LUTDepth() != 32 {
		t.Fatalf("LUTDepth=%d", c.LUTDepth())
	}
	for tot := int32(0); tot < 64; tot++ {
		if got := c.Energy(uint16(1000%256), uint16(1000/256), tot); got != want[tot] {
			t.Fatalf("ToT %d: lut=%d direct=%d", tot, got, want[tot])
		}
	}
	c.BuildLUT(0)
	if c.LUTDepth() != 0 {
		t.Fatalf("BuildLUT(0) should drop the table")
	}
}

func TestFunc_NilIsIdentity(t *testing.T) {
	var c *Calibration
	if got := c.Func()(1, 2, 42); got != 42 {
		t.Fatalf("nil calibration should be identity, got %d", got)
	}
}

func TestReadMatrix_RoundTripThroughFormat(t *testing.T) {
	m := fill(0)
	m[0], m[Cells-1], m[300] = 1.5, -2.25, 1e-3

	var buf bytes.Buffer
	if err := FormatMatrix(&buf, m); err != nil {
		t.Fatalf("format: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 256 {
		t.Fatalf("want 256 lines, got %d", n)
	}
	got, err := ReadMatrix(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if *got != *m {
		t.Fatalf("matrix changed after format/read")
	}
}

func TestReadMatrix_Errors(t *testing.T) {
	cases := map[string]string{
		"short":   "1 2 3",
		"garbage": strings.Repeat("1 ", Cells-1) + "x",
		"long":    strings.Repeat("0 ", Cells+1),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMatrix(strings.NewReader(in))
			if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
				t.Fatalf("want invalid argument, got %v", err)
			}
		})
	}
}

func TestLoadDir(t *testing.T) {
	row := strings.TrimSpace(strings.Repeat("1 ", 256)) + "\n"
	zero := strings.TrimSpace(strings.Repeat("0 ", 256)) + "\n"
	dir := filepath.Dir(testkit.WriteFile(t, "a.txt", strings.Repeat(row, 256)))
	for _, n := range []string{"b", "c", "t"} {
		if err := os.WriteFile(filepath.Join(dir, n+".txt"), []byte(strings.Repeat(zero, 256)), 0o600); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}

	c, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if got := c.Energy(200, 100, 33); got != 33 {
		t.Fatalf("Energy=%d want 33", got)
	}

	if _, err := LoadDir(t.TempDir()); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing files should be not found, got %v", err)
	}
}
