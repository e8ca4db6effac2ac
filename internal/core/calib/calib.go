// Package calib turns raw time-over-threshold values into calibrated energies
//
// A calibration is four per-pixel coefficient matrices (a, b, c, t) describing the
// surrogate function of each pixel. Energies are computed from the inverse of
// that function and truncated to int32.
package calib

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
)

// Cells is the number of pixels covered by one coefficient matrix
const Cells = hit.GridSize * hit.GridSize

// Func is the calibration collaborator applied once per hit before clustering
type Func func(x, y uint16, raw int32) int32

// Identity returns raw unchanged
func Identity(_, _ uint16, raw int32) int32 { return raw }

// Matrix holds one coefficient per pixel, row major by y
type Matrix [Cells]float64

// Calibration is a complete set of coefficient matrices
type Calibration struct {
	A, B, C, T *Matrix

	lut      [][]int32
	lutDepth int
}

// Energy returns the calibrated energy for a raw value on pixel (x, y)
// the result is 0 where the discriminant is not positive
func (c *Calibration) Energy(x, y uint16, raw int32) int32 {
	if c.lutDepth > 0 && raw >= 0 && int(raw) < c.lutDepth {
		return c.lut[raw][int(y)*hit.GridSize+int(x)]
	}
	return c.compute(int(y)*hit.GridSize+int(x), float64(raw))
}

func (c *Calibration) compute(off int, tot float64) int32 {
	a, b, cc, t := c.A[off], c.B[off], c.C[off], c.T[off]
	d := (b+t*a-tot)*(b+t*a-tot) + 4*a*cc
	if d <= 0 || a == 0 {
		return 0
	}
	e := (t*a + tot - b + math.Sqrt(d)) / (2 * a)
	if e > math.MaxInt32 || e < math.MinInt32 || math.IsNaN(e) {
		return 0
	}
	return int32(e)
}

// BuildLUT precomputes energies for raw values in [0, depth)
// depth <= 0 drops any table built earlier
func (c *Calibration) BuildLUT(depth int) {
	if depth <= 0 {
		c.lut, c.lutDepth = nil, 0
		return
	}
	lut := make([][]int32, depth)
	for tot := range depth {
		row := make([]int32, Cells)
		for off := range Cells {
			row[off] = c.compute(off, float64(tot))
		}
		lut[tot] = row
	}
	c.lut, c.lutDepth = lut, depth
}

// LUTDepth reports the depth of the precomputed table (0 when none)
func (c *Calibration) LUTDepth() int { return c.lutDepth }

// Func adapts the calibration to the collaborator signature; a nil calibration is Identity
func (c *Calibration) Func() Func {
	if c == nil {
		return Identity
	}
	return c.Energy
}

// ReadMatrix parses one whitespace separated coefficient matrix
// exactly Cells values are required; rows may be split across lines arbitrarily
func ReadMatrix(r io.Reader) (*Matrix, error) {
	var m Matrix
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	n := 0
	for sc.Scan() {
		if n == Cells {
			return nil, perr.InvalidArgf("calibration matrix has more than %d values", Cells)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "calibration value %d", n)
		}
		m[n] = v
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read calibration matrix")
	}
	if n != Cells {
		return nil, perr.InvalidArgf("calibration matrix has %d values, want %d", n, Cells)
	}
	return &m, nil
}

// Load reads the four matrices in a, b, c, t order
func Load(a, b, c, t io.Reader) (*Calibration, error) {
	var out Calibration
	dst := []**Matrix{&out.A, &out.B, &out.C, &out.T}
	for i, r := range []io.Reader{a, b, c, t} {
		m, err := ReadMatrix(r)
		if err != nil {
			return nil, perr.WithField(err, string("abct"[i]))
		}
		*dst[i] = m
	}
	return &out, nil
}

// LoadDir reads a.txt, b.txt, c.txt and t.txt from dir
func LoadDir(dir string) (*Calibration, error) {
	files := make([]io.Reader, 0, 4)
	for _, name := range []string{"a", "b", "c", "t"} {
		f, err := os.Open(filepath.Join(dir, name+".txt"))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open calibration %s", name)
		}
		defer f.Close()
		files = append(files, f)
	}
	return Load(files[0], files[1], files[2], files[3])
}

// FormatMatrix writes m as 256 lines of space separated values
func FormatMatrix(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	var sb strings.Builder
	for y := range hit.GridSize {
		sb.Reset()
		for x := range hit.GridSize {
			if x > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(m[y*hit.GridSize+x], 'g', -1, 64))
		}
		sb.WriteByte('\n')
		if _, err := bw.WriteString(sb.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
