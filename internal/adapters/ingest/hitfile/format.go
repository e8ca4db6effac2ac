// Package hitfile reads and writes detector hit files and cluster dumps
//
// Two line formats are read:
//
//	processed  x \t y \t value \t time_ns
//	raw        index \t ToA \t fToA \t ToT
//
// where a raw index is x*256 + y and the raw time is 25*ToA - 1.5625*fToA ns.
// Lines starting with '#' are comments, and both \n and \r\n endings are accepted.
package hitfile

import (
	"bytes"
	"strconv"

	"hitclust/internal/core/calib"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
)

// Format selects the line layout
type Format uint8

// Line formats
const (
	Processed Format = iota
	Raw
)

func (f Format) String() string {
	if f == Raw {
		return "raw"
	}
	return "processed"
}

// Raw clock periods in ns
const (
	ToAPeriod  = 25.0
	FToAPeriod = 1.5625
)

// Options control decoding
type Options struct {
	Format Format
	// Outer drops hits closer than this many cells to a sensor edge
	Outer int
	// Calib maps raw values to energies after the outer filter; nil keeps values
	Calib calib.Func
}

// lineKind is the outcome of parsing one line
type lineKind uint8

const (
	lineHit lineKind = iota
	lineSkip
	lineBad
)

// ParseLine decodes one line; ok is false for blank and comment lines
func ParseLine(line []byte, f Format) (p hit.Pixel, ok bool, err error) {
	k, p, err := parseLine(line, f)
	return p, k == lineHit, err
}

func parseLine(line []byte, f Format) (lineKind, hit.Pixel, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return lineSkip, hit.Pixel{}, nil
	}
	var fs [4][]byte
	n := 0
	for len(line) > 0 && n < 5 {
		i := bytes.IndexAny(line, " \t")
		if i < 0 {
			i = len(line)
		}
		if i > 0 {
			if n == 4 {
				n++
				break
			}
			fs[n] = line[:i]
			n++
		}
		line = line[min(i+1, len(line)):]
	}
	if n != 4 {
		return lineBad, hit.Pixel{}, perr.Malformedf("want 4 fields")
	}
	if f == Raw {
		return parseRaw(fs)
	}
	return parseProcessed(fs)
}

func parseProcessed(fs [4][]byte) (lineKind, hit.Pixel, error) {
	x, ex := strconv.ParseUint(string(fs[0]), 10, 16)
	y, ey := strconv.ParseUint(string(fs[1]), 10, 16)
	v, ev := strconv.ParseInt(string(fs[2]), 10, 32)
	t, et := strconv.ParseFloat(string(fs[3]), 64)
	if ex != nil || ey != nil || ev != nil || et != nil {
		return lineBad, hit.Pixel{}, perr.Malformedf("bad number in processed line")
	}
	p := hit.Pixel{X: uint16(x), Y: uint16(y), Value: int32(v), Time: t}
	if !p.InGrid() {
		return lineBad, hit.Pixel{}, perr.Malformedf("pixel (%d,%d) off the sensor", x, y)
	}
	return lineHit, p, nil
}

func parseRaw(fs [4][]byte) (lineKind, hit.Pixel, error) {
	idx, ei := strconv.ParseUint(string(fs[0]), 10, 32)
	toa, ea := strconv.ParseFloat(string(fs[1]), 64)
	ftoa, ef := strconv.ParseFloat(string(fs[2]), 64)
	tot, et := strconv.ParseInt(string(fs[3]), 10, 32)
	if ei != nil || ea != nil || ef != nil || et != nil {
		return lineBad, hit.Pixel{}, perr.Malformedf("bad number in raw line")
	}
	if idx >= hit.GridSize*hit.GridSize {
		return lineBad, hit.Pixel{}, perr.Malformedf("raw index %d off the sensor", idx)
	}
	return lineHit, hit.Pixel{
		X:     uint16(idx / hit.GridSize),
		Y:     uint16(idx % hit.GridSize),
		Value: int32(tot),
		Time:  ToAPeriod*toa - FToAPeriod*ftoa,
	}, nil
}

// Stats count what a decoder saw
type Stats struct {
	Lines     int64 `json:"lines"`
	Comments  int64 `json:"comments"`
	Malformed int64 `json:"malformed"`
	Filtered  int64 `json:"filtered"`
	Kept      int64 `json:"kept"`
}

// Add sums o into s
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Comments += o.Comments
	s.Malformed += o.Malformed
	s.Filtered += o.Filtered
	s.Kept += o.Kept
}

// decoder applies Options to parsed lines
type decoder struct {
	opts  Options
	stats Stats
	first error
}

// line decodes one line and reports whether p should be kept
func (d *decoder) line(b []byte) (hit.Pixel, bool) {
	d.stats.Lines++
	k, p, err := parseLine(b, d.opts.Format)
	switch k {
	case lineSkip:
		d.stats.Comments++
		return p, false
	case lineBad:
		d.stats.Malformed++
		if d.first == nil {
			d.first = perr.WithField(err, "line")
		}
		return p, false
	}
	if d.opts.Outer > 0 && !p.Inside(d.opts.Outer) {
		d.stats.Filtered++
		return p, false
	}
	if d.opts.Calib != nil {
		p.Value = d.opts.Calib(p.X, p.Y, p.Value)
	}
	d.stats.Kept++
	return p, true
}
