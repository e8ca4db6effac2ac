package wire

import (
	"bytes"
	"strconv"

	"hitclust/internal/core/histogram"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
)

// Params is the parameter tuple carried by V messages
type Params struct {
	Delay        float64
	Span         float64
	Outer        int
	MinSize      int
	FilterBigger bool
}

func appendPixel(dst []byte, p hit.Pixel) []byte {
	dst = strconv.AppendUint(dst, uint64(p.X), 10)
	dst = append(dst, '\t')
	dst = strconv.AppendUint(dst, uint64(p.Y), 10)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(p.Value), 10)
	dst = append(dst, '\t')
	return strconv.AppendFloat(dst, p.Time, 'f', -1, 64)
}

func parsePixel(b []byte) (hit.Pixel, error) {
	f := bytes.Split(b, []byte{'\t'})
	if len(f) != 4 {
		return hit.Pixel{}, perr.Protocolf("pixel %q has %d fields, want 4", b, len(f))
	}
	x, err1 := strconv.ParseUint(string(f[0]), 10, 16)
	y, err2 := strconv.ParseUint(string(f[1]), 10, 16)
	v, err3 := strconv.ParseInt(string(f[2]), 10, 32)
	t, err4 := strconv.ParseFloat(string(f[3]), 64)
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			return hit.Pixel{}, perr.Wrapf(err, perr.ErrorCodeProtocol, "pixel %q", b)
		}
	}
	return hit.Pixel{X: uint16(x), Y: uint16(y), Value: int32(v), Time: t}, nil
}

// Clusters encodes finished clusters: pixels joined by ',' and every cluster closed by ';'
func Clusters(cs []hit.Cluster) Message {
	var b []byte
	for i := range cs {
		for j, p := range cs[i].Pixels {
			if j > 0 {
				b = append(b, ',')
			}
			b = appendPixel(b, p)
		}
		b = append(b, ';')
	}
	return Message{Kind: KindClusters, Payload: b}
}

// ParseClusters decodes a C payload; bounding boxes are rebuilt from the pixels
func ParseClusters(b []byte) ([]hit.Cluster, error) {
	var out []hit.Cluster
	for len(b) > 0 {
		end := bytes.IndexByte(b, ';')
		if end < 0 {
			return nil, perr.Protocolf("cluster %d is not terminated", len(out))
		}
		group := b[:end]
		b = b[end+1:]
		if len(group) == 0 {
			return nil, perr.Protocolf("cluster %d is empty", len(out))
		}
		var c hit.Cluster
		for _, raw := range bytes.Split(group, []byte{','}) {
			p, err := parsePixel(raw)
			if err != nil {
				return nil, err
			}
			c.Add(p)
		}
		out = append(out, c)
	}
	return out, nil
}

// Pixels encodes a plain pixel stream: every pixel followed by ',' and one trailing ';'
func Pixels(ps []hit.Pixel) Message {
	b := make([]byte, 0, len(ps)*16+1)
	for _, p := range ps {
		b = appendPixel(b, p)
		b = append(b, ',')
	}
	return Message{Kind: KindPixels, Payload: append(b, ';')}
}

// ParsePixels decodes a P payload
func ParsePixels(b []byte) ([]hit.Pixel, error) {
	items, err := terminatedList(b)
	if err != nil {
		return nil, err
	}
	out := make([]hit.Pixel, 0, len(items))
	for _, raw := range items {
		p, err := parsePixel(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Histogram encodes an energy spectrum: the pixel count, then every bin, each followed by ','
func Histogram(pixels uint64, bins []uint64) Message {
	b := strconv.AppendUint(nil, pixels, 10)
	b = append(b, ',')
	for _, n := range bins {
		b = strconv.AppendUint(b, n, 10)
		b = append(b, ',')
	}
	return Message{Kind: KindHistogram, Payload: append(b, ';')}
}

// ParseHistogram decodes an H payload
func ParseHistogram(b []byte) (pixels uint64, bins []uint64, err error) {
	items, err := terminatedList(b)
	if err != nil {
		return 0, nil, err
	}
	if len(items) == 0 {
		return 0, nil, perr.Protocolf("histogram has no pixel count")
	}
	nums := make([]uint64, len(items))
	for i, raw := range items {
		if nums[i], err = strconv.ParseUint(string(raw), 10, 64); err != nil {
			return 0, nil, perr.Wrapf(err, perr.ErrorCodeProtocol, "histogram field %d", i)
		}
	}
	return nums[0], nums[1:], nil
}

// Counts encodes a pixel count map as `x\ty\tcount,` entries and a trailing ';'
func Counts(cells []histogram.Cell) Message {
	b := make([]byte, 0, len(cells)*12+1)
	for _, c := range cells {
		b = strconv.AppendUint(b, uint64(c.X), 10)
		b = append(b, '\t')
		b = strconv.AppendUint(b, uint64(c.Y), 10)
		b = append(b, '\t')
		b = strconv.AppendUint(b, uint64(c.Count), 10)
		b = append(b, ',')
	}
	return Message{Kind: KindCounts, Payload: append(b, ';')}
}

// ParseCounts decodes an N payload; entries without a count are single hits
func ParseCounts(b []byte) ([]histogram.Cell, error) {
	items, err := terminatedList(b)
	if err != nil {
		return nil, err
	}
	out := make([]histogram.Cell, 0, len(items))
	for _, raw := range items {
		f := bytes.Split(raw, []byte{'\t'})
		if len(f) != 2 && len(f) != 3 {
			return nil, perr.Protocolf("count entry %q has %d fields", raw, len(f))
		}
		x, err1 := strconv.ParseUint(string(f[0]), 10, 16)
		y, err2 := strconv.ParseUint(string(f[1]), 10, 16)
		n := uint64(1)
		var err3 error
		if len(f) == 3 {
			n, err3 = strconv.ParseUint(string(f[2]), 10, 32)
		}
		for _, err := range []error{err1, err2, err3} {
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeProtocol, "count entry %q", raw)
			}
		}
		out = append(out, histogram.Cell{X: uint16(x), Y: uint16(y), Count: uint32(n)})
	}
	return out, nil
}

// Config encodes parameters as `delay,span,outer,minsize,bigger,;`
func Config(p Params) Message {
	b := strconv.AppendFloat(nil, p.Delay, 'f', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, p.Span, 'f', -1, 64)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(p.Outer), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(p.MinSize), 10)
	b = append(b, ',')
	if p.FilterBigger {
		b = append(b, '1')
	} else {
		b = append(b, '0')
	}
	return Message{Kind: KindConfig, Payload: append(b, ',', ';')}
}

// ParseConfig decodes a V payload; the comma after the last field is optional
func ParseConfig(b []byte) (Params, error) {
	if len(b) == 0 || b[len(b)-1] != ';' {
		return Params{}, perr.Protocolf("config is not terminated")
	}
	body := bytes.TrimSuffix(b[:len(b)-1], []byte{','})
	f := bytes.Split(body, []byte{','})
	if len(f) != 5 {
		return Params{}, perr.Protocolf("config has %d fields, want 5", len(f))
	}
	var (
		p    Params
		errs [5]error
		big  int64
		o, m int64
	)
	p.Delay, errs[0] = strconv.ParseFloat(string(f[0]), 64)
	p.Span, errs[1] = strconv.ParseFloat(string(f[1]), 64)
	o, errs[2] = strconv.ParseInt(string(f[2]), 10, 32)
	m, errs[3] = strconv.ParseInt(string(f[3]), 10, 32)
	big, errs[4] = strconv.ParseInt(string(f[4]), 10, 8)
	for i, err := range errs {
		if err != nil {
			return Params{}, perr.Wrapf(err, perr.ErrorCodeProtocol, "config field %d", i)
		}
	}
	p.Outer, p.MinSize, p.FilterBigger = int(o), int(m), big == 1
	return p, nil
}

// terminatedList splits `a,b,c,;` into [a b c]
func terminatedList(b []byte) ([][]byte, error) {
	if len(b) == 0 || b[len(b)-1] != ';' {
		return nil, perr.Protocolf("payload is not terminated by ';'")
	}
	b = b[:len(b)-1]
	if len(b) == 0 {
		return nil, nil
	}
	if b[len(b)-1] != ',' {
		return nil, perr.Protocolf("last entry is not followed by ','")
	}
	return bytes.Split(b[:len(b)-1], []byte{','}), nil
}
