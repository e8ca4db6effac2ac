package hitfile

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// now is the clock stamped into file headers
var now = time.Now

// footer numbers are printed with thousands separators, SizeHint reads them back
var printer = message.NewPrinter(language.English)

const (
	stampLayout = "02-01-2006_15-04-05"
	rule        = "# " + "----------------------------------------------------------------" + "\r\n"
	hitsKey     = "Hits:"
	hintWindow  = 300
)

// Writer dumps clusters as a pixel file or a cluster file
//
// Both start with a '#' header. A cluster file opens each cluster with a
// "C<n>;" line. The footer carries the totals so SizeHint can size a reader.
type Writer struct {
	mu       sync.Mutex
	w        *bufio.Writer
	clusters bool
	started  bool
	n        int64
	hits     int64
	err      error
}

// NewPixelWriter writes every clustered pixel as one processed line
func NewPixelWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 1<<16)}
}

// NewClusterWriter writes clusters in the C-marker format ReadClusters reads back
func NewClusterWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 1<<16), clusters: true}
}

func (x *Writer) header() {
	kind := "pixel"
	if x.clusters {
		kind = "cluster"
	}
	x.printf("# Hit %s file from measurement\r\n", kind)
	x.printf("# Date and time = %s\r\n", now().Format(stampLayout))
	x.printf("# Format:\tX\tY\tToT\tToA\r\n")
	_, _ = x.w.WriteString(rule)
}

func (x *Writer) printf(format string, a ...any) {
	if x.err != nil {
		return
	}
	_, x.err = printer.Fprintf(x.w, format, a...)
}

// Push writes one cluster; the first write error sticks and is returned by Flush
func (x *Writer) Push(c hit.Cluster) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.started {
		x.header()
		x.started = true
	}
	if x.err != nil {
		return
	}
	var line []byte
	if x.clusters {
		line = append(line, 'C')
		line = strconv.AppendInt(line, x.n, 10)
		line = append(line, ";\r\n"...)
	}
	for _, p := range c.Pixels {
		line = appendPixel(line, p)
	}
	_, x.err = x.w.Write(line)
	x.n++
	x.hits += int64(len(c.Pixels))
}

func appendPixel(b []byte, p hit.Pixel) []byte {
	b = strconv.AppendUint(b, uint64(p.X), 10)
	b = append(b, '\t')
	b = strconv.AppendUint(b, uint64(p.Y), 10)
	b = append(b, '\t')
	b = strconv.AppendInt(b, int64(p.Value), 10)
	b = append(b, '\t')
	b = strconv.AppendFloat(b, p.Time, 'f', -1, 64)
	return append(b, "\r\n"...)
}

// Flush writes the footer and flushes; call it once when the run has ended
func (x *Writer) Flush(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.started {
		x.header()
		x.started = true
	}
	x.printf("# Clusters: %d\r\n", x.n)
	x.printf("# %s %d\r\n", hitsKey, x.hits)
	if x.err != nil {
		return perr.WrapIf(x.err, perr.ErrorCodeUnavailable, "write cluster dump")
	}
	if err := x.w.Flush(); err != nil {
		return perr.WrapIf(err, perr.ErrorCodeUnavailable, "flush cluster dump")
	}
	return nil
}

// Written returns how many clusters and pixels were pushed
func (x *Writer) Written() (clusters, hits int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.n, x.hits
}

// ReadClusters parses a cluster file; every pixel line must follow a C marker
func ReadClusters(r io.Reader) ([]hit.Cluster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var (
		out   []hit.Cluster
		open  bool
		lines int
	)
	for sc.Scan() {
		lines++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if line[0] == 'C' {
			open = true
			continue
		}
		k, p, err := parseLine(line, Processed)
		if k == lineBad {
			return nil, perr.WithField(perr.Malformedf("line %d: %v", lines, err), "line")
		}
		switch {
		case open:
			out = append(out, *hit.NewCluster(p))
			open = false
		case len(out) == 0:
			return nil, perr.WithField(perr.Malformedf("line %d: pixel before the first cluster marker", lines), "line")
		default:
			out[len(out)-1].Add(p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeUnavailable, "read cluster file")
	}
	return out, nil
}

// SizeHint finds the "Hits:" total in the last bytes of a dump
func SizeHint(tail []byte) (int64, bool) {
	if len(tail) > hintWindow {
		tail = tail[len(tail)-hintWindow:]
	}
	i := bytes.LastIndex(tail, []byte(hitsKey))
	if i < 0 {
		return 0, false
	}
	rest := bytes.TrimLeft(tail[i+len(hitsKey):], " \t")
	var n int64
	digits := 0
	for _, c := range rest {
		switch {
		case c >= '0' && c <= '9':
			n = n*10 + int64(c-'0')
			digits++
		case c == ',':
		default:
			return n, digits > 0
		}
	}
	return n, digits > 0
}
