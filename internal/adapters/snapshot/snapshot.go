// Package snapshot writes and reads zstd compressed binary dumps of closed clusters
//
// Layout, little endian, inside one zstd stream:
//
//	magic "HCS1" | run id len u16 | run id | delay f64 | span f64 | created unix ns i64
//	per cluster: pixels u32 | pixels * (x u16, y u16, value i32, time f64)
//	trailer: 0xFFFFFFFF | clusters u64 | hits u64
package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"

	"github.com/klauspost/compress/zstd"
)

var magic = [4]byte{'H', 'C', 'S', '1'}

const (
	trailerMark = math.MaxUint32
	pixelBytes  = 2 + 2 + 4 + 8
	// maxPixels bounds one cluster read back so a corrupt length cannot exhaust memory
	maxPixels = hit.GridSize * hit.GridSize * 64
)

// Header describes the run a snapshot came from
type Header struct {
	RunID   string
	Params  clusterer.Params
	Created time.Time
}

// Writer streams clusters into a snapshot; it is a cluster sink
type Writer struct {
	mu      sync.Mutex
	enc     *zstd.Encoder
	bw      *bufio.Writer
	closer  io.Closer
	buf     []byte
	n, hits uint64
	err     error
	done    bool
}

// NewWriter starts a snapshot on w with the given header
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if len(h.RunID) > math.MaxUint16 {
		return nil, perr.WithField(perr.InvalidArgf("run id too long"), "run_id")
	}
	bw := bufio.NewWriterSize(w, 1<<20)
	enc, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeUnknown, "create zstd writer")
	}
	x := &Writer{enc: enc, bw: bw}
	b := append([]byte(nil), magic[:]...)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.RunID)))
	b = append(b, h.RunID...)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(h.Params.Delay))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(h.Params.Span))
	b = binary.LittleEndian.AppendUint64(b, uint64(h.Created.UnixNano()))
	if _, err := enc.Write(b); err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeUnavailable, "write snapshot header")
	}
	return x, nil
}

// Create writes a snapshot to path; Flush closes the file
func Create(path string, h Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeUnavailable, "create snapshot")
	}
	x, err := NewWriter(f, h)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	x.closer = f
	return x, nil
}

// Push appends one cluster; the first error sticks and is returned by Flush
func (x *Writer) Push(c hit.Cluster) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil || x.done {
		return
	}
	b := x.buf[:0]
	b = binary.LittleEndian.AppendUint32(b, uint32(len(c.Pixels)))
	for _, p := range c.Pixels {
		b = binary.LittleEndian.AppendUint16(b, p.X)
		b = binary.LittleEndian.AppendUint16(b, p.Y)
		b = binary.LittleEndian.AppendUint32(b, uint32(p.Value))
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(p.Time))
	}
	x.buf = b
	if _, err := x.enc.Write(b); err != nil {
		x.err = perr.WrapIf(err, perr.ErrorCodeUnavailable, "write snapshot")
		return
	}
	x.n++
	x.hits += uint64(len(c.Pixels))
}

// Flush writes the trailer and closes the stream; later pushes are ignored
func (x *Writer) Flush(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.done {
		return x.err
	}
	x.done = true
	if x.err == nil {
		b := binary.LittleEndian.AppendUint32(nil, trailerMark)
		b = binary.LittleEndian.AppendUint64(b, x.n)
		b = binary.LittleEndian.AppendUint64(b, x.hits)
		if _, err := x.enc.Write(b); err != nil {
			x.err = perr.WrapIf(err, perr.ErrorCodeUnavailable, "write snapshot trailer")
		}
	}
	if err := x.enc.Close(); err != nil && x.err == nil {
		x.err = perr.WrapIf(err, perr.ErrorCodeUnavailable, "close zstd writer")
	}
	if err := x.bw.Flush(); err != nil && x.err == nil {
		x.err = perr.WrapIf(err, perr.ErrorCodeUnavailable, "flush snapshot")
	}
	if x.closer != nil {
		if err := x.closer.Close(); err != nil && x.err == nil {
			x.err = perr.WrapIf(err, perr.ErrorCodeUnavailable, "close snapshot")
		}
	}
	return x.err
}

// Written returns the clusters and pixels pushed so far
func (x *Writer) Written() (clusters, hits uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.n, x.hits
}

// Read decodes a whole snapshot; a missing trailer or a count mismatch is malformed
func Read(r io.Reader) (Header, []hit.Cluster, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Header{}, nil, perr.WrapIf(err, perr.ErrorCodeMalformedFrame, "open zstd stream")
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	h, err := readHeader(br)
	if err != nil {
		return Header{}, nil, err
	}

	var (
		out  []hit.Cluster
		hits uint64
		buf  []byte
	)
	for {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return h, nil, truncated(err)
		}
		if n == trailerMark {
			var tr [2]uint64
			if err := binary.Read(br, binary.LittleEndian, &tr); err != nil {
				return h, nil, truncated(err)
			}
			if tr[0] != uint64(len(out)) || tr[1] != hits {
				return h, nil, perr.Malformedf("trailer says %d clusters %d hits, read %d and %d", tr[0], tr[1], len(out), hits)
			}
			return h, out, nil
		}
		if n == 0 || n > maxPixels {
			return h, nil, perr.Malformedf("cluster %d has %d pixels", len(out), n)
		}
		size := int(n) * pixelBytes
		if cap(buf) < size {
			buf = make([]byte, size)
		}
		buf = buf[:size]
		if _, err := io.ReadFull(br, buf); err != nil {
			return h, nil, truncated(err)
		}
		var c hit.Cluster
		for i := 0; i < int(n); i++ {
			b := buf[i*pixelBytes:]
			c.Add(hit.Pixel{
				X:     binary.LittleEndian.Uint16(b),
				Y:     binary.LittleEndian.Uint16(b[2:]),
				Value: int32(binary.LittleEndian.Uint32(b[4:])),
				Time:  math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
			})
		}
		out = append(out, c)
		hits += uint64(n)
	}
}

func readHeader(r io.Reader) (Header, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return Header{}, truncated(err)
	}
	if m != magic {
		return Header{}, perr.Malformedf("not a cluster snapshot")
	}
	var idLen uint16
	if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
		return Header{}, truncated(err)
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(r, id); err != nil {
		return Header{}, truncated(err)
	}
	var fixed struct {
		Delay, Span uint64
		Created     int64
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return Header{}, truncated(err)
	}
	return Header{
		RunID:   string(id),
		Params:  clusterer.Params{Delay: math.Float64frombits(fixed.Delay), Span: math.Float64frombits(fixed.Span)},
		Created: time.Unix(0, fixed.Created).UTC(),
	}, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return perr.Malformedf("snapshot truncated")
	}
	return perr.WrapIf(err, perr.ErrorCodeMalformedFrame, "read snapshot")
}

// ReadFile reads the snapshot at path
func ReadFile(path string) (Header, []hit.Cluster, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, nil, perr.WithField(perr.NotFoundf("snapshot %s not found", path), "path")
		}
		return Header{}, nil, perr.WrapIf(err, perr.ErrorCodeUnavailable, "open snapshot")
	}
	defer f.Close()
	return Read(f)
}
