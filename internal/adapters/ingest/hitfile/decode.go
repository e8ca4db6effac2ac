package hitfile

import (
	"bytes"
	"context"
	"os"
	"runtime"

	"hitclust/internal/core/hit"
	"hitclust/internal/core/partition"
	perr "hitclust/internal/platform/errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// checkEvery is how many lines a decoder parses between context checks
const checkEvery = 1 << 16

// bomPrefixes are the byte order marks that trigger a transcode
var bomPrefixes = [][]byte{{0xEF, 0xBB, 0xBF}, {0xFF, 0xFE}, {0xFE, 0xFF}}

// stripBOM transcodes data to plain UTF-8 when it starts with a byte order mark
func stripBOM(data []byte) ([]byte, error) {
	for _, b := range bomPrefixes {
		if bytes.HasPrefix(data, b) {
			out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
			return out, err
		}
	}
	return data, nil
}

// decodeChunk parses every line of chunk
func decodeChunk(ctx context.Context, chunk []byte, opts Options) ([]hit.Pixel, Stats, error) {
	d := decoder{opts: opts}
	ps := make([]hit.Pixel, 0, len(chunk)/24)
	for len(chunk) > 0 {
		if d.stats.Lines%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, d.stats, perr.Canceled(err)
			}
		}
		i := bytes.IndexByte(chunk, '\n')
		line := chunk
		if i >= 0 {
			line, chunk = chunk[:i], chunk[i+1:]
		} else {
			chunk = nil
		}
		if p, ok := d.line(line); ok {
			ps = append(ps, p)
		}
	}
	if len(ps) == 0 && d.stats.Malformed > 0 {
		return nil, d.stats, perr.Malformedf("%d malformed lines and no hits: %v", d.stats.Malformed, d.first)
	}
	return ps, d.stats, nil
}

// Frames cuts data on line boundaries into at most n frames and decodes them in parallel
//
// A piece whose lines are all malformed becomes a frame with Err set so the
// engine drops it and the neighbours still meet at the cut. The last frame is
// marked Last. Frames must come from one time ordered recording.
func Frames(ctx context.Context, data []byte, n int, opts Options) ([]partition.Frame, Stats, error) {
	data, err := stripBOM(data)
	if err != nil {
		return nil, Stats{}, perr.WrapIf(err, perr.ErrorCodeMalformedFrame, "decode byte order mark")
	}
	chunks := partition.Chunks(data, n)
	if len(chunks) == 0 {
		return []partition.Frame{{Last: true}}, Stats{}, nil
	}

	frames := make([]partition.Frame, len(chunks))
	stats := make([]Stats, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range chunks {
		g.Go(func() error {
			ps, st, err := decodeChunk(gctx, c, opts)
			stats[i] = st
			if perr.IsCode(err, perr.ErrorCodeCanceled) {
				return err
			}
			frames[i] = partition.New(i, ps)
			frames[i].Err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}
	frames[len(frames)-1].Last = true

	var total Stats
	for _, s := range stats {
		total.Add(s)
	}
	return frames, total, nil
}

// Load reads a whole hit file and returns the decoded hits in file order
func Load(ctx context.Context, path string, opts Options) ([]hit.Pixel, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Stats{}, perr.WithField(perr.NotFoundf("hit file %s not found", path), "path")
		}
		return nil, Stats{}, perr.WrapIf(err, perr.ErrorCodeUnavailable, "read hit file")
	}
	frames, st, err := Frames(ctx, data, runtime.GOMAXPROCS(0), opts)
	if err != nil {
		return nil, st, err
	}
	if st.Kept == 0 && st.Malformed > 0 {
		return nil, st, perr.WithField(perr.Malformedf("%s: no valid %s hit lines", path, opts.Format), "path")
	}
	ps := make([]hit.Pixel, 0, st.Kept)
	for _, f := range frames {
		ps = append(ps, f.Pixels...)
	}
	return ps, st, nil
}
