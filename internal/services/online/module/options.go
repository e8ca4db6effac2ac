package module

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"hitclust/internal/adapters/ingest/hitfile"
	"hitclust/internal/core/calib"
	"hitclust/internal/platform/config"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	cmodule "hitclust/internal/services/clustering/module"
	"hitclust/internal/services/online/domain"
	"hitclust/internal/services/online/service"

	"github.com/cenkalti/backoff/v4"
)

// Config is the CORE_ONLINE_* configuration
type Config struct {
	// WireAddr is the viewer listen address; empty disables the wire server
	WireAddr string
	// Feed is stdin, file:PATH or tcp:HOST:PORT; empty leaves only idle available
	Feed       string
	FeedFormat hitfile.Format
	Controller service.Options
}

// FromConfig reads CORE_ONLINE_* and the engine options of CORE_CLUSTER_*
func FromConfig(cfg config.Conf) (Config, error) {
	engine, err := cmodule.FromConfig(cfg)
	if err != nil {
		return Config{}, err
	}
	c := cfg.Prefix("CORE_ONLINE_")
	f := hitfile.Processed
	if c.MayEnum("FEED_FORMAT", "processed", "processed", "raw") == "raw" {
		f = hitfile.Raw
	}
	return Config{
		WireAddr:   c.MayString("WIRE_ADDR", ""),
		Feed:       c.MayString("FEED", ""),
		FeedFormat: f,
		Controller: service.Options{
			Engine:     engine,
			FlushEvery: c.MayDuration("FLUSH_EVERY", service.DefaultFlushEvery),
			HistBins:   c.MayIntIn("HIST_BINS", service.DefaultHistBins, 1, 1<<20),
			HistWidth:  int64(c.MayIntIn("HIST_WIDTH", service.DefaultHistWidth, 1, 1<<30)),
			MaxPending: c.MayIntIn("MAX_PENDING", service.DefaultMaxPending, 1, 1<<24),
		},
	}, nil
}

// dialBackOff bounds the reconnects to a tcp feed
var dialBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// Opener turns a feed spec into a domain.Opener; every session gets a fresh reader
func Opener(spec string, f hitfile.Format, cal calib.Func) (domain.Opener, error) {
	opts := hitfile.Options{Format: f, Calib: cal}
	lines := func(ctx context.Context, r io.Reader) domain.Feed {
		return hitfile.NewLineSource(ctx, r, opts, hitfile.DefaultChunk, hitfile.DefaultAhead)
	}
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "":
		return nil, nil
	case "stdin":
		// stdin outlives the session that reads it
		return func(ctx context.Context) (domain.Feed, error) {
			return lines(ctx, io.NopCloser(os.Stdin)), nil
		}, nil
	case "file":
		if arg == "" {
			return nil, perr.WithField(perr.InvalidArgf("file feed needs a path"), "feed")
		}
		return func(ctx context.Context) (domain.Feed, error) {
			fh, err := os.Open(arg)
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open feed %s", arg)
			}
			return lines(ctx, fh), nil
		}, nil
	case "tcp":
		if arg == "" {
			return nil, perr.WithField(perr.InvalidArgf("tcp feed needs an address"), "feed")
		}
		return func(ctx context.Context) (domain.Feed, error) {
			var d net.Dialer
			conn, err := backoff.RetryWithData(func() (net.Conn, error) {
				c, err := d.DialContext(ctx, "tcp", arg)
				if err != nil {
					logger.NamedC(ctx, "online").Debug().Err(err).Str("addr", arg).Msg("dial feed")
				}
				return c, err
			}, backoff.WithContext(dialBackOff(), ctx))
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "dial feed %s", arg)
			}
			return lines(ctx, conn), nil
		}, nil
	}
	return nil, perr.WithField(perr.InvalidArgf("unknown feed %q", spec), "feed")
}

// calibration loads CORE_CLUSTER_CALIB_DIR when set, shared with the batch runs
func calibration(cfg config.Conf) (calib.Func, error) {
	c := cfg.Prefix("CORE_CLUSTER_")
	dir := c.MayString("CALIB_DIR", "")
	if dir == "" {
		return nil, nil
	}
	cal, err := calib.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	cal.BuildLUT(c.MayIntIn("CALIB_LUT", 0, 0, 1<<14))
	return cal.Func(), nil
}
