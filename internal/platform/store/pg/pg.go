// Package pg opens the pgx pool behind the postgres row store
package pg

import (
	"context"
	"time"

	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config configures the pool
type Config struct {
	URL      string
	MaxConns int32
	AppName  string
	// LogSQL traces every statement; ones slower than Slow log at warn
	LogSQL bool
	Slow   time.Duration
}

var newPool = pgxpool.NewWithConfig

// Open builds the pool; it connects lazily so callers ping before use
func Open(ctx context.Context, cfg Config, log logger.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse postgres url")
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.AppName != "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	if cfg.LogSQL {
		// traced statements print even when the process runs at info
		pcfg.ConnConfig.Tracer = &tracer{
			log:  log.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger(),
			slow: cfg.Slow,
		}
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "create postgres pool")
	}
	return pool, nil
}
