package store

import (
	"context"
	"time"

	perr "hitclust/internal/platform/errors"
	chx "hitclust/internal/platform/store/ch"
	"hitclust/internal/platform/store/lite"
	"hitclust/internal/platform/store/pg"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultConnectRetries = 20
	defaultPingTimeout    = 3 * time.Second
)

// pingPolicy is the retry schedule used while a backend comes up
var pingPolicy = func(ctx context.Context, retries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 150 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// pingUntilUp pings with a per attempt timeout until it succeeds, retries run out or ctx ends
func pingUntilUp(ctx context.Context, s *Store, name string, retries int, timeout time.Duration, ping func(context.Context) error) error {
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	attempt := 0
	op := func() error {
		attempt++
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ping(toCtx)
	}
	notify := func(err error, wait time.Duration) {
		s.Log.Debug().Str("backend", name).Int("attempt", attempt).Dur("wait", wait).Err(err).Msg("backend not ready")
	}
	if err := backoff.RetryNotify(op, pingPolicy(ctx, retries), notify); err != nil {
		if ctx.Err() != nil {
			return perr.Canceled(ctx.Err())
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s ping failed after %d attempts", name, attempt)
	}
	return nil
}

// openPG opens pg and wraps it with our sql adapter once the pool answers
func openPG(ctx context.Context, cfg Config, s *Store) (SQL, error) {
	pool, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		AppName:  cfg.AppName,
		LogSQL:   cfg.PG.LogSQL,
		Slow:     time.Duration(cfg.PG.SlowQueryMs) * time.Millisecond,
	}, s.Log)
	if err != nil {
		return nil, err
	}
	if err := pingUntilUp(ctx, s, "pg", cfg.PG.ConnectRetries, cfg.PG.PingTimeout, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	return newPGAdapter(pool), nil
}

func openLite(ctx context.Context, cfg Config, _ *Store) (SQL, error) {
	l, err := lite.Open(ctx, lite.Config{Path: cfg.Lite.Path, BusyTimeout: cfg.Lite.BusyTimeout})
	if err != nil {
		return nil, err
	}
	return newLiteAdapter(l), nil
}

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.CH.Role, Tag: cfg.CH.Tag})
	if err != nil {
		return nil, err
	}
	if err := pingUntilUp(ctx, s, "ch", 0, 0, c.Ping); err != nil {
		_ = c.Close()
		return nil, err
	}
	return newCHAdapter(c), nil
}
