// Package lite provides a sqlite client over database/sql for local cluster files
package lite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	perr "hitclust/internal/platform/errors"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Config configures the sqlite file
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// Lite wraps a *sql.DB limited to one writer connection
type Lite struct {
	DB   *sql.DB
	Path string
}

var openDB = sql.Open

// DSN builds the driver connection string: WAL journal, foreign keys on, busy timeout in ms
func DSN(cfg Config) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q.Set("_busy_timeout", fmt.Sprint(busy.Milliseconds()))
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Open opens (creating if needed) the database file and checks it answers
func Open(ctx context.Context, cfg Config) (*Lite, error) {
	if cfg.Path == "" {
		return nil, perr.WithField(perr.InvalidArgf("sqlite path is empty"), "path")
	}
	db, err := openDB("sqlite3", DSN(cfg))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open sqlite %s", cfg.Path)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "ping sqlite %s", cfg.Path)
	}
	return &Lite{DB: db, Path: cfg.Path}, nil
}

// Close closes the database
func (l *Lite) Close() error {
	if l == nil || l.DB == nil {
		return nil
	}
	return l.DB.Close()
}
