// Package logger builds the zerolog root logger and derives run and request
// scoped children from a context
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"hitclust/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the logging type used across the module
type Logger = zerolog.Logger

// Options configures New
type Options struct {
	Level       string // trace..panic; unknown means info
	Format      string // console or json
	Service     string
	Component   string
	Writer      io.Writer // stdout when nil
	WithCaller  bool
	SampleEvery int
	Static      map[string]string
}

// FromEnv reads LOG_* variables
func FromEnv() Options { return fromEnv(raw.New()) }

func fromEnv(env raw.Env) Options {
	env = env.Prefix("LOG_")
	return Options{
		Level:       env.OneOf("LEVEL", "info", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"),
		Format:      env.OneOf("FORMAT", "console", "console", "json"),
		Service:     env.String("SERVICE", "hitclust"),
		Component:   env.String("COMPONENT", ""),
		WithCaller:  env.Bool("CALLER", false),
		SampleEvery: env.Int("SAMPLE_EVERY", 0),
	}
}

var setGlobals = sync.OnceFunc(func() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
})

// New builds a logger from opt
func New(opt Options) Logger {
	setGlobals()

	w := opt.Writer
	if w == nil {
		w = os.Stdout
	}
	if opt.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zc := zerolog.New(w).Level(level(opt.Level)).With().Timestamp()
	if bi, ok := debug.ReadBuildInfo(); ok {
		zc = zc.Str("go_version", bi.GoVersion)
	}
	for k, v := range map[string]string{"service": opt.Service, "component": opt.Component} {
		if v != "" {
			zc = zc.Str(k, v)
		}
	}
	for k, v := range opt.Static {
		zc = zc.Str(k, v)
	}
	if opt.WithCaller {
		zc = zc.Caller()
	}

	l := zc.Logger()
	if opt.SampleEvery > 1 {
		l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return l
}

func level(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

var root = sync.OnceValue(func() *Logger {
	l := New(FromEnv())
	return &l
})

// Get returns the process root logger, built from the environment on first use
func Get() *Logger { return root() }

type ctxKey uint8

const (
	requestKey ctxKey = iota
	runKey
)

// WithRequest tags ctx with the id of an HTTP or wire exchange
func WithRequest(ctx context.Context, reqID string) context.Context {
	return tag(ctx, requestKey, reqID)
}

// WithRun tags ctx with the clustering run it belongs to
func WithRun(ctx context.Context, runID string) context.Context {
	return tag(ctx, runKey, runID)
}

func tag(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// RunID is the id set by WithRun, or ""
func RunID(ctx context.Context) string {
	s, _ := ctx.Value(runKey).(string)
	return s
}

func requestID(ctx context.Context) string {
	s, _ := ctx.Value(requestKey).(string)
	return s
}

// C is the root logger carrying ctx's request_id and run_id
func C(ctx context.Context) *Logger { return derive(ctx, "") }

// Named is the root logger with a component field
func Named(component string) *Logger { return derive(context.Background(), component) }

// NamedC is Named plus the fields C adds
func NamedC(ctx context.Context, component string) *Logger { return derive(ctx, component) }

func derive(ctx context.Context, component string) *Logger {
	zc := Get().With()
	if id := requestID(ctx); id != "" {
		zc = zc.Str("request_id", id)
	}
	if id := RunID(ctx); id != "" {
		zc = zc.Str("run_id", id)
	}
	if component != "" {
		zc = zc.Str("component", component)
	}
	l := zc.Logger()
	return &l
}
