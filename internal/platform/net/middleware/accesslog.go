// Package middleware holds the http middleware every api scope runs
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AccessLogOptions configures AccessLog
type AccessLogOptions struct {
	// Slow logs requests taking at least this long at warn; 0 never does
	Slow time.Duration
}

// AccessLog records each request in metrics.HTTPRequests and logs it with
// the request scoped logger; server errors log at error
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routeOf(r)
			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			logger.C(r.Context()).WithLevel(levelFor(status, elapsed, opt.Slow)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("request done")
		})
	}
}

func levelFor(status int, elapsed, slow time.Duration) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case slow > 0 && elapsed >= slow:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// routeOf labels by chi pattern so run ids do not become label values
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
