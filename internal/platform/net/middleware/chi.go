// Package middleware adapts chi and cors middleware for the control API
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// RealIP takes RemoteAddr from X-Forwarded-For or X-Real-IP
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

// Timeout cancels the request context after d and answers 504 if nothing was written
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// NoCache marks every response uncacheable; stats change between polls
func NoCache() func(http.Handler) http.Handler { return chimw.NoCache }

// Compress gzips or deflates responses at level when the client accepts it
func Compress(level int) func(http.Handler) http.Handler {
	return chimw.NewCompressor(level).Handler
}

// CORSOptions mirrors the subset of cors options the API sets
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS fills unset lists with what the control endpoints need
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins:   orDefault(o.AllowedOrigins, "*"),
		AllowedMethods:   orDefault(o.AllowedMethods, http.MethodGet, http.MethodPost, http.MethodPut),
		AllowedHeaders:   orDefault(o.AllowedHeaders, "Accept", "Content-Type", "X-Request-ID"),
		ExposedHeaders:   orDefault(o.ExposedHeaders, "X-Request-ID", "X-API-Version"),
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}

func orDefault(v []string, def ...string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
