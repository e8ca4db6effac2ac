package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"hitclust/internal/platform/net/middleware"
)

// CommonStack is the middleware every versioned api scope runs
// origins feeds CORS, an empty list allows any origin
func CommonStack(origins []string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON,
		middleware.AccessLog(middleware.AccessLogOptions{Slow: 500 * time.Millisecond}),
		middleware.NoCache(),
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins}),
		middleware.Compress(flate.BestSpeed),
		middleware.Timeout(30 * time.Second),
	}
}
