package middleware

import (
	"net/http"

	pnet "hitclust/internal/platform/net"
)

// RequestID takes X-Request-ID from the client when it is sane, otherwise mints a uuid,
// stores it on the context for chi and the logger and echoes it on the response
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := pnet.CleanRequestID(r.Header.Get(pnet.HeaderRequestID))
			if id == "" {
				id = pnet.NewRequestID()
			}
			w.Header().Set(pnet.HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(pnet.WithRequest(r.Context(), id)))
		})
	}
}
