package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"
	pnet "hitclust/internal/platform/net"

	"github.com/sugawarayuuta/sonnet"
)

// RecoverJSON converts panics into a JSON 500 envelope and logs the stack with the request id
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			// let net/http abort the connection as it normally would
			if v == stdhttp.ErrAbortHandler {
				panic(v)
			}
			reqID := pnet.RequestID(r.Context())

			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			status, env := pnet.Error(perr.PanicErrf("panic recovered"), reqID)
			b, _ := sonnet.Marshal(env)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_, _ = w.Write(b)
		}()
		next.ServeHTTP(w, r)
	})
}
