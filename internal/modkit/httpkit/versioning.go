package httpkit

import (
	"net/http"
	"strings"
)

// HeaderAPIVersion carries the mounted api version on every scoped response
const HeaderAPIVersion = "X-API-Version"

// MountAPI mounts a subrouter under /api/{version}, applies the scope middleware
// then invokes mount to register routes on it
//
//	httpkit.MountAPI(r, "v1", httpkit.CommonStack(nil), func(api httpkit.Router) {
//	  online.MountRoutes(api)
//	})
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	ver := strings.Trim(version, "/")
	r.Route("/api/"+ver, func(api Router) {
		api.Use(versionHeader(ver))
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
}

// MountAPIV1 is MountAPI with version v1
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountAPI(r, "v1", mw, mount)
}

func versionHeader(ver string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderAPIVersion, ver)
			next.ServeHTTP(w, r)
		})
	}
}
