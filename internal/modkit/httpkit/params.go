package httpkit

import (
	"net/http"
	"strconv"
	"strings"

	perr "hitclust/internal/platform/errors"

	"github.com/go-chi/chi/v5"
)

// Param returns the named path parameter of the matched route
func Param(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

// QueryInt reads a non-negative integer query value; empty yields def
func QueryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, perr.WithField(perr.InvalidArgf("%s must be a non-negative integer", key), key)
	}
	return n, nil
}
