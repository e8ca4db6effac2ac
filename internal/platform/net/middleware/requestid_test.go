package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pnet "hitclust/internal/platform/net"
	"hitclust/internal/platform/net/middleware"
)

func TestRequestID(t *testing.T) {
	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"minted when absent", "", false},
		{"kept when sane", "abc-123", true},
		{"replaced when too long", strings.Repeat("x", 65), false},
		{"replaced when not printable", "bad\x01id", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := middleware.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = pnet.RequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(pnet.HeaderRequestID, tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if seen == "" {
				t.Fatal("expected request id on context")
			}
			if got := rr.Header().Get(pnet.HeaderRequestID); got != seen {
				t.Fatalf("response header %q, context %q", got, seen)
			}
			if tc.keep && seen != tc.header {
				t.Fatalf("expected client id kept, got %q", seen)
			}
			if !tc.keep && seen == tc.header {
				t.Fatalf("expected a fresh id, got the client one")
			}
		})
	}
}
