package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hitclust/internal/modkit/httpkit"
	"hitclust/internal/modkit/module"
	"hitclust/internal/platform/config"
	phttp "hitclust/internal/platform/net/http"
	onlinedomain "hitclust/internal/services/online/domain"

	"github.com/go-chi/chi/v5"
)

func TestMount_Routes(t *testing.T) {
	r := phttp.AdaptChi(chi.NewRouter())
	a := Mount(r, Options{Config: config.New(), Online: true})
	defer a.Close()
	if a.Runs == nil || a.Online == nil {
		t.Fatalf("modules missing: %+v", a)
	}
	if got := strings.Join(a.Modules.Names(), ","); got != "meta,online,runs" {
		t.Fatalf("registered %s", got)
	}
	if _, ok := module.Lookup[onlinedomain.ControlPort](a.Modules, "online"); !ok {
		t.Fatal("online control port not reachable by name")
	}
	h := r.Mux()

	cases := []struct {
		path string
		want int
		body string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/api/v1/meta/health", http.StatusOK, `"ok":true`},
		{"/api/v1/runs/", http.StatusOK, `"data":[]`},
		{"/api/v1/online/stats", http.StatusOK, `"mode":"idle"`},
		{"/api/v1/nope", http.StatusNotFound, ""},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, c.path, nil))
		if rr.Code != c.want {
			t.Fatalf("%s: status %d", c.path, rr.Code)
		}
		if c.body != "" && !strings.Contains(rr.Body.String(), c.body) {
			t.Fatalf("%s: body %q", c.path, rr.Body.String())
		}
		if strings.HasPrefix(c.path, "/api/v1/") && c.want == http.StatusOK && rr.Header().Get(httpkit.HeaderAPIVersion) != "v1" {
			t.Fatalf("%s: missing version header", c.path)
		}
	}
}

func TestMount_WithoutOnline(t *testing.T) {
	r := phttp.AdaptChi(chi.NewRouter())
	a := Mount(r, Options{Config: config.New()})
	defer a.Close()
	if a.Online != nil {
		t.Fatalf("online mounted")
	}
	rr := httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/online/stats", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
}
