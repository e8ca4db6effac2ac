package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "hitclust/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestDocument_FillsErrorResponses(t *testing.T) {
	raw := []byte(`{"openapi":"3.1.0","info":{"title":"t"},"paths":{
		"/runs":{"get":{"responses":{"200":{"description":"ok"}}},
		         "post":{"responses":{"400":{"description":"custom"}}}}}}`)
	b, err := document(raw)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	var doc struct {
		OpenAPI string `json:"openapi"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Components struct {
			Schemas map[string]json.RawMessage `json:"schemas"`
		} `json:"components"`
		Paths map[string]map[string]struct {
			Responses map[string]struct {
				Description string `json:"description"`
			} `json:"responses"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.OpenAPI != "3.0.3" || len(doc.Servers) != 1 || doc.Servers[0].URL != "/api/v1" {
		t.Fatalf("header %+v", doc)
	}
	if _, ok := doc.Components.Schemas["ErrorResponse"]; !ok {
		t.Fatal("error schema missing")
	}
	get := doc.Paths["/runs"]["get"].Responses
	if get["400"].Description != "Bad Request" || get["500"].Description == "" || get["200"].Description != "ok" {
		t.Fatalf("get responses %+v", get)
	}
	if post := doc.Paths["/runs"]["post"].Responses; post["400"].Description != "custom" {
		t.Fatalf("existing 400 overwritten: %+v", post)
	}
}

func TestDocument_BadJSON(t *testing.T) {
	if _, err := document([]byte("{")); err == nil {
		t.Fatal("want a parse error")
	}
}

func TestMount(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		r := phttp.AdaptChi(chi.NewRouter())
		Mount(r, enabled)
		rr := httptest.NewRecorder()
		r.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
		if enabled && (rr.Code != http.StatusOK || !json.Valid(rr.Body.Bytes())) {
			t.Fatalf("enabled: %d %s", rr.Code, rr.Body.String())
		}
		if !enabled && rr.Code != http.StatusNotFound {
			t.Fatalf("disabled: %d", rr.Code)
		}
	}
}
