package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "hitclust/internal/platform/errors"
	pnet "hitclust/internal/platform/net"
	phttp "hitclust/internal/platform/net/http"
)

// helper to build a request with a request_id in context
func reqWithReqID(method, path, rid string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(pnet.WithRequest(req.Context(), rid))
}

func TestJSON_SetsStatusAndContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.JSON(rec, http.StatusTeapot, map[string]any{"k": "v"})
	if rec.Code != http.StatusTeapot {
		t.Fatalf("JSON status: expected 418, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content-type = %q", ct)
	}
	var m map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil || m["k"] != "v" {
		t.Fatalf("body %q err %v", rec.Body.String(), err)
	}
}

type badJSON struct{}

func (badJSON) MarshalJSON() ([]byte, error) { return nil, errors.New("no") }

func TestJSON_UnencodableIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.JSON(rec, http.StatusOK, map[string]any{"v": badJSON{}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Error != "encode response" {
		t.Fatalf("body %q err %v", rec.Body.String(), err)
	}
}

func TestHandle_NotFoundCarriesCode(t *testing.T) {
	h := phttp.Handle(func(*http.Request) phttp.Response {
		return phttp.Error(perr.WithField(perr.NotFoundf("run r9 not found"), "id"))
	})
	rec := httptest.NewRecorder()
	h(rec, reqWithReqID("GET", "/runs/r9", "rid-3"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	var env phttp.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Code != perr.ErrorCodeNotFound || env.Field != "id" || env.RequestID != "rid-3" {
		t.Fatalf("envelope %+v", env)
	}
}

func TestReturnStyle_Handle(t *testing.T) {
	cases := []struct {
		name string
		resp phttp.Response
		want int
	}{
		{"ok", phttp.OK(map[string]any{"x": 1}), http.StatusOK},
		{"accepted", phttp.Accepted(map[string]any{"run": "r"}), http.StatusAccepted},
		{"no content", phttp.NoContent(), http.StatusNoContent},
		{"zero status", phttp.Response{Body: "x"}, http.StatusOK},
		{"malformed", phttp.Error(perr.Malformedf("frame 3")), http.StatusBadRequest},
		{"invalid", phttp.Error(perr.InvalidArgf("delay")), http.StatusUnprocessableEntity},
		{"generic", phttp.Error(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := phttp.Handle(func(*http.Request) phttp.Response { return tc.resp })
			rec := httptest.NewRecorder()
			h(rec, reqWithReqID("GET", "/h", "rid-"+tc.name))
			if rec.Code != tc.want {
				t.Fatalf("code = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusNoContent {
				if rec.Body.Len() != 0 {
					t.Fatalf("expected empty body, got %q", rec.Body.String())
				}
				return
			}
			var env phttp.Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}
			if env.StatusCode != tc.want || env.RequestID != "rid-"+tc.name {
				t.Fatalf("bad envelope: %+v", env)
			}
		})
	}
}

func TestReturnStyle_Headers(t *testing.T) {
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		resp := phttp.OK("hello")
		resp.Header = http.Header{}
		resp.Header.Set("X-Thing", "yup")
		return resp
	})
	rec := httptest.NewRecorder()
	h(rec, reqWithReqID("GET", "/hdr", "rid-8"))
	if got := rec.Header().Get("X-Thing"); got != "yup" {
		t.Fatalf("expected header override, got %q", got)
	}
	var env phttp.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if s, ok := env.Data.(string); !ok || s != "hello" {
		t.Fatalf("expected data \"hello\", got %#v", env.Data)
	}
}
