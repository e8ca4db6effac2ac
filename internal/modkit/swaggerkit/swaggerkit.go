// Package swaggerkit serves the OpenAPI document and Swagger UI of the control API
package swaggerkit

import (
	_ "embed"
	"net/http"

	"hitclust/internal/core/version"
	phttp "hitclust/internal/platform/net/http"

	"github.com/sugawarayuuta/sonnet"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openapiJSON []byte

const (
	docsPath = "/api/docs"
	basePath = "/api/v1"
)

// Mount serves the UI at /api/docs/ and the document at /api/docs/doc.json when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get(docsPath, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, docsPath+"/", http.StatusPermanentRedirect)
	})
	r.Get(docsPath+"/doc.json", serveDoc)
	r.Handle(docsPath+"/*", httpSwagger.Handler(
		httpSwagger.InstanceName("hitclust"),
		httpSwagger.URL(docsPath+"/doc.json"),
	))
}

func serveDoc(w http.ResponseWriter, _ *http.Request) {
	b, err := document(openapiJSON)
	if err != nil {
		http.Error(w, "openapi document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

// document stamps the build version and fills in the shared error responses
func document(raw []byte) ([]byte, error) {
	var doc map[string]any
	if err := sonnet.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc["openapi"] = "3.0.3"
	if _, ok := doc["servers"]; !ok {
		doc["servers"] = []any{map[string]any{"url": basePath}}
	}
	if info, ok := doc["info"].(map[string]any); ok {
		info["version"] = version.Info().Version
	}
	schemas := child(child(doc, "components"), "schemas")
	if _, ok := schemas["ErrorResponse"]; !ok {
		schemas["ErrorResponse"] = errorSchema()
	}

	defaults := map[string]any{
		"400": errorResponse("Bad Request", 400, 6, "mode must be one of [idle receive clusters energies counts]"),
		"500": errorResponse("Internal Server Error", 500, 1, "panic recovered"),
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range paths {
		ops, _ := p.(map[string]any)
		for _, op := range ops {
			o, ok := op.(map[string]any)
			if !ok {
				continue
			}
			resps := child(o, "responses")
			for code, resp := range defaults {
				if _, ok := resps[code]; !ok {
					resps[code] = resp
				}
			}
		}
	}
	return sonnet.Marshal(doc)
}

func child(m map[string]any, key string) map[string]any {
	c, ok := m[key].(map[string]any)
	if !ok {
		c = map[string]any{}
		m[key] = c
	}
	return c
}

func errorSchema() map[string]any {
	prop := func(typ string) map[string]any { return map[string]any{"type": typ} }
	return map[string]any{
		"type":        "object",
		"description": "Error envelope",
		"properties": map[string]any{
			"status_code": prop("integer"),
			"status":      prop("string"),
			"code":        prop("integer"),
			"error":       prop("string"),
			"field":       prop("string"),
			"request_id":  prop("string"),
		},
		"required": []any{"status_code", "status"},
	}
}

func errorResponse(status string, statusCode, code int, msg string) map[string]any {
	return map[string]any{
		"description": status,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/ErrorResponse"},
				"example": map[string]any{
					"status_code": statusCode,
					"status":      status,
					"code":        code,
					"error":       msg,
				},
			},
		},
	}
}
