// Package httpkit is what module handlers import for routing and the JSON envelope
package httpkit

import (
	"net/http"

	phttp "hitclust/internal/platform/net/http"
	"hitclust/internal/platform/net/http/bind"
)

type (
	// Router is the platform router seam
	Router = phttp.Router
	// Envelope is the body every JSON endpoint writes
	Envelope = phttp.Envelope
)

// Accepted marks a handler result as 202
func Accepted(data any) phttp.Response { return phttp.Accepted(data) }

// Status answers with data under a status other than 200
func Status(code int, data any) phttp.Response { return phttp.Response{Status: code, Body: data} }

// Get mounts fn as a GET endpoint; its result or error becomes the envelope
func Get(r Router, path string, fn func(*http.Request) (any, error)) {
	r.Get(path, call(fn))
}

// Post mounts fn as a POST endpoint without a body
func Post(r Router, path string, fn func(*http.Request) (any, error)) {
	r.Post(path, call(fn))
}

// PostJSON mounts fn as a POST endpoint taking a validated T
func PostJSON[T any](r Router, path string, fn func(*http.Request, T) (any, error)) {
	r.Post(path, bound(fn))
}

// PutJSON mounts fn as a PUT endpoint taking a validated T
func PutJSON[T any](r Router, path string, fn func(*http.Request, T) (any, error)) {
	r.Put(path, bound(fn))
}

func call(fn func(*http.Request) (any, error)) phttp.Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response { return result(fn(r)) })
}

func bound[T any](fn func(*http.Request, T) (any, error)) phttp.Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return phttp.Error(err)
		}
		return result(fn(r, in))
	})
}

// result lets handlers return a ready Response (Accepted) or plain data
func result(out any, err error) phttp.Response {
	if err != nil {
		return phttp.Error(err)
	}
	if resp, ok := out.(phttp.Response); ok {
		return resp
	}
	return phttp.OK(out)
}
