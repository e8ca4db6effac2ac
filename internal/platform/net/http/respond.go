// Package http is the HTTP side of the platform: router seam, server and the JSON envelope
package http

import (
	stdhttp "net/http"

	"hitclust/internal/platform/logger"
	pnet "hitclust/internal/platform/net"

	"github.com/sugawarayuuta/sonnet"
)

// Envelope is the body of every JSON reply
type Envelope = pnet.Wire

// encodeFailure is written when the envelope itself cannot be encoded
var encodeFailure = []byte(`{"status_code":500,"status":"Internal Server Error","error":"encode response"}`)

// JSON writes v with status; an unencodable v becomes a 500
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	b, err := sonnet.Marshal(v)
	if err != nil {
		logger.Named("http").Error().Err(err).Msg("encode response")
		status, b = stdhttp.StatusInternalServerError, encodeFailure
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// Response is what return style handlers produce; an error Body picks its own status
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header
}

// OK is a 200 carrying data
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Accepted is a 202, used when work continues after the reply
func Accepted(data any) Response { return Response{Status: stdhttp.StatusAccepted, Body: data} }

// NoContent is an empty 204
func NoContent() Response { return Response{Status: stdhttp.StatusNoContent} }

// Error maps err to its status and envelope
func Error(err error) Response { return Response{Body: err} }

// Handle adapts a return style handler to net/http
func Handle(h func(*stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		resp := h(r)
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		reqID := pnet.RequestID(r.Context())
		if err, ok := resp.Body.(error); ok && err != nil {
			code, env := pnet.Error(err, reqID)
			JSON(w, code, env)
			return
		}
		status := resp.Status
		switch status {
		case 0:
			status = stdhttp.StatusOK
		case stdhttp.StatusNoContent:
			w.WriteHeader(status)
			return
		}
		_, env := pnet.Reply(status, resp.Body, reqID)
		JSON(w, status, env)
	}
}
