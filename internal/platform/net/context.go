// Package net provides utilities for working with request contexts and reply envelopes
package net

import (
	"context"
	"strings"

	"hitclust/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// HeaderRequestID is the header a request id is read from and mirrored to
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen bounds client supplied ids before they reach logs
const maxRequestIDLen = 64

// WithRequest annotates context with the request id, for chi and for the logger
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	return logger.WithRequest(ctx, reqID)
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// NewRequestID returns a fresh random id
func NewRequestID() string { return uuid.NewString() }

// CleanRequestID keeps a client supplied id when it is short and printable, else returns ""
func CleanRequestID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxRequestIDLen {
		return ""
	}
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return s
}
