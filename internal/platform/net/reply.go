package net

import (
	"net/http"

	perr "hitclust/internal/platform/errors"
)

// Wire is the envelope every HTTP reply is wrapped in; Data and the error
// fields never appear together
type Wire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

func envelope(status int, reqID string) Wire {
	return Wire{StatusCode: status, Status: http.StatusText(status), RequestID: reqID}
}

// Reply wraps data for a successful status
func Reply(status int, data any, reqID string) (int, Wire) {
	w := envelope(status, reqID)
	w.Data = data
	return status, w
}

// Error wraps err under the status its code maps to; nil is a bare 200
func Error(err error, reqID string) (int, Wire) {
	if err == nil {
		return http.StatusOK, envelope(http.StatusOK, reqID)
	}
	status := perr.HTTPStatus(err)
	ew := perr.WireFrom(err)
	w := envelope(status, reqID)
	w.Code, w.Error, w.Field = ew.Code, ew.Message, ew.Field
	return status, w
}
