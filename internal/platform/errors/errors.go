// Package errors is the coded error type shared by the clustering services
//
// Import it as perr. Every error that crosses a service boundary should carry
// an ErrorCode so the HTTP layer, the wire protocol and the logs agree on what
// went wrong.
package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error; values are stable on the wire
type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodePanic
	ErrorCodeUnavailable // transient, retry may succeed
	ErrorCodeCanceled
	ErrorCodeConflict // e.g. mode switch while a run is active
	ErrorCodeInvalidArgument
	ErrorCodeValidation
	ErrorCodeJSON
	ErrorCodeNotFound
	ErrorCodeDB
	ErrorCodeMalformedFrame // hit records between two cut points do not parse
	ErrorCodeInvariant      // a cluster invariant broke, always a defect
	ErrorCodeExhausted      // frame size or queue depth limit
	ErrorCodeProtocol       // wire message breaks the framing rules
	numCodes
)

// statusClientClosed is nginx's convention for a request the caller gave up on
const statusClientClosed = 499

var codeInfo = [numCodes]struct {
	name   string
	status int
}{
	ErrorCodeUnknown:         {"unknown", http.StatusInternalServerError},
	ErrorCodePanic:           {"panic", http.StatusInternalServerError},
	ErrorCodeUnavailable:     {"unavailable", http.StatusServiceUnavailable},
	ErrorCodeCanceled:        {"canceled", statusClientClosed},
	ErrorCodeConflict:        {"conflict", http.StatusConflict},
	ErrorCodeInvalidArgument: {"invalid_argument", http.StatusUnprocessableEntity},
	ErrorCodeValidation:      {"validation", http.StatusBadRequest},
	ErrorCodeJSON:            {"json", http.StatusBadRequest},
	ErrorCodeNotFound:        {"not_found", http.StatusNotFound},
	ErrorCodeDB:              {"db", http.StatusInternalServerError},
	ErrorCodeMalformedFrame:  {"malformed_frame", http.StatusBadRequest},
	ErrorCodeInvariant:       {"invariant", http.StatusInternalServerError},
	ErrorCodeExhausted:       {"exhausted", http.StatusInsufficientStorage},
	ErrorCodeProtocol:        {"protocol", http.StatusBadRequest},
}

// String is the snake_case name used in logs and metric labels
func (c ErrorCode) String() string {
	if c < numCodes {
		return codeInfo[c].name
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// HTTPStatusCode maps a code to a response status; unknown codes are 500
func HTTPStatusCode(c ErrorCode) int {
	if c < numCodes {
		return codeInfo[c].status
	}
	return http.StatusInternalServerError
}

// ErrNotFound is returned by row scans that find nothing
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a code, a message and optionally the offending field,
// the operation that failed and the cause
type Error struct {
	code  ErrorCode
	msg   string
	field string
	op    string
	cause error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.cause == nil:
		return e.msg
	default:
		return e.msg + ": " + e.cause.Error()
	}
}

func (e *Error) Unwrap() error   { return e.cause }
func (e *Error) Code() ErrorCode { return e.code }
func (e *Error) Field() string   { return e.field }
func (e *Error) Op() string      { return e.op }

// Wire is the JSON body of an error response
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// WireFrom renders any error; foreign errors keep their text and get a derived code
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return Wire{Code: e.code, Message: e.msg, Field: e.field}
	}
	return Wire{Code: CodeOf(err), Message: err.Error()}
}

// As finds the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// CodeOf is the code of the outermost *Error; context errors count as canceled
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return ErrorCodeCanceled
	}
	return ErrorCodeUnknown
}

func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// WithField returns a copy of err naming the offending field; foreign errors pass through
func WithField(err error, field string) error {
	return amend(err, func(e *Error) { e.field = field })
}

// WithOp returns a copy of err tagged with the failing operation
func WithOp(err error, op string) error {
	return amend(err, func(e *Error) { e.op = op })
}

func amend(err error, set func(*Error)) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	set(&c)
	return &c
}

func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

func Wrap(cause error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, cause: cause}
}

func Wrapf(cause error, code ErrorCode, format string, a ...any) error {
	return Wrap(cause, code, fmt.Sprintf(format, a...))
}

// WrapIf is Wrap that lets nil through, for return-statement one-liners
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Canceled wraps a context error as a cancellation
func Canceled(cause error) error { return Wrap(cause, ErrorCodeCanceled, "canceled") }

// Shorthands for the codes raised most often.
func NotFoundf(format string, a ...any) error    { return Newf(ErrorCodeNotFound, format, a...) }
func InvalidArgf(format string, a ...any) error  { return Newf(ErrorCodeInvalidArgument, format, a...) }
func JSONErrf(format string, a ...any) error     { return Newf(ErrorCodeJSON, format, a...) }
func PanicErrf(format string, a ...any) error    { return Newf(ErrorCodePanic, format, a...) }
func Conflictf(format string, a ...any) error    { return Newf(ErrorCodeConflict, format, a...) }
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }
func Malformedf(format string, a ...any) error   { return Newf(ErrorCodeMalformedFrame, format, a...) }
func Invariantf(format string, a ...any) error   { return Newf(ErrorCodeInvariant, format, a...) }
func Exhaustedf(format string, a ...any) error   { return Newf(ErrorCodeExhausted, format, a...) }
func Protocolf(format string, a ...any) error    { return Newf(ErrorCodeProtocol, format, a...) }
