package a2a

import (
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to retry,
// re-request approval, or escalate.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindPrecondition      Kind = "precondition_failed"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindUpstream          Kind = "upstream_unavailable"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindMethodNotFound    Kind = "method_not_found"
)

// Error is the taxonomy error every skill handler maps its failures
// into. No raw internal error reaches the transport layer.
type Error struct {
	Status  int
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Status: http.StatusNotFound, Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Precondition(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) *Error {
	return &Error{Status: http.StatusUnauthorized, Kind: KindUnauthenticated, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Status: http.StatusForbidden, Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Upstream(format string, args ...any) *Error {
	return &Error{Status: http.StatusInternalServerError, Kind: KindUpstream, Message: fmt.Sprintf(format, args...)}
}

func SignatureMismatch(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindSignatureMismatch, Message: fmt.Sprintf(format, args...)}
}
