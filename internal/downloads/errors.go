package downloads

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed (or cancelled) run
type ErrorKind string

const (
	// KindSizeLimitExceeded is raised before any network call when the
	// requested canvas exceeds the un-tiled maximum and tiling is disabled
	KindSizeLimitExceeded ErrorKind = "size_limit_exceeded"

	// KindServerOverloaded is an HTTP 500-class response from the raster
	// service, usually meaning the requested area is too large or the server
	// is temporarily unavailable
	KindServerOverloaded ErrorKind = "server_overloaded"

	// KindHTTPError is any other non-2xx response
	KindHTTPError ErrorKind = "http_error"

	// KindNetworkError is a connection or timeout failure
	KindNetworkError ErrorKind = "network_error"

	// KindUnreadableResponse means neither typed-raster nor image decoding
	// succeeded, even after the plain-image format retry
	KindUnreadableResponse ErrorKind = "unreadable_response"

	// KindUnexpectedShape means a decoded buffer has an unsupported dimensionality
	KindUnexpectedShape ErrorKind = "unexpected_shape"

	// KindWriteFailure is a serialization or storage error
	KindWriteFailure ErrorKind = "write_failure"

	// KindCancelled marks cooperative cancellation; it is a normal outcome,
	// not a failure, and callers must not present it as an error
	KindCancelled ErrorKind = "cancelled"
)

// Error is the structured error surfaced once per failed run
type Error struct {
	Kind    ErrorKind
	Message string

	// StatusCode is set for ServerOverloaded / HTTPError
	StatusCode int

	// RequestedWidth/Height and MaxSize are set for SizeLimitExceeded
	RequestedWidth  int
	RequestedHeight int
	MaxSize         int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two download errors by kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError builds a structured error
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a structured error around a cause
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Cancelled is the sentinel returned by a run that observed cancellation
var Cancelled = &Error{Kind: KindCancelled, Message: "download cancelled"}

// KindOf extracts the error kind, or empty for foreign errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCancelled reports whether err represents cooperative cancellation
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
