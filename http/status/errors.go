package status

import (
	"github.com/pkg/errors"
)

// HTTPError is a protocol-level failure. Code is the status a server would answer with
// before closing the connection.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrMalformedStartLine       = NewError(BadRequest, "malformed start line")
	ErrUnknownMethod            = NewError(NotImplemented, "request method is not supported")
	ErrUnsupportedProtocol      = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrMalformedHeader          = NewError(BadRequest, "malformed header field")
	ErrTooManyHeaders           = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrInvalidChunkFraming      = NewError(BadRequest, "malformed chunk-encoded data")
	ErrConflictingContentLength = NewError(BadRequest, "conflicting message length")
	ErrTooLarge                 = NewError(RequestHeaderFieldsTooLarge, "message head is too large")
	ErrUnexpectedEOF            = NewError(BadRequest, "peer closed the connection mid-message")
	ErrBodyTooLarge             = NewError(RequestEntityTooLarge, "message body is too large")
	ErrBodyLengthMismatch       = NewError(InternalServerError, "body length doesn't match the declared one")
	ErrRequestTimeout           = NewError(RequestTimeout, "request timeout")
	ErrTransport                = NewError(InternalServerError, "transport failure")
)

type transportError struct {
	cause error
}

// Transport wraps an I/O failure (anything except "no data right now") so that
// errors.Is(err, ErrTransport) holds while the original cause stays reachable.
func Transport(err error) error {
	if err == nil {
		return nil
	}

	return transportError{cause: errors.WithStack(err)}
}

func (t transportError) Error() string {
	return ErrTransport.Error() + ": " + t.cause.Error()
}

func (t transportError) Unwrap() error {
	return t.cause
}

func (t transportError) Is(target error) bool {
	return target == ErrTransport
}

// CodeOf returns the status code carried by err, or InternalServerError if err isn't
// a protocol error.
func CodeOf(err error) Code {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return InternalServerError
}
