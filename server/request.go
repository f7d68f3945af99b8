package server

import (
	"net"

	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/mime"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/protocol/http1"
	"github.com/indigo-web/h1/transport"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Request is a parsed request head together with its body. It must not be retained
// after the handler returns.
type Request struct {
	*http.RequestHead
	Body     *Body
	Remote   net.Addr
	io       *http1.IO
	hijacked bool
}

func (r *Request) Method() method.Method {
	return r.Subject.Method
}

func (r *Request) Target() string {
	return r.Subject.Target
}

// Header returns the first value of the header.
func (r *Request) Header(key string) string {
	return r.Headers.Value(key)
}

// Respond returns a new 200 OK response builder.
func (r *Request) Respond() *Response {
	return NewResponse()
}

// Hijack takes the connection over. The rest of the body is discarded first, so read it
// before if it's needed. Bytes the peer already sent past the request are read first.
// No response is written and the connection is closed as soon as the handler returns,
// so the connection can be hijacked at most once.
func (r *Request) Hijack() (transport.Conn, error) {
	if r.hijacked {
		return nil, errAlreadyHijacked
	}

	if err := r.Body.Discard(); err != nil {
		return nil, err
	}

	r.hijacked = true
	return hijackedConn{io: r.io}, nil
}

// Hijacked tells whether the connection was hijacked or not
func (r *Request) Hijacked() bool {
	return r.hijacked
}

var errAlreadyHijacked = errors.New("connection is already hijacked")

type hijackedConn struct {
	io *http1.IO
}

func (h hijackedConn) TryRead(b []byte) (int, transport.State, error) {
	return h.io.Read(b)
}

func (h hijackedConn) TryWrite(b []byte) (int, transport.State, error) {
	return h.io.TryWrite(b)
}

func (h hijackedConn) Remote() net.Addr {
	return h.io.Conn().Remote()
}

func (h hijackedConn) Close() error {
	return h.io.Close()
}

// Body is a blocking reader of the request payload.
type Body struct {
	body        *http1.Body
	stallLimit  int
	contentType string
}

func newBody(body *http1.Body, stallLimit int, contentType string) *Body {
	return &Body{
		body:        body,
		stallLimit:  stallLimit,
		contentType: contentType,
	}
}

// Bytes reads the whole payload. The returned slice is owned by the caller.
func (b *Body) Bytes() ([]byte, error) {
	return b.body.ReadAll(b.stallLimit)
}

// String reads the whole payload as a string.
func (b *Body) String() (string, error) {
	data, err := b.Bytes()
	return string(data), err
}

// JSON decodes the payload into the model. The Content-Type, if set, must be
// application/json.
func (b *Body) JSON(model any) error {
	if !mime.Complies(mime.JSON, b.contentType) {
		return status.NewError(status.UnsupportedMediaType, "request body isn't JSON")
	}

	data, err := b.Bytes()
	if err != nil {
		return err
	}

	return errors.Wrap(json.ConfigDefault.Unmarshal(data, model), "decoding JSON body")
}

// Discard drops the rest of the payload.
func (b *Body) Discard() error {
	return b.body.Discard(b.stallLimit)
}
