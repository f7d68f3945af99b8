package server

import (
	"io"

	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/mime"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Response is a builder of a response head and its body. The body is either static
// (sent with Content-Length) or streamed (sent chunked).
type Response struct {
	head   *http.ResponseHead
	body   []byte
	stream io.Reader
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK.
func NewResponse() *Response {
	return &Response{
		head: http.NewResponseHead(status.OK),
	}
}

// Code sets a Response code and the corresponding canonical reason phrase.
func (r *Response) Code(code status.Code) *Response {
	r.head.Subject = http.NewStatus(code)
	return r
}

// Status sets a custom reason phrase.
func (r *Response) Status(reason string) *Response {
	r.head.Subject.Reason = reason
	return r
}

// ContentType sets a custom Content-Type header value.
func (r *Response) ContentType(value mime.MIME) *Response {
	r.head.Headers.Set("Content-Type", value)
	return r
}

// Header adds the values to the key. Existing values are kept.
func (r *Response) Header(key string, values ...string) *Response {
	for _, value := range values {
		r.head.Headers.Add(key, value)
	}

	return r
}

// Headers simply merges passed headers into Response.
func (r *Response) Headers(headers map[string][]string) *Response {
	for key, values := range headers {
		r.Header(key, values...)
	}

	return r
}

// String sets the response's body to the passed string
func (r *Response) String(body string) *Response {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the response's body to passed slice WITHOUT COPYING. Changing
// the passed slice later will affect the response by itself
func (r *Response) Bytes(body []byte) *Response {
	r.body, r.stream = body, nil
	return r
}

// Write implements io.Writer interface. It always returns n=len(b) and err=nil
func (r *Response) Write(b []byte) (n int, err error) {
	r.body = append(r.body, b...)
	return len(b), nil
}

// Stream sets a body of unknown length. It's transferred chunked and read until io.EOF.
// If the reader is an io.Closer, it's closed afterward.
func (r *Response) Stream(reader io.Reader) *Response {
	r.body, r.stream = nil, reader
	return r
}

// TryJSON serializes the model and returns the Response with the JSON body and an error,
// if any occurred.
func (r *Response) TryJSON(model any) (*Response, error) {
	r.body, r.stream = r.body[:0], nil
	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return r.ContentType(mime.JSON), errors.Wrap(err, "encoding JSON body")
}

// JSON does the same as TryJSON does, except returned error is being implicitly wrapped
// by Error
func (r *Response) JSON(model any) *Response {
	resp, err := r.TryJSON(model)
	if err != nil {
		return r.Error(err)
	}

	return resp
}

// Error returns a response builder with an error set. If passed err is nil, nothing will happen.
// A protocol error sets its own code, otherwise the first of the passed codes is used,
// defaulting to 500 Internal Server Error.
func (r *Response) Error(err error, code ...status.Code) *Response {
	if err == nil {
		return r
	}

	c := status.InternalServerError
	var httpErr status.HTTPError
	switch {
	case errors.As(err, &httpErr):
		c = httpErr.Code
	case len(code) > 0:
		// peek the first, ignore the rest
		c = code[0]
	}

	return r.
		Code(c).
		ContentType(mime.WithCharset(mime.Plain)).
		String(err.Error())
}

// Head exposes the response head.
func (r *Response) Head() *http.ResponseHead {
	return r.head
}

// Respond is a predicate to request.Respond(). May be used as a dummy handler
func Respond(request *Request) *Response {
	return request.Respond()
}
