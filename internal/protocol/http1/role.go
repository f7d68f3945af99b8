package http1

import (
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/proto"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
)

// Role specializes the engine for one side of a connection. In is the head type it
// receives, Out is the head type it sends.
type Role[In, Out any] interface {
	// Parse is safe to be called again on a growing prefix of the same stream. A truncated
	// head results in (nil, 0, nil). On success, n is the offset right past the blank line.
	Parse(data []byte) (head *http.MessageHead[In], n int, err error)
	// Decoder selects how the body of an incoming message is delimited.
	Decoder(head *http.MessageHead[In]) (Decoder, error)
	// Encode adjusts the framing headers of an outgoing message, appends its head to dst
	// and returns the encoder for the body.
	Encode(head *http.MessageHead[Out], opts EncodeOptions, dst []byte) ([]byte, Encoder)
}

// EncodeOptions tune how an outgoing message is serialized.
type EncodeOptions struct {
	// Bodyless means that no body is going to follow the head: for a server it's a
	// response to a HEAD request, for a client it's a request without a body.
	Bodyless bool
	// Close asks to terminate the connection after this message.
	Close bool
}

var (
	_ Role[http.RequestLine, http.RawStatus] = Server{}
	_ Role[http.RawStatus, http.RequestLine] = Client{}
)

// Server receives requests and sends responses.
type Server struct {
	MaxHeaders int
}

func (s Server) Parse(data []byte) (*http.RequestHead, int, error) {
	return parseRequest(data, s.MaxHeaders)
}

func (Server) Decoder(head *http.RequestHead) (Decoder, error) {
	return selectDecoder(head.Headers, false)
}

func (Server) Encode(head *http.ResponseHead, opts EncodeOptions, dst []byte) ([]byte, Encoder) {
	headers := ensureHeaders(&head.Headers)
	code := head.Subject.OrDefault().Code

	var encoder Encoder
	if status.AllowsBody(code) {
		encoder = selectEncoder(headers)
	} else {
		headers.Delete("Content-Length").Delete("Transfer-Encoding")
		encoder = NewNoneEncoder()
	}

	if opts.Bodyless {
		encoder = NewNoneEncoder()
	}

	dst = append(dst, protoOrDefault(head.Proto).String()...)
	dst = append(dst, ' ')
	dst = append(dst, head.Subject.String()...)
	dst = append(dst, crlf...)

	return writeHeaders(dst, headers), encoder
}

// Client sends requests and receives responses. Method is the method of the request the
// incoming response answers to.
type Client struct {
	MaxHeaders int
	Method     method.Method
}

func (c Client) Parse(data []byte) (*http.ResponseHead, int, error) {
	return parseResponse(data, c.MaxHeaders)
}

func (c Client) Decoder(head *http.ResponseHead) (Decoder, error) {
	if c.Method == method.HEAD || !status.AllowsBody(head.Subject.Code) {
		return NewNoneDecoder(), nil
	}

	return selectDecoder(head.Headers, true)
}

func (Client) Encode(head *http.RequestHead, opts EncodeOptions, dst []byte) ([]byte, Encoder) {
	headers := ensureHeaders(&head.Headers)

	var encoder Encoder
	if opts.Bodyless {
		encoder = NewNoneEncoder()
	} else {
		encoder = selectEncoder(headers)
	}

	dst = append(dst, head.Subject.Method.String()...)
	dst = append(dst, ' ')
	dst = append(dst, head.Subject.Target...)
	dst = append(dst, ' ')
	dst = append(dst, protoOrDefault(head.Proto).String()...)
	dst = append(dst, crlf...)

	return writeHeaders(dst, headers), encoder
}

func ensureHeaders(headers **kv.Storage) *kv.Storage {
	if *headers == nil {
		*headers = kv.New()
	}

	return *headers
}

func protoOrDefault(p proto.Proto) proto.Proto {
	if p == proto.Unknown {
		return proto.HTTP11
	}

	return p
}
