package http

import (
	"strconv"

	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/proto"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// MessageHead is a start line plus headers of an HTTP message, excluding the body. The
// Subject is either a RequestLine or a RawStatus, depending on the direction.
type MessageHead[S any] struct {
	Proto   proto.Proto
	Subject S
	Headers *kv.Storage
}

type (
	RequestHead  = MessageHead[RequestLine]
	ResponseHead = MessageHead[RawStatus]
)

// NewRequestHead returns an HTTP/1.1 request head with empty headers.
func NewRequestHead(m method.Method, target string) *RequestHead {
	return &RequestHead{
		Proto:   proto.HTTP11,
		Subject: RequestLine{Method: m, Target: target},
		Headers: kv.New(),
	}
}

// NewResponseHead returns an HTTP/1.1 response head with the canonical reason phrase
// of the code and empty headers.
func NewResponseHead(code status.Code) *ResponseHead {
	return &ResponseHead{
		Proto:   proto.HTTP11,
		Subject: NewStatus(code),
		Headers: kv.New(),
	}
}

// ShouldKeepAlive tells whether the connection may be reused after this message.
func (m *MessageHead[S]) ShouldKeepAlive() bool {
	return ShouldKeepAlive(m.Proto, m.Headers)
}

type RequestLine struct {
	Method method.Method
	Target string
}

func (r RequestLine) String() string {
	return r.Method.String() + " " + r.Target
}

// RawStatus is the status code and reason phrase exactly as they are sent or received.
// The zero value renders as 200 OK.
type RawStatus struct {
	Code   status.Code
	Reason string
}

// NewStatus returns the status with the canonical reason phrase of the code.
func NewStatus(code status.Code) RawStatus {
	return RawStatus{Code: code, Reason: status.Text(code)}
}

// OrDefault substitutes the zero value with 200 OK.
func (r RawStatus) OrDefault() RawStatus {
	if r.Code == 0 {
		return NewStatus(status.OK)
	}

	return r
}

func (r RawStatus) String() string {
	r = r.OrDefault()
	return strconv.Itoa(int(r.Code)) + " " + r.Reason
}

// MarshalJSON encodes the status as a [code, "reason"] tuple.
func (r RawStatus) MarshalJSON() ([]byte, error) {
	r = r.OrDefault()
	stream := json.ConfigDefault.BorrowStream(nil)
	defer json.ConfigDefault.ReturnStream(stream)

	stream.WriteArrayStart()
	stream.WriteUint16(uint16(r.Code))
	stream.WriteMore()
	stream.WriteString(r.Reason)
	stream.WriteArrayEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}

	return append([]byte(nil), stream.Buffer()...), nil
}

// UnmarshalJSON decodes the [code, "reason"] tuple produced by MarshalJSON.
func (r *RawStatus) UnmarshalJSON(data []byte) error {
	iterator := json.ConfigDefault.BorrowIterator(data)
	defer json.ConfigDefault.ReturnIterator(iterator)

	var (
		decoded RawStatus
		fields  int
	)

	for iterator.ReadArray() {
		switch fields {
		case 0:
			decoded.Code = status.Code(iterator.ReadUint16())
		case 1:
			decoded.Reason = iterator.ReadString()
		default:
			iterator.Skip()
		}

		fields++
	}

	if iterator.Error != nil {
		return errors.Wrap(iterator.Error, "decoding status tuple")
	}

	if fields != 2 {
		return errors.Errorf("status tuple must have exactly 2 elements, got %d", fields)
	}

	*r = decoded
	return nil
}
