package http1

import (
	"maps"
	"slices"

	"github.com/benbjohnson/clock"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/transport"
	"github.com/pkg/errors"
)

// DateFormat is the IMF-fixdate layout of the Date header. The time must be in UTC.
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var errWriteStalled = errors.New("peer doesn't accept data")

// Serializer renders outgoing messages into a single growable buffer.
type Serializer struct {
	buff        []byte
	clock       clock.Clock
	defaults    map[string]string
	defaultKeys []string
	out         transport.WriteBuf
}

func NewSerializer(buff []byte, clk clock.Clock, defaults map[string]string) *Serializer {
	return &Serializer{
		buff:     buff[:0],
		clock:    clk,
		defaults: defaults,
		// the keys are sorted so the output is reproducible
		defaultKeys: slices.Sorted(maps.Keys(defaults)),
	}
}

// WriteHead appends the head of an outgoing message. The Date, the default headers and
// the framing headers are added to the head if missing. The returned encoder must be
// used for the body.
func WriteHead[In, Out any](
	s *Serializer, role Role[In, Out], head *http.MessageHead[Out], opts EncodeOptions,
) Encoder {
	headers := ensureHeaders(&head.Headers)

	if !headers.Has("Date") {
		headers.Add("Date", s.clock.Now().UTC().Format(DateFormat))
	}

	for _, key := range s.defaultKeys {
		if !headers.Has(key) {
			headers.Add(key, s.defaults[key])
		}
	}

	if opts.Close && http.ShouldKeepAlive(head.Proto, headers) {
		headers.Set("Connection", "close")
	}

	var encoder Encoder
	s.buff, encoder = role.Encode(head, opts, s.buff)

	return encoder
}

// Body appends a piece of the payload, framed by the encoder.
func (s *Serializer) Body(encoder *Encoder, data []byte) (err error) {
	s.buff, err = encoder.Encode(s.buff, data)
	return err
}

// End completes the payload.
func (s *Serializer) End(encoder *Encoder) (err error) {
	s.buff, err = encoder.End(s.buff)
	return err
}

// Bytes returns everything serialized since the last Reset.
func (s *Serializer) Bytes() []byte {
	return s.buff
}

func (s *Serializer) Len() int {
	return len(s.buff)
}

func (s *Serializer) Reset() {
	s.buff = s.buff[:0]
}

// Flush writes out everything serialized and resets the buffer. At most stallLimit
// attempts in a row may make no progress.
func (s *Serializer) Flush(w transport.Writer, stallLimit int) error {
	s.out.Reset(s.buff)
	defer s.Reset()

	for stalls := 0; !s.out.IsWritten(); {
		n, state, err := s.out.WriteTo(w)
		switch {
		case err != nil:
			return err
		case state == transport.Closed:
			return status.Transport(errors.WithMessage(errWriteStalled, "connection closed"))
		case n == 0:
			if stalls++; stalls > stallLimit {
				return status.Transport(errWriteStalled)
			}
		default:
			stalls = 0
		}
	}

	return nil
}
