package http1

import (
	"strconv"
	"strings"

	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/hexconv"
	"github.com/indigo-web/h1/kv"
	"github.com/indigo-web/utils/strcomp"
)

var (
	crlf             = []byte("\r\n")
	chunkZeroTrailer = []byte("0\r\n\r\n")
)

// Encoder frames the payload of a single outgoing message.
type Encoder struct {
	framing   Framing
	remaining uint64
}

func NewLengthEncoder(n uint64) Encoder {
	return Encoder{framing: Length, remaining: n}
}

func NewChunkedEncoder() Encoder {
	return Encoder{framing: Chunked}
}

func NewCloseEncoder() Encoder {
	return Encoder{framing: Close}
}

func NewNoneEncoder() Encoder {
	return Encoder{framing: None}
}

func (e *Encoder) Framing() Framing {
	return e.framing
}

// Encode appends the framed data to dst.
func (e *Encoder) Encode(dst, data []byte) ([]byte, error) {
	switch e.framing {
	case Length:
		if uint64(len(data)) > e.remaining {
			return dst, status.ErrBodyLengthMismatch
		}

		e.remaining -= uint64(len(data))
		return append(dst, data...), nil
	case Chunked:
		if len(data) == 0 {
			// an empty chunk would terminate the body
			return dst, nil
		}

		dst = hexconv.Append(dst, uint64(len(data)))
		dst = append(dst, crlf...)
		dst = append(dst, data...)
		return append(dst, crlf...), nil
	case Close:
		return append(dst, data...), nil
	default:
		if len(data) > 0 {
			return dst, status.ErrBodyLengthMismatch
		}

		return dst, nil
	}
}

// End completes the body. A Length encoder must have received exactly the declared
// number of bytes by now.
func (e *Encoder) End(dst []byte) ([]byte, error) {
	switch e.framing {
	case Length:
		if e.remaining != 0 {
			return dst, status.ErrBodyLengthMismatch
		}

		return dst, nil
	case Chunked:
		// the encoder must not be reused after End
		e.framing = None
		return append(dst, chunkZeroTrailer...), nil
	default:
		return dst, nil
	}
}

// selectEncoder chooses the outgoing framing and makes the headers describe it. A valid
// Content-Length is trusted. Otherwise the Transfer-Encoding is made to end in chunked.
func selectEncoder(headers *kv.Storage) Encoder {
	if raw, found := headers.Get("Content-Length"); found {
		if headers.Count("Content-Length") == 1 {
			if n, err := strconv.ParseUint(raw, 10, 63); err == nil {
				// a peer must not see both framings at once
				headers.Delete("Transfer-Encoding")
				return NewLengthEncoder(n)
			}
		}

		headers.Delete("Content-Length")
	}

	encodings := headers.Values("Transfer-Encoding")
	if len(encodings) == 0 {
		headers.Add("Transfer-Encoding", "chunked")
		return NewChunkedEncoder()
	}

	codings := make([]string, 0, len(encodings)+1)
	for _, value := range encodings {
		for _, coding := range strings.Split(value, ",") {
			coding = strings.Trim(coding, " \t")
			if len(coding) == 0 || strcomp.EqualFold(coding, "chunked") {
				continue
			}

			codings = append(codings, coding)
		}
	}

	codings = append(codings, "chunked")
	headers.Set("Transfer-Encoding", strings.Join(codings, ", "))

	return NewChunkedEncoder()
}

func writeHeaders(dst []byte, headers *kv.Storage) []byte {
	pairs := headers.Iter()
	for pair, ok := pairs.Next(); ok; pair, ok = pairs.Next() {
		dst = append(dst, pair.Key...)
		dst = append(dst, ": "...)
		dst = append(dst, pair.Value...)
		dst = append(dst, crlf...)
	}

	return append(dst, crlf...)
}
