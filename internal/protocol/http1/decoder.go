package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/hexconv"
	"github.com/indigo-web/h1/kv"
	"github.com/indigo-web/utils/strcomp"
)

// Framing tells how the end of a message body is determined.
type Framing uint8

const (
	// None means there's no body at all.
	None Framing = iota + 1
	// Length means the body is exactly as long as declared by Content-Length.
	Length
	// Chunked means the body is transferred in the chunked transfer coding.
	Chunked
	// Close means the body lasts until the connection is closed.
	Close
)

func (f Framing) String() string {
	switch f {
	case None:
		return "none"
	case Length:
		return "length"
	case Chunked:
		return "chunked"
	case Close:
		return "close"
	default:
		return "unknown"
	}
}

type chunkedState uint8

const (
	// AwaitingSize is the beginning of a chunk-size line.
	AwaitingSize chunkedState = iota
	eChunkSizeExt
	eChunkSizeLF
	// InChunk means the chunk data is being received.
	InChunk
	eChunkDataCR
	eChunkDataLF
	// AwaitingTrailer is the beginning of a trailer field line or of the final blank line.
	AwaitingTrailer
	eTrailerLine
	eTrailerLF
	// Done means the last chunk and the trailer section were received.
	Done
)

// maxChunkSizeDigits limits the chunk size to what fits into 64 bits.
const maxChunkSizeDigits = 16

// Decoder extracts the payload out of the body bytes of a single message. It is a
// tagged variant: depending on the Framing, only some of the fields are used.
type Decoder struct {
	framing Framing
	// remaining is the number of bytes left for Length and the size of the current
	// chunk for Chunked.
	remaining uint64
	state     chunkedState
	digits    uint8
	colon     bool
	closed    bool
}

func NewLengthDecoder(n uint64) Decoder {
	return Decoder{framing: Length, remaining: n}
}

func NewChunkedDecoder() Decoder {
	return Decoder{framing: Chunked, state: AwaitingSize}
}

func NewCloseDecoder() Decoder {
	return Decoder{framing: Close}
}

func NewNoneDecoder() Decoder {
	return Decoder{framing: None}
}

func (d *Decoder) Framing() Framing {
	return d.framing
}

// State returns the chunked sub-state. The private line-ending sub-states are reported
// as the public state they belong to.
func (d *Decoder) State() chunkedState {
	switch d.state {
	case eChunkSizeExt, eChunkSizeLF:
		return AwaitingSize
	case eChunkDataCR, eChunkDataLF:
		return InChunk
	case eTrailerLine, eTrailerLF:
		return AwaitingTrailer
	default:
		return d.state
	}
}

// Remaining returns the number of bytes left for Length or in the current chunk.
func (d *Decoder) Remaining() uint64 {
	return d.remaining
}

// Done reports whether the whole body was decoded. A Close decoder is done only after
// Finish.
func (d *Decoder) Done() bool {
	switch d.framing {
	case Length:
		return d.remaining == 0
	case Chunked:
		return d.state == Done
	case Close:
		return d.closed
	default:
		return true
	}
}

// Finish notifies the decoder about the end of the stream. It is an error for every
// decoder, except Close, unless it's already done.
func (d *Decoder) Finish() error {
	if d.framing == Close {
		d.closed = true
		return nil
	}

	if d.Done() {
		return nil
	}

	return status.ErrUnexpectedEOF
}

// Decode consumes n bytes of data, returning at most one piece of payload. The piece is
// a sub-slice of data. Bytes past the end of the body are never consumed.
func (d *Decoder) Decode(data []byte) (body []byte, n int, err error) {
	if d.Done() {
		return nil, 0, nil
	}

	switch d.framing {
	case Length:
		size := int(min(d.remaining, uint64(len(data))))
		d.remaining -= uint64(size)
		return data[:size], size, nil
	case Chunked:
		return d.decodeChunked(data)
	case Close:
		return data, len(data), nil
	default:
		return nil, 0, nil
	}
}

func (d *Decoder) decodeChunked(data []byte) (body []byte, offset int, err error) {
	switch d.state {
	case AwaitingSize:
		goto chunkSize
	case eChunkSizeExt:
		goto chunkSizeExt
	case eChunkSizeLF:
		goto chunkSizeLF
	case InChunk:
		goto chunkData
	case eChunkDataCR:
		goto chunkDataCR
	case eChunkDataLF:
		goto chunkDataLF
	case AwaitingTrailer:
		goto trailer
	case eTrailerLine:
		goto trailerLine
	case eTrailerLF:
		goto trailerLF
	default:
		panic("unreachable code")
	}

chunkSize:
	for ; offset < len(data); offset++ {
		switch char := data[offset]; char {
		case '\r', '\n', ';':
			if d.digits == 0 {
				return nil, 0, status.ErrInvalidChunkFraming
			}

			switch char {
			case '\r':
				offset++
				goto chunkSizeLF
			case '\n':
				goto chunkSizeLF
			default:
				offset++
				goto chunkSizeExt
			}
		default:
			val := hexconv.Halfbyte[char]
			if val == hexconv.Invalid {
				return nil, 0, status.ErrInvalidChunkFraming
			}

			d.remaining = (d.remaining << 4) | uint64(val)
			if d.digits++; d.digits > maxChunkSizeDigits {
				return nil, 0, status.ErrInvalidChunkFraming
			}
		}
	}

	d.state = AwaitingSize
	return nil, offset, nil

chunkSizeExt:
	{
		// chunk extensions are ignored
		lf := bytes.IndexByte(data[offset:], '\n')
		if lf == -1 {
			d.state = eChunkSizeExt
			return nil, len(data), nil
		}

		offset += lf + 1
		goto chunkSizeDone
	}

chunkSizeLF:
	if offset == len(data) {
		d.state = eChunkSizeLF
		return nil, offset, nil
	}

	if data[offset] != '\n' {
		return nil, 0, status.ErrInvalidChunkFraming
	}

	offset++

chunkSizeDone:
	d.digits = 0
	if d.remaining == 0 {
		goto trailer
	}

chunkData:
	if offset == len(data) {
		d.state = InChunk
		return nil, offset, nil
	}

	{
		n := min(d.remaining, uint64(len(data)-offset))
		d.remaining -= n
		body = data[offset : offset+int(n)]
		offset += int(n)

		if d.remaining == 0 {
			d.state = eChunkDataCR
		} else {
			d.state = InChunk
		}

		return body, offset, nil
	}

chunkDataCR:
	if offset == len(data) {
		d.state = eChunkDataCR
		return nil, offset, nil
	}

	switch data[offset] {
	case '\r':
		offset++
	case '\n':
		offset++
		goto chunkSize
	default:
		return nil, 0, status.ErrInvalidChunkFraming
	}

chunkDataLF:
	if offset == len(data) {
		d.state = eChunkDataLF
		return nil, offset, nil
	}

	if data[offset] != '\n' {
		return nil, 0, status.ErrInvalidChunkFraming
	}

	offset++
	goto chunkSize

trailer:
	if offset == len(data) {
		d.state = AwaitingTrailer
		return nil, offset, nil
	}

	switch data[offset] {
	case '\r':
		offset++
		goto trailerLF
	case '\n':
		offset++
		d.state = Done
		return nil, offset, nil
	}

trailerLine:
	{
		// trailer fields are passed through without being interpreted
		lf := bytes.IndexByte(data[offset:], '\n')
		if lf == -1 {
			d.colon = d.colon || bytes.IndexByte(data[offset:], ':') != -1
			d.state = eTrailerLine
			return nil, len(data), nil
		}

		if !d.colon && bytes.IndexByte(data[offset:offset+lf], ':') == -1 {
			return nil, 0, status.ErrInvalidChunkFraming
		}

		d.colon = false
		offset += lf + 1
		goto trailer
	}

trailerLF:
	if offset == len(data) {
		d.state = eTrailerLF
		return nil, offset, nil
	}

	if data[offset] != '\n' {
		return nil, 0, status.ErrInvalidChunkFraming
	}

	offset++
	d.state = Done
	return nil, offset, nil
}

// selectDecoder picks the body framing out of the Content-Length and Transfer-Encoding
// fields. Requests and responses differ only in what happens to messages without either.
func selectDecoder(headers *kv.Storage, response bool) (Decoder, error) {
	contentLength, hasLength, err := parseContentLength(headers)
	if err != nil {
		return Decoder{}, err
	}

	encodings := headers.Values("Transfer-Encoding")
	if len(encodings) > 0 {
		chunked, err := chunkedIsFinal(encodings, response)
		switch {
		case err != nil:
			return Decoder{}, err
		case chunked && hasLength:
			return Decoder{}, status.ErrConflictingContentLength
		case chunked:
			return NewChunkedDecoder(), nil
		case response:
			return NewCloseDecoder(), nil
		default:
			return Decoder{}, status.ErrMalformedHeader
		}
	}

	switch {
	case hasLength:
		return NewLengthDecoder(contentLength), nil
	case response:
		return NewCloseDecoder(), nil
	default:
		return NewNoneDecoder(), nil
	}
}

// parseContentLength requires at most one Content-Length field holding a single value.
// Multiple fields or comma-separated lists are rejected even if the values are equal.
func parseContentLength(headers *kv.Storage) (value uint64, found bool, err error) {
	raw, found := headers.Get("Content-Length")
	if !found {
		return 0, false, nil
	}

	if headers.Count("Content-Length") > 1 || strings.IndexByte(raw, ',') != -1 {
		return 0, false, status.ErrConflictingContentLength
	}

	if len(raw) == 0 || raw[0] < '0' || raw[0] > '9' {
		return 0, false, status.ErrMalformedHeader
	}

	value, err = strconv.ParseUint(raw, 10, 63)
	if err != nil {
		return 0, false, status.ErrMalformedHeader
	}

	return value, true, nil
}

// chunkedIsFinal walks the transfer codings across all the Transfer-Encoding fields.
// The chunked coding may appear only once. A request must have it as the last coding,
// while a response without it at the end is simply delimited by the connection close.
func chunkedIsFinal(values []string, response bool) (bool, error) {
	var (
		last    string
		chunked int
	)

	for _, value := range values {
		for _, coding := range strings.Split(value, ",") {
			coding = strings.Trim(coding, " \t")
			if len(coding) == 0 {
				continue
			}

			if strcomp.EqualFold(coding, "chunked") {
				chunked++
			}

			last = coding
		}
	}

	isFinal := strcomp.EqualFold(last, "chunked")
	switch {
	case chunked > 1:
		return false, status.ErrMalformedHeader
	case chunked == 1 && !isFinal && !response:
		return false, status.ErrMalformedHeader
	}

	return isFinal, nil
}
