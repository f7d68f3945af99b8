package http1

import (
	"io"

	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/transport"
)

// Body reads the payload of a single incoming message through its decoder.
type Body struct {
	io       *IO
	decoder  Decoder
	maxSize  uint64
	received uint64
	err      error
}

func NewBody(io *IO, decoder Decoder, maxSize uint64) *Body {
	b := &Body{
		io:      io,
		decoder: decoder,
		maxSize: maxSize,
	}

	if decoder.Framing() == Length && decoder.Remaining() > maxSize {
		b.err = status.ErrBodyTooLarge
	}

	return b
}

// Next returns a single piece of the payload. The piece stays valid until the next call.
// (nil, nil) means there's no data right now, io.EOF means the payload is complete.
func (b *Body) Next() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	for !b.decoder.Done() {
		if b.io.Buffered() > 0 {
			piece, n, err := b.decoder.Decode(b.io.Bytes())
			if err != nil {
				b.err = err
				return nil, err
			}

			b.io.Consume(n)

			if len(piece) > 0 {
				b.received += uint64(len(piece))
				if b.received > b.maxSize {
					b.err = status.ErrBodyTooLarge
					return nil, b.err
				}

				return piece, nil
			}

			if n > 0 {
				continue
			}
		}

		_, state, err := b.io.Fill()
		if err != nil {
			b.err = err
			return nil, err
		}

		switch state {
		case transport.WouldBlock:
			return nil, nil
		case transport.Closed:
			if err = b.decoder.Finish(); err != nil {
				b.err = err
				return nil, err
			}
		}
	}

	b.err = io.EOF
	return nil, io.EOF
}

// Done reports whether the whole payload was read.
func (b *Body) Done() bool {
	return b.decoder.Done()
}

// Framing returns how the payload is delimited.
func (b *Body) Framing() Framing {
	return b.decoder.Framing()
}

// ReadAll reads the whole payload, tolerating at most stallLimit reads in a row that
// brought no data. The returned slice is owned by the caller.
func (b *Body) ReadAll(stallLimit int) ([]byte, error) {
	var payload []byte
	err := b.drain(stallLimit, func(piece []byte) {
		payload = append(payload, piece...)
	})

	return payload, err
}

// Discard reads and drops the rest of the payload, so the next message on the same
// connection can be parsed.
func (b *Body) Discard(stallLimit int) error {
	return b.drain(stallLimit, func([]byte) {})
}

func (b *Body) drain(stallLimit int, onPiece func([]byte)) error {
	for stalls := 0; ; {
		piece, err := b.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		case piece == nil:
			if stalls++; stalls > stallLimit {
				return status.ErrRequestTimeout
			}
		default:
			stalls = 0
			onPiece(piece)
		}
	}
}
