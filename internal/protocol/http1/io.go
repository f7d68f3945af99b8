package http1

import (
	"io"

	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/buffer"
	"github.com/indigo-web/h1/transport"
)

// IO couples a connection with its transport buffer. It's exclusively owned by a single
// connection driver.
type IO struct {
	conn transport.Conn
	buf  *buffer.Buffer
}

func NewIO(conn transport.Conn, buf *buffer.Buffer) *IO {
	return &IO{
		conn: conn,
		buf:  buf,
	}
}

// Read drains the buffered bytes first. Only when nothing is buffered, the read is
// delegated to the connection.
func (i *IO) Read(dst []byte) (int, transport.State, error) {
	if i.buf.Len() > 0 {
		n := copy(dst, i.buf.Bytes())
		i.buf.Consume(n)
		return n, transport.Ready, nil
	}

	i.buf.Reset()
	n, state, err := i.conn.TryRead(dst)
	if err == nil && state == transport.Ready && n == 0 {
		state = transport.WouldBlock
	}

	return n, state, err
}

// Fill makes a single attempt to read more bytes into the buffer.
func (i *IO) Fill() (int, transport.State, error) {
	i.buf.Reset()
	return i.buf.ReadFrom(i.conn)
}

// Buffered returns the number of received, but not yet consumed bytes.
func (i *IO) Buffered() int {
	return i.buf.Len()
}

// Bytes returns the received, but not yet consumed bytes.
func (i *IO) Bytes() []byte {
	return i.buf.Bytes()
}

func (i *IO) Consume(n int) {
	i.buf.Consume(n)
}

func (i *IO) TryWrite(b []byte) (int, transport.State, error) {
	return i.conn.TryWrite(b)
}

func (i *IO) Conn() transport.Conn {
	return i.conn
}

func (i *IO) Close() error {
	return i.conn.Close()
}

// Parse tries to parse a head out of the buffered bytes and, if they aren't enough, reads
// once more and tries again. The parsed bytes are consumed. (nil, nil) means that the
// head is incomplete yet, io.EOF means that the peer closed the connection cleanly
// between messages.
func Parse[In, Out any](conn *IO, role Role[In, Out]) (*http.MessageHead[In], error) {
	if conn.buf.Len() > 0 {
		head, err := parseBuffered(conn, role)
		if head != nil || err != nil {
			return head, err
		}
	}

	_, state, err := conn.Fill()
	if err != nil {
		return nil, err
	}

	switch state {
	case transport.Closed:
		if onlyEmptyLines(conn.buf.Bytes()) {
			return nil, io.EOF
		}

		return nil, status.ErrUnexpectedEOF
	case transport.Ready:
		head, err := parseBuffered(conn, role)
		if head != nil || err != nil {
			return head, err
		}
	}

	if conn.buf.IsMaxSize() && conn.buf.Compact() == 0 {
		return nil, status.ErrTooLarge
	}

	return nil, nil
}

func parseBuffered[In, Out any](conn *IO, role Role[In, Out]) (*http.MessageHead[In], error) {
	head, n, err := role.Parse(conn.buf.Bytes())
	if err != nil || head == nil {
		return nil, err
	}

	conn.buf.Consume(n)
	return head, nil
}

// onlyEmptyLines reports whether the data holds nothing but line terminators, which are
// tolerated between messages.
func onlyEmptyLines(data []byte) bool {
	for _, c := range data {
		if c != '\r' && c != '\n' {
			return false
		}
	}

	return true
}
