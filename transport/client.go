package transport

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/indigo-web/h1/http/status"
	"github.com/pkg/errors"
)

type conn struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn adapts a blocking socket to the non-blocking contract. Every read or write waits
// at most for the corresponding timeout; a deadline expiry is reported as WouldBlock and
// the io.EOF as Closed.
func NewConn(c net.Conn, readTimeout, writeTimeout time.Duration) Conn {
	return &conn{
		conn:         c,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (c *conn) TryRead(b []byte) (int, State, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return 0, 0, status.Transport(err)
	}

	n, err := c.conn.Read(b)
	if n > 0 {
		// the error (if any) will be returned again on the next call
		return n, Ready, nil
	}

	return classify(err)
}

func (c *conn) TryWrite(b []byte) (int, State, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, 0, status.Transport(err)
	}

	n, err := c.conn.Write(b)
	if err == nil {
		return n, Ready, nil
	}

	if n > 0 && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, Ready, nil
	}

	_, state, err := classify(err)
	return n, state, err
}

func classify(err error) (int, State, error) {
	switch {
	case err == nil:
		return 0, WouldBlock, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, WouldBlock, nil
	case errors.Is(err, io.EOF):
		return 0, Closed, nil
	default:
		return 0, 0, status.Transport(err)
	}
}

// Remote returns the remote address of the connection.
func (c *conn) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the connection.
func (c *conn) Close() error {
	return c.conn.Close()
}
