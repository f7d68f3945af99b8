package dummy

import (
	"net"

	"github.com/indigo-web/h1/transport"
)

var _ transport.Conn = new(Conn)

// Conn is a scripted connection. Every read returns at most one of the pieces it was
// initialised with; an empty piece produces a WouldBlock. Once the pieces are exhausted,
// reads report Closed, unless the reads are looped.
type Conn struct {
	pieces [][]byte
	// pending holds the part of the current piece, not fitting the previous read
	pending []byte
	pointer int
	loop    bool
	hang    bool
	closed  bool
	// Written holds everything written into the connection.
	Written []byte
	// writeLimit caps a single write, emulating partial writes. Zero disables it.
	writeLimit int
	// blockWrites makes every odd write attempt report WouldBlock.
	blockWrites, blockNext bool
}

func NewConn(pieces ...[]byte) *Conn {
	return &Conn{pieces: pieces}
}

// NewNopConn returns a connection that is closed from the very beginning.
func NewNopConn() *Conn {
	return NewConn()
}

// LoopReads makes the connection start over once the pieces are exhausted.
func (c *Conn) LoopReads() *Conn {
	c.loop = true
	return c
}

// Hang makes the connection report WouldBlock instead of Closed once the pieces are
// exhausted, as a silent peer would.
func (c *Conn) Hang() *Conn {
	c.hang = true
	return c
}

// LimitWrites caps how many bytes a single write may take.
func (c *Conn) LimitWrites(n int) *Conn {
	c.writeLimit = n
	return c
}

// BlockWrites makes every other write attempt report WouldBlock.
func (c *Conn) BlockWrites() *Conn {
	c.blockWrites = true
	return c
}

func (c *Conn) TryRead(b []byte) (int, transport.State, error) {
	if c.closed {
		return 0, transport.Closed, nil
	}

	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		return n, transport.Ready, nil
	}

	if c.pointer >= len(c.pieces) {
		if c.hang {
			return 0, transport.WouldBlock, nil
		}

		if !c.loop || len(c.pieces) == 0 {
			return 0, transport.Closed, nil
		}

		c.pointer = 0
	}

	piece := c.pieces[c.pointer]
	c.pointer++
	if len(piece) == 0 {
		return 0, transport.WouldBlock, nil
	}

	n := copy(b, piece)
	c.pending = piece[n:]

	return n, transport.Ready, nil
}

func (c *Conn) TryWrite(b []byte) (int, transport.State, error) {
	if c.closed {
		return 0, transport.Closed, nil
	}

	if c.blockWrites {
		c.blockNext = !c.blockNext
		if c.blockNext {
			return 0, transport.WouldBlock, nil
		}
	}

	if c.writeLimit > 0 && len(b) > c.writeLimit {
		b = b[:c.writeLimit]
	}

	c.Written = append(c.Written, b...)
	return len(b), transport.Ready, nil
}

func (*Conn) Remote() net.Addr {
	return nil
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.closed
}
