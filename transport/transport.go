package transport

import "net"

// State is the outcome of a single non-blocking transfer attempt.
type State uint8

const (
	// Ready means that bytes were transferred.
	Ready State = iota + 1
	// WouldBlock means that no data (or no capacity) is available right now. It is
	// never an error and never an end-of-stream.
	WouldBlock
	// Closed means that the peer has finished the stream.
	Closed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case WouldBlock:
		return "would block"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reader is a byte stream that never blocks. A non-nil error is always fatal and is
// reported together with a zero State.
type Reader interface {
	TryRead(b []byte) (n int, state State, err error)
}

// Writer is the output counterpart of Reader. Partial writes are reported as Ready with
// n < len(b).
type Writer interface {
	TryWrite(b []byte) (n int, state State, err error)
}

// Conn is a single byte-stream endpoint owned by exactly one connection driver.
type Conn interface {
	Reader
	Writer
	Remote() net.Addr
	Close() error
}
