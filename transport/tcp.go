package transport

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/h1/config"
	"github.com/pkg/errors"
)

type listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// TCP is an accept loop. Every accepted connection is served in its own goroutine and
// closed as soon as the callback returns.
type TCP struct {
	l    listener
	wg   *sync.WaitGroup
	stop *atomic.Bool
}

func NewTCP() *TCP {
	tcp := newTCP(nil)
	return &tcp
}

// NewTCPFromListener wraps an already bound listener.
func NewTCPFromListener(l net.Listener) (*TCP, error) {
	ln, ok := l.(listener)
	if !ok {
		return nil, errors.Errorf("listener %T doesn't support deadlines", l)
	}

	tcp := newTCP(ln)
	return &tcp, nil
}

func newTCP(l listener) TCP {
	return TCP{
		l:    l,
		wg:   new(sync.WaitGroup),
		stop: new(atomic.Bool),
	}
}

func bindTCP(addr string) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenTCP("tcp", tcpaddr)
}

func (t *TCP) Bind(addr string) (err error) {
	t.l, err = bindTCP(addr)
	return errors.Wrapf(err, "bind %s", addr)
}

// Addr returns the bound address.
func (t *TCP) Addr() net.Addr {
	return t.l.Addr()
}

// Listen runs the accept loop until Stop is called. Accept is interrupted every
// AcceptLoopInterruptPeriod in order to notice the stop request.
func (t *TCP) Listen(cfg config.NET, cb func(conn net.Conn)) error {
	for !t.stop.Load() {
		err := t.l.SetDeadline(time.Now().Add(cfg.AcceptLoopInterruptPeriod))
		if err != nil {
			return errors.WithStack(err)
		}

		conn, err := t.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if t.stop.Load() {
				return nil
			}

			return errors.WithStack(err)
		}

		t.wg.Add(1)
		go func(conn net.Conn) {
			defer t.wg.Done()
			cb(conn)
			_ = conn.Close()
		}(conn)
	}

	return nil
}

func (t *TCP) Stop() {
	t.stop.Store(true)
}

func (t *TCP) Close() error {
	return t.l.Close()
}

// Wait blocks until every connection callback returns.
func (t *TCP) Wait() {
	t.wg.Wait()
}
