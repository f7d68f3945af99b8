package server

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/indigo-web/h1/config"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/proto"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/buffer"
	"github.com/indigo-web/h1/internal/protocol/http1"
	"github.com/indigo-web/h1/transport"
	"github.com/pkg/errors"
)

// Handler answers a single request. A nil response stands for an empty 200 OK.
type Handler func(*Request) *Response

type Option func(*Server)

// KeepAlive enables or disables serving more than one request per connection.
func KeepAlive(enabled bool) Option {
	return func(s *Server) {
		s.cfg.Server.KeepAlive = enabled
	}
}

// IdleTimeout limits how long a connection may stay silent.
func IdleTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.cfg.Server.IdleTimeout = timeout
	}
}

// MaxSockets limits the number of simultaneously served connections.
func MaxSockets(n int) Option {
	return func(s *Server) {
		s.cfg.Server.MaxSockets = n
	}
}

func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		s.clock = clk
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

type Server struct {
	cfg     config.Config
	handler Handler
	clock   clock.Clock
	logger  *slog.Logger
	sockets chan struct{}

	mu      sync.Mutex
	tcp     *transport.TCP
	stopped bool
}

func New(cfg *config.Config, handler Handler, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:     *cfg,
		handler: handler,
		clock:   clock.New(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sockets = make(chan struct{}, s.cfg.Server.MaxSockets)
	return s
}

// ListenAndServe binds the address and serves it until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	tcp := transport.NewTCP()
	if err := tcp.Bind(addr); err != nil {
		return err
	}

	return s.serve(tcp)
}

// Serve accepts connections on the listener until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	tcp, err := transport.NewTCPFromListener(l)
	if err != nil {
		return err
	}

	return s.serve(tcp)
}

func (s *Server) serve(tcp *transport.TCP) error {
	defer func() {
		_ = tcp.Close()
	}()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}

	s.tcp = tcp
	s.mu.Unlock()

	err := tcp.Listen(s.cfg.NET, func(conn net.Conn) {
		select {
		case s.sockets <- struct{}{}:
			defer func() {
				<-s.sockets
			}()
		default:
			s.logger.Warn("dropping connection: too many sockets", "remote", conn.RemoteAddr())
			return
		}

		s.ServeConn(transport.NewConn(conn, s.cfg.NET.ReadTimeout, s.cfg.NET.WriteTimeout))
	})

	tcp.Wait()
	return err
}

// Stop interrupts the accept loop. Serve returns once every connection is done.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.tcp != nil {
		s.tcp.Stop()
	}
}

// ServeConn runs the request loop on a single connection until it's closed, an error
// occurs or the keep-alive ends. The connection is closed on return.
func (s *Server) ServeConn(conn transport.Conn) {
	c := s.newConn(conn)
	defer func() {
		_ = conn.Close()
	}()

	for c.serveRequest() {
	}
}

type serverConn struct {
	srv        *Server
	io         *http1.IO
	role       http1.Server
	serializer *http1.Serializer
	// lastActivity is when the last byte was received
	lastActivity time.Time
	buffered     int
}

func (s *Server) newConn(conn transport.Conn) *serverConn {
	return &serverConn{
		srv: s,
		io: http1.NewIO(conn, buffer.New(
			s.cfg.Buffer.Size.Default, s.cfg.Buffer.Size.Maximal,
		)),
		role: http1.Server{MaxHeaders: s.cfg.Headers.Number.Maximal},
		serializer: http1.NewSerializer(
			make([]byte, 0, s.cfg.NET.WriteBufferSize), s.clock, s.cfg.Headers.Default,
		),
		lastActivity: s.clock.Now(),
	}
}

// serveRequest handles at most one request and tells whether the connection may be
// used further.
func (c *serverConn) serveRequest() (ok bool) {
	head, err := http1.Parse(c.io, c.role)
	switch {
	case err == nil && head == nil:
		return c.checkIdle()
	case errors.Is(err, io.EOF), errors.Is(err, status.ErrTransport):
		return false
	case err != nil:
		c.writeError(err)
		return false
	}

	c.lastActivity = c.srv.clock.Now()

	decoder, err := c.role.Decoder(head)
	if err != nil {
		c.writeError(err)
		return false
	}

	cfg := c.srv.cfg
	body := http1.NewBody(c.io, decoder, cfg.Body.MaxSize)
	request := &Request{
		RequestHead: head,
		Body:        newBody(body, cfg.Body.StallLimit, head.Headers.Value("Content-Type")),
		Remote:      c.io.Conn().Remote(),
		io:          c.io,
	}

	response := c.srv.handler(request)
	if request.Hijacked() {
		return false
	}

	if response == nil {
		response = NewResponse()
	}

	keepAlive := cfg.Server.KeepAlive && head.ShouldKeepAlive() &&
		http.ShouldKeepAlive(proto.HTTP11, response.head.Headers)
	if keepAlive {
		if err = body.Discard(cfg.Body.StallLimit); err != nil {
			keepAlive = false
		}
	}

	if err = c.write(head, response, !keepAlive); err != nil {
		c.srv.logger.Debug("failed to write the response", "remote", request.Remote, "err", err)
		return false
	}

	c.buffered = c.io.Buffered()
	return keepAlive
}

// checkIdle is called after a read that completed no head. Any new byte counts as
// activity, otherwise the connection is closed once it's idle for too long.
func (c *serverConn) checkIdle() bool {
	if buffered := c.io.Buffered(); buffered != c.buffered {
		c.buffered = buffered
		c.lastActivity = c.srv.clock.Now()
		return true
	}

	if c.srv.clock.Since(c.lastActivity) < c.srv.cfg.Server.IdleTimeout {
		return true
	}

	if c.buffered > 0 {
		// a request was started, but never finished
		c.writeError(status.ErrRequestTimeout)
	}

	return false
}

// writeError makes the best effort to notify the peer about the error before closing
// the connection.
func (c *serverConn) writeError(err error) {
	response := NewResponse().Error(err, status.CodeOf(err))
	request := http.NewRequestHead(method.GET, "/")
	if writeErr := c.write(request, response, true); writeErr != nil {
		c.srv.logger.Debug("failed to write the error response", "err", writeErr)
	}
}

func (c *serverConn) write(request *http.RequestHead, response *Response, close bool) error {
	head := response.head
	head.Proto = proto.HTTP11
	if !close && request.Proto == proto.HTTP10 {
		head.Headers.Set("Connection", "keep-alive")
	}

	if response.stream != nil && request.Proto == proto.HTTP10 {
		// HTTP/1.0 peers don't understand the chunked coding
		if err := response.drainStream(); err != nil {
			return err
		}
	}

	if response.stream == nil && !head.Headers.Has("Content-Length") &&
		status.AllowsBody(head.Subject.OrDefault().Code) {
		head.Headers.Set("Content-Length", strconv.Itoa(len(response.body)))
	}

	opts := http1.EncodeOptions{
		Bodyless: request.Subject.Method == method.HEAD,
		Close:    close,
	}

	ser := c.serializer
	encoder := http1.WriteHead(ser, c.role, head, opts)

	if encoder.Framing() != http1.None {
		var err error
		if response.stream != nil {
			err = c.writeStream(&encoder, response.stream)
		} else {
			err = ser.Body(&encoder, response.body)
		}

		if err != nil {
			ser.Reset()
			return err
		}
	}

	if closer, ok := response.stream.(io.Closer); ok {
		_ = closer.Close()
	}

	if err := ser.End(&encoder); err != nil {
		ser.Reset()
		return err
	}

	return ser.Flush(c.io, c.srv.cfg.Body.StallLimit)
}

// writeStream copies the stream into the serializer, flushing whenever the write buffer
// size is exceeded.
func (c *serverConn) writeStream(encoder *http1.Encoder, stream io.Reader) error {
	ser := c.serializer
	chunk := make([]byte, c.srv.cfg.NET.WriteBufferSize)

	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			if bodyErr := ser.Body(encoder, chunk[:n]); bodyErr != nil {
				return bodyErr
			}

			if ser.Len() >= c.srv.cfg.NET.WriteBufferSize {
				if flushErr := ser.Flush(c.io, c.srv.cfg.Body.StallLimit); flushErr != nil {
					return flushErr
				}
			}
		}

		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return errors.Wrap(err, "reading response stream")
		}
	}
}

func (r *Response) drainStream() error {
	data, err := io.ReadAll(r.stream)
	if closer, ok := r.stream.(io.Closer); ok {
		_ = closer.Close()
	}

	r.body, r.stream = data, nil
	return errors.Wrap(err, "reading response stream")
}
