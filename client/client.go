package client

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/indigo-web/h1/client/dns"
	"github.com/indigo-web/h1/config"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/buffer"
	"github.com/indigo-web/h1/internal/protocol/http1"
	"github.com/indigo-web/h1/transport"
	"github.com/pkg/errors"
)

var ErrUnsupportedScheme = errors.New("only plain http is supported")

// Request is an outgoing request together with the address it's sent to.
type Request struct {
	*http.RequestHead
	Host string
	// Port of zero stands for the configured default port.
	Port uint16
	// Body of nil is omitted entirely for methods that don't define a payload.
	Body []byte
}

// NewRequest builds a request from an absolute http URL. The Host header is set to the
// URL authority.
func NewRequest(m method.Method, rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing url")
	}

	if u.Scheme != "http" {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "scheme(%s)", u.Scheme)
	}

	var port uint16
	if p := u.Port(); len(p) > 0 {
		parsed, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing port(%s)", p)
		}

		port = uint16(parsed)
	}

	head := http.NewRequestHead(m, u.RequestURI())
	head.Headers.Add("Host", u.Host)

	return &Request{
		RequestHead: head,
		Host:        u.Hostname(),
		Port:        port,
		Body:        body,
	}, nil
}

// Response is a received response head with the fully read body.
type Response struct {
	*http.ResponseHead
	Body []byte
}

func (r *Response) Code() status.Code {
	return r.Subject.Code
}

type Option func(*Client)

func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// Client sends every request over a fresh connection, which is closed as soon as the
// response is read.
type Client struct {
	cfg      config.Config
	resolver *dns.Resolver
	dialer   *net.Dialer
	clock    clock.Clock
	logger   *slog.Logger
}

func New(cfg *config.Config, resolver *dns.Resolver, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Client{
		cfg:      *cfg,
		resolver: resolver,
		dialer:   new(net.Dialer),
		clock:    clock.New(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do resolves the host, sends the request and reads the response.
func (c *Client) Do(ctx context.Context, request *Request) (*Response, error) {
	ips, err := c.resolver.Resolve(ctx, request.Host).Wait(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving host")
	}

	port := request.Port
	if port == 0 {
		port = uint16(c.cfg.Resolver.DefaultPort)
	}

	raw, err := c.dial(ctx, ips, port)
	if err != nil {
		return nil, errors.Wrap(err, "dialing")
	}

	conn := transport.NewConn(raw, c.cfg.NET.ReadTimeout, c.cfg.NET.WriteTimeout)
	defer func() {
		_ = conn.Close()
	}()

	response, err := c.roundtrip(ctx, conn, request)
	if err != nil {
		return nil, errors.Wrap(err, "error while request-response roundtrip")
	}

	return response, nil
}

func (c *Client) dial(ctx context.Context, ips []net.IP, port uint16) (conn net.Conn, err error) {
	for _, ip := range ips {
		addr := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
		conn, err = c.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}

		c.logger.Debug("dial failed", "addr", addr, "err", err)
	}

	return nil, err
}

func (c *Client) roundtrip(ctx context.Context, conn transport.Conn, request *Request) (*Response, error) {
	cfg := c.cfg
	role := http1.Client{
		MaxHeaders: cfg.Headers.Number.Maximal,
		Method:     request.Subject.Method,
	}
	rw := http1.NewIO(conn, buffer.New(cfg.Buffer.Size.Default, cfg.Buffer.Size.Maximal))

	if err := c.send(rw, role, request); err != nil {
		return nil, err
	}

	head, err := c.receive(ctx, rw, role)
	if err != nil {
		return nil, err
	}

	decoder, err := role.Decoder(head)
	if err != nil {
		return nil, err
	}

	body, err := http1.NewBody(rw, decoder, cfg.Body.MaxSize).ReadAll(cfg.Body.StallLimit)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	return &Response{ResponseHead: head, Body: body}, nil
}

func (c *Client) send(rw *http1.IO, role http1.Client, request *Request) error {
	head := request.RequestHead
	bodyless := request.Body == nil && !definesPayload(head.Subject.Method)
	if !bodyless && !head.Headers.Has("Content-Length") && !head.Headers.Has("Transfer-Encoding") {
		head.Headers.Set("Content-Length", strconv.Itoa(len(request.Body)))
	}

	ser := http1.NewSerializer(
		make([]byte, 0, c.cfg.NET.WriteBufferSize), c.clock, c.cfg.Headers.Default,
	)
	encoder := http1.WriteHead(ser, role, head, http1.EncodeOptions{
		Bodyless: bodyless,
		Close:    true,
	})

	if encoder.Framing() != http1.None {
		if err := ser.Body(&encoder, request.Body); err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	if err := ser.End(&encoder); err != nil {
		return errors.Wrap(err, "encoding request body")
	}

	return errors.Wrap(ser.Flush(rw, c.cfg.Body.StallLimit), "sending request")
}

// receive waits for the final response head, skipping informational ones.
func (c *Client) receive(ctx context.Context, rw *http1.IO, role http1.Client) (*http.ResponseHead, error) {
	var stalls, buffered int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		head, err := http1.Parse(rw, role)
		if err != nil {
			return nil, errors.Wrap(err, "reading response head")
		}

		if head == nil {
			if rw.Buffered() != buffered {
				buffered, stalls = rw.Buffered(), 0
				continue
			}

			stalls++
			if stalls > c.cfg.Body.StallLimit {
				return nil, status.ErrRequestTimeout
			}

			continue
		}

		if code := head.Subject.Code; code >= 100 && code < 200 && code != status.SwitchingProtocols {
			c.logger.Debug("skipping informational response", "code", code)
			buffered, stalls = rw.Buffered(), 0
			continue
		}

		return head, nil
	}
}

func definesPayload(m method.Method) bool {
	switch m {
	case method.POST, method.PUT, method.PATCH:
		return true
	default:
		return false
	}
}
