package http1

import (
	"bufio"
	"bytes"
	"io"
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/proto"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
	"github.com/indigo-web/h1/transport/dummy"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.March, 9, 13, 37, 0, 0, time.UTC)

func getSerializer(defaults map[string]string) *Serializer {
	mock := clock.NewMock()
	mock.Set(epoch)
	return NewSerializer(make([]byte, 0, 512), mock, defaults)
}

func TestSerializer_Response(t *testing.T) {
	t.Run("content length", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewResponseHead(status.OK)
		head.Headers.Add("Content-Length", "13")
		enc := WriteHead(s, server, head, EncodeOptions{})
		require.NoError(t, s.Body(&enc, []byte("Hello, world!")))
		require.NoError(t, s.End(&enc))

		want := "HTTP/1.1 200 OK\r\n" +
			"Content-Length: 13\r\n" +
			"Date: Sat, 09 Mar 2024 13:37:00 GMT\r\n" +
			"\r\n" +
			"Hello, world!"
		require.Equal(t, want, string(s.Bytes()))
	})

	t.Run("chunked", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewResponseHead(status.Created)
		enc := WriteHead(s, server, head, EncodeOptions{})
		require.NoError(t, s.Body(&enc, []byte("Hello, ")))
		require.NoError(t, s.Body(&enc, []byte("world!")))
		require.NoError(t, s.End(&enc))

		resp, err := stdhttp.ReadResponse(bufio.NewReader(bytes.NewReader(s.Bytes())), nil)
		require.NoError(t, err)
		require.Equal(t, 201, resp.StatusCode)
		require.Equal(t, []string{"chunked"}, resp.TransferEncoding)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", string(body))
	})

	t.Run("bodyless statuses get no framing", func(t *testing.T) {
		for _, code := range []status.Code{status.Continue, status.NoContent, status.NotModified} {
			s := getSerializer(nil)
			head := http.NewResponseHead(code)
			head.Headers.Add("Content-Length", "10")
			enc := WriteHead(s, server, head, EncodeOptions{})
			require.Equal(t, None, enc.Framing())
			require.False(t, head.Headers.Has("Content-Length"))
			require.False(t, head.Headers.Has("Transfer-Encoding"))
		}
	})

	t.Run("response to HEAD keeps the length", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewResponseHead(status.OK)
		head.Headers.Add("Content-Length", "100")
		enc := WriteHead(s, server, head, EncodeOptions{Bodyless: true})
		require.Equal(t, None, enc.Framing())
		require.Equal(t, "100", head.Headers.Value("Content-Length"))
	})

	t.Run("zero status is 200 OK", func(t *testing.T) {
		s := getSerializer(nil)
		head := &http.ResponseHead{}
		WriteHead(s, server, head, EncodeOptions{})
		require.True(t, bytes.HasPrefix(s.Bytes(), []byte("HTTP/1.1 200 OK\r\n")))
	})

	t.Run("date and defaults aren't overridden", func(t *testing.T) {
		s := getSerializer(map[string]string{
			"Server": "h1",
			"X-Foo":  "bar",
		})
		head := http.NewResponseHead(status.OK)
		head.Headers.
			Add("Date", "yesterday").
			Add("x-foo", "custom").
			Add("Content-Length", "0")
		WriteHead(s, server, head, EncodeOptions{})

		require.Equal(t, []kv.Pair{
			{"Date", "yesterday"},
			{"x-foo", "custom"},
			{"Content-Length", "0"},
			{"Server", "h1"},
		}, head.Headers.Expose())
	})

	t.Run("connection close", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewResponseHead(status.OK)
		head.Headers.Add("Connection", "keep-alive")
		WriteHead(s, server, head, EncodeOptions{Close: true})
		require.Equal(t, "close", head.Headers.Value("Connection"))
		require.False(t, head.ShouldKeepAlive())

		s.Reset()
		head = http.NewResponseHead(status.OK)
		head.Proto = proto.HTTP10
		WriteHead(s, server, head, EncodeOptions{Close: true})
		require.False(t, head.Headers.Has("Connection"), "HTTP/1.0 closes by default")
	})
}

func TestSerializer_Request(t *testing.T) {
	t.Run("bodyless", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewRequestHead(method.GET, "/index.html")
		head.Headers.Add("Host", "example.com")
		enc := WriteHead(s, client, head, EncodeOptions{Bodyless: true})
		require.Equal(t, None, enc.Framing())

		req, err := stdhttp.ReadRequest(bufio.NewReader(bytes.NewReader(s.Bytes())))
		require.NoError(t, err)
		require.Equal(t, "GET", req.Method)
		require.Equal(t, "/index.html", req.RequestURI)
		require.Equal(t, "example.com", req.Host)
		require.Equal(t, "Sat, 09 Mar 2024 13:37:00 GMT", req.Header.Get("Date"))
	})

	t.Run("streamed body", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewRequestHead(method.POST, "/upload")
		head.Headers.Add("Host", "example.com")
		enc := WriteHead(s, client, head, EncodeOptions{})
		require.Equal(t, Chunked, enc.Framing())
		require.NoError(t, s.Body(&enc, []byte("payload")))
		require.NoError(t, s.End(&enc))

		req, err := stdhttp.ReadRequest(bufio.NewReader(bytes.NewReader(s.Bytes())))
		require.NoError(t, err)
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, "payload", string(body))
	})
}

func TestRoundTrip(t *testing.T) {
	t.Run("response", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewResponseHead(status.NotFound)
		head.Headers.
			Add("Content-Type", "text/plain").
			Add("Set-Cookie", "a=1").
			Add("Set-Cookie", "b=2").
			Add("Content-Length", "9")
		enc := WriteHead(s, server, head, EncodeOptions{})
		require.NoError(t, s.Body(&enc, []byte("not found")))
		require.NoError(t, s.End(&enc))

		parsed, n, err := client.Parse(s.Bytes())
		require.NoError(t, err)
		require.Equal(t, head.Proto, parsed.Proto)
		require.Equal(t, head.Subject, parsed.Subject)
		require.Equal(t, head.Headers.Expose(), parsed.Headers.Expose())

		dec, err := client.Decoder(parsed)
		require.NoError(t, err)
		payload, _, err := decodeAll(t, &dec, s.Bytes()[n:], 0)
		require.NoError(t, err)
		require.Equal(t, "not found", payload)
	})

	t.Run("request", func(t *testing.T) {
		s := getSerializer(nil)
		head := http.NewRequestHead(method.PUT, "/resource?id=1")
		head.Headers.Add("Host", "localhost").Add("Accept", "*/*")
		enc := WriteHead(s, client, head, EncodeOptions{})
		require.NoError(t, s.Body(&enc, []byte("Wiki")))
		require.NoError(t, s.End(&enc))

		parsed, n, err := server.Parse(s.Bytes())
		require.NoError(t, err)
		require.Equal(t, head.Subject, parsed.Subject)
		require.Equal(t, head.Headers.Expose(), parsed.Headers.Expose())

		dec, err := server.Decoder(parsed)
		require.NoError(t, err)
		require.Equal(t, Chunked, dec.Framing())
		payload, _, err := decodeAll(t, &dec, s.Bytes()[n:], 1)
		require.NoError(t, err)
		require.Equal(t, "Wiki", payload)
	})
}

func TestSerializer_Flush(t *testing.T) {
	s := getSerializer(nil)
	head := http.NewResponseHead(status.OK)
	head.Headers.Add("Content-Length", "0")
	WriteHead(s, server, head, EncodeOptions{})
	want := string(s.Bytes())

	conn := dummy.NewConn().LimitWrites(7).BlockWrites()
	require.NoError(t, s.Flush(conn, 1))
	require.Equal(t, want, string(conn.Written))
	require.Zero(t, s.Len())

	WriteHead(s, server, http.NewResponseHead(status.OK), EncodeOptions{})
	require.NoError(t, conn.Close())
	require.Error(t, s.Flush(conn, 1))
}
