package http1

import (
	"io"
	"strings"
	"testing"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Chunked(t *testing.T) {
	t.Run("single chunk", func(t *testing.T) {
		e := NewChunkedEncoder()
		out, err := e.Encode(nil, []byte("Hello, world!"))
		require.NoError(t, err)
		out, err = e.End(out)
		require.NoError(t, err)
		require.Equal(t, "d\r\nHello, world!\r\n0\r\n\r\n", string(out))
	})

	t.Run("empty writes are no-op", func(t *testing.T) {
		e := NewChunkedEncoder()
		out, err := e.Encode([]byte("prefix"), nil)
		require.NoError(t, err)
		require.Equal(t, "prefix", string(out))
	})

	t.Run("decodable by an independent parser", func(t *testing.T) {
		const chunkSize = 64
		payload := strings.Repeat("abcdefgh", 10*chunkSize)
		e := NewChunkedEncoder()

		var (
			out []byte
			err error
		)

		for rest := payload; len(rest) > 0; {
			n := min(len(rest), chunkSize)
			out, err = e.Encode(out, []byte(rest[:n]))
			require.NoError(t, err)
			rest = rest[n:]
		}

		out, err = e.End(out)
		require.NoError(t, err)

		parser := chunkedbody.NewParser(chunkedbody.DefaultSettings())
		var data []byte
		for len(out) > 0 {
			chunk, extra, err := parser.Parse(out, false)
			if err != nil {
				require.EqualError(t, err, io.EOF.Error())
				break
			}

			data = append(data, chunk...)
			out = extra
		}

		require.Equal(t, payload, string(data))
	})

	t.Run("decodable by own decoder", func(t *testing.T) {
		e := NewChunkedEncoder()
		out, _ := e.Encode(nil, []byte("Wiki"))
		out, _ = e.End(out)
		require.Equal(t, "4\r\nWiki\r\n0\r\n\r\n", string(out))

		d := NewChunkedDecoder()
		payload, _, err := decodeAll(t, &d, out, 3)
		require.NoError(t, err)
		require.Equal(t, "Wiki", payload)
	})
}

func TestEncoder_Length(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		e := NewLengthEncoder(5)
		out, err := e.Encode(nil, []byte("Hel"))
		require.NoError(t, err)
		out, err = e.Encode(out, []byte("lo"))
		require.NoError(t, err)
		out, err = e.End(out)
		require.NoError(t, err)
		require.Equal(t, "Hello", string(out))
	})

	t.Run("overflow", func(t *testing.T) {
		e := NewLengthEncoder(2)
		_, err := e.Encode(nil, []byte("Hello"))
		require.ErrorIs(t, err, status.ErrBodyLengthMismatch)
	})

	t.Run("short", func(t *testing.T) {
		e := NewLengthEncoder(10)
		out, err := e.Encode(nil, []byte("Hello"))
		require.NoError(t, err)
		_, err = e.End(out)
		require.ErrorIs(t, err, status.ErrBodyLengthMismatch)
	})
}

func TestEncoder_CloseAndNone(t *testing.T) {
	e := NewCloseEncoder()
	out, err := e.Encode(nil, []byte("raw bytes"))
	require.NoError(t, err)
	out, err = e.End(out)
	require.NoError(t, err)
	require.Equal(t, "raw bytes", string(out))

	e = NewNoneEncoder()
	out, err = e.Encode(nil, nil)
	require.NoError(t, err)
	require.Empty(t, out)
	_, err = e.Encode(nil, []byte("x"))
	require.ErrorIs(t, err, status.ErrBodyLengthMismatch)
}

func TestEncoderSelection(t *testing.T) {
	tcs := []struct {
		Name    string
		Headers []kv.Pair
		Framing Framing
		Want    []kv.Pair
	}{
		{
			Name:    "content length is trusted",
			Headers: []kv.Pair{{"Content-Length", "13"}},
			Framing: Length,
			Want:    []kv.Pair{{"Content-Length", "13"}},
		},
		{
			Name:    "content length wins over transfer encoding",
			Headers: []kv.Pair{{"Transfer-Encoding", "chunked"}, {"Content-Length", "5"}},
			Framing: Length,
			Want:    []kv.Pair{{"Content-Length", "5"}},
		},
		{
			Name:    "chunked by default",
			Framing: Chunked,
			Want:    []kv.Pair{{"Transfer-Encoding", "chunked"}},
		},
		{
			Name:    "chunked is appended",
			Headers: []kv.Pair{{"Transfer-Encoding", "gzip"}},
			Framing: Chunked,
			Want:    []kv.Pair{{"Transfer-Encoding", "gzip, chunked"}},
		},
		{
			Name:    "chunked is moved to the end",
			Headers: []kv.Pair{{"Transfer-Encoding", "chunked"}, {"Transfer-Encoding", "gzip"}},
			Framing: Chunked,
			Want:    []kv.Pair{{"Transfer-Encoding", "gzip, chunked"}},
		},
		{
			Name:    "invalid content length is replaced",
			Headers: []kv.Pair{{"Content-Length", "nope"}},
			Framing: Chunked,
			Want:    []kv.Pair{{"Transfer-Encoding", "chunked"}},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			headers := kv.NewFromPairs(tc.Headers...)
			e := selectEncoder(headers)
			require.Equal(t, tc.Framing, e.Framing())
			require.Equal(t, tc.Want, headers.Expose())

			// whatever was chosen must be accepted by the receiving side
			_, err := selectDecoder(headers, false)
			require.NoError(t, err)
		})
	}
}
