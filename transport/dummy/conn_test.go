package dummy

import (
	"testing"

	"github.com/indigo-web/h1/transport"
	"github.com/stretchr/testify/require"
)

func TestConn(t *testing.T) {
	read := func(t *testing.T, c *Conn, size int) (string, transport.State) {
		buff := make([]byte, size)
		n, state, err := c.TryRead(buff)
		require.NoError(t, err)
		return string(buff[:n]), state
	}

	t.Run("no looping", func(t *testing.T) {
		c := NewConn([]byte("Hello"), nil, []byte("world!"))

		data, state := read(t, c, 64)
		require.Equal(t, transport.Ready, state)
		require.Equal(t, "Hello", data)

		_, state = read(t, c, 64)
		require.Equal(t, transport.WouldBlock, state)

		data, state = read(t, c, 64)
		require.Equal(t, transport.Ready, state)
		require.Equal(t, "world!", data)

		_, state = read(t, c, 64)
		require.Equal(t, transport.Closed, state)
	})

	t.Run("piece bigger than the buffer", func(t *testing.T) {
		c := NewConn([]byte("Hello"))
		data, _ := read(t, c, 3)
		require.Equal(t, "Hel", data)
		data, _ = read(t, c, 3)
		require.Equal(t, "lo", data)
	})

	t.Run("looped reads", func(t *testing.T) {
		pieces := [][]byte{[]byte("Hello"), []byte("world"), []byte("!")}
		c := NewConn(pieces...).LoopReads()

		for i := 0; i < len(pieces)*2; i++ {
			data, state := read(t, c, 64)
			require.Equal(t, transport.Ready, state)
			require.Equal(t, string(pieces[i%len(pieces)]), data)
		}
	})

	t.Run("limited and blocked writes", func(t *testing.T) {
		c := NewConn().LimitWrites(2).BlockWrites()

		_, state, err := c.TryWrite([]byte("abc"))
		require.NoError(t, err)
		require.Equal(t, transport.WouldBlock, state)

		n, state, err := c.TryWrite([]byte("abc"))
		require.NoError(t, err)
		require.Equal(t, transport.Ready, state)
		require.Equal(t, 2, n)
		require.Equal(t, "ab", string(c.Written))
	})
}

func TestConn_Hang(t *testing.T) {
	c := NewConn([]byte("data")).Hang()
	buff := make([]byte, 8)

	_, state, err := c.TryRead(buff)
	require.NoError(t, err)
	require.Equal(t, transport.Ready, state)

	for range 3 {
		_, state, err = c.TryRead(buff)
		require.NoError(t, err)
		require.Equal(t, transport.WouldBlock, state)
	}

	require.NoError(t, c.Close())
	_, state, _ = c.TryRead(buff)
	require.Equal(t, transport.Closed, state)
}
