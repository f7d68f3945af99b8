package status

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTransport(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		require.NoError(t, Transport(nil))
	})

	t.Run("wraps the cause", func(t *testing.T) {
		err := Transport(io.ErrClosedPipe)
		require.ErrorIs(t, err, ErrTransport)
		require.ErrorIs(t, err, io.ErrClosedPipe)
		require.Contains(t, err.Error(), io.ErrClosedPipe.Error())
		require.Equal(t, InternalServerError, CodeOf(err))
	})
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, BadRequest, CodeOf(ErrMalformedHeader))
	require.Equal(t, RequestHeaderFieldsTooLarge, CodeOf(errors.Wrap(ErrTooLarge, "parsing head")))
	require.Equal(t, NotImplemented, CodeOf(ErrUnknownMethod))
	require.Equal(t, InternalServerError, CodeOf(io.EOF))
}
