package kv

import (
	"testing"

	"github.com/indigo-web/iter"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	getHeaders := func() *Storage {
		return New().
			Add("Foo", "bar").
			Add("Hello", "World").
			Add("Lorem", "ipsum").
			Add("hello", "Pavlo")
	}

	t.Run("get is case-insensitive", func(t *testing.T) {
		kv := getHeaders()
		require.Equal(t, "World", kv.Value("HELLO"))
		require.Equal(t, []string{"World", "Pavlo"}, kv.Values("hello"))
		require.Equal(t, 2, kv.Count("Hello"))
		require.True(t, kv.Has("lorem"))
		require.False(t, kv.Has("dolor"))
		require.Equal(t, "default", kv.ValueOr("dolor", "default"))
		require.Nil(t, kv.Values("dolor"))
	})

	t.Run("order and case are preserved", func(t *testing.T) {
		want := []Pair{
			{"Foo", "bar"},
			{"Hello", "World"},
			{"Lorem", "ipsum"},
			{"hello", "Pavlo"},
		}

		require.Equal(t, want, getHeaders().Expose())
		require.Equal(t, []string{"Foo", "Hello", "Lorem"}, getHeaders().Keys())
	})

	t.Run("delete", func(t *testing.T) {
		kv := getHeaders().Delete("HELLO")

		want := []Pair{
			{"Foo", "bar"},
			{"Lorem", "ipsum"},
		}

		require.Equal(t, want, kv.Expose())
	})

	t.Run("set", func(t *testing.T) {
		kv := getHeaders().Set("HELLO", "no more Pavlo")

		want := []Pair{
			{"Foo", "bar"},
			{"Hello", "no more Pavlo"},
			{"Lorem", "ipsum"},
		}

		require.Equal(t, want, kv.Expose())
	})

	t.Run("set new key", func(t *testing.T) {
		kv := getHeaders().Set("Dolor", "sit")
		require.Equal(t, 5, kv.Len())
		require.Equal(t, Pair{"Dolor", "sit"}, kv.Expose()[4])
	})

	t.Run("clone", func(t *testing.T) {
		kv := getHeaders()
		cloned := kv.Clone()
		kv.Clear()
		require.True(t, kv.Empty())
		require.Equal(t, 4, cloned.Len())
		require.Equal(t, cloned.Expose(), NewFromPairs(cloned.Expose()...).Expose())
	})
}

func TestStorage_Iter(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, ok := New().Iter().Next()
		require.False(t, ok)
	})

	t.Run("insertion order", func(t *testing.T) {
		kv := New().Add("Hello", "World").Add("hello", "Pavlo").Add("Foo", "bar")
		require.Equal(t, kv.Expose(), iter.Extract(kv.Iter(), nil))
	})
}
