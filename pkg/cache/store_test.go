package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

// runStoreContract exercises the behavior every Store must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) cache.Store) {
	t.Helper()

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(context.Background(), "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("stores and retrieves value", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "key", []byte(`"value"`), time.Minute))

		val, err := s.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, []byte(`"value"`), val)
	})

	t.Run("overwrites existing key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "key", []byte("1"), time.Minute))
		require.NoError(t, s.Set(ctx, "key", []byte("2"), time.Minute))

		val, err := s.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, []byte("2"), val)

		n, err := s.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("expires entries after ttl", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "key", []byte("v"), 100*time.Millisecond))

		val, err := s.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), val)

		time.Sleep(150 * time.Millisecond)

		_, err = s.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "key", []byte("forever"), 0))

		time.Sleep(20 * time.Millisecond)

		val, err := s.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, []byte("forever"), val)
	})

	t.Run("has reflects liveness", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		has, err := s.Has(ctx, "key")
		require.NoError(t, err)
		require.False(t, has)

		require.NoError(t, s.Set(ctx, "key", []byte("v"), 50*time.Millisecond))

		has, err = s.Has(ctx, "key")
		require.NoError(t, err)
		require.True(t, has)

		time.Sleep(100 * time.Millisecond)

		has, err = s.Has(ctx, "key")
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run("delete removes key and ignores missing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "key", []byte("v"), time.Minute))
		require.NoError(t, s.Delete(ctx, "key"))
		require.NoError(t, s.Delete(ctx, "missing"))

		_, err := s.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("clear removes all entries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
		require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))
		require.NoError(t, s.Clear(ctx))

		n, err := s.Size(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("size purges expired entries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "short", []byte("1"), 30*time.Millisecond))
		require.NoError(t, s.Set(ctx, "long", []byte("2"), time.Minute))

		n, err := s.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		time.Sleep(80 * time.Millisecond)

		n, err = s.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("stores empty value", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "empty", []byte{}, time.Minute))

		has, err := s.Has(ctx, "empty")
		require.NoError(t, err)
		require.True(t, has)
	})
}
