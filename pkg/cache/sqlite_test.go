package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

func newTestSQLite(t *testing.T) *cache.SQLite {
	t.Helper()

	s, err := cache.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_Contract(t *testing.T) {
	t.Parallel()

	runStoreContract(t, func(t *testing.T) cache.Store {
		return newTestSQLite(t)
	})
}

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	t.Run("requires a path", func(t *testing.T) {
		t.Parallel()

		_, err := cache.OpenSQLite(context.Background(), "  ")
		require.ErrorIs(t, err, cache.ErrEmptyPath)
	})

	t.Run("entries survive reopening", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "cache.db")

		s, err := cache.OpenSQLite(ctx, path)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "durable", []byte(`{"ok":true}`), time.Hour))
		require.NoError(t, s.Close())

		s, err = cache.OpenSQLite(ctx, path)
		require.NoError(t, err)
		defer s.Close()

		val, err := s.Get(ctx, "durable")
		require.NoError(t, err)
		require.JSONEq(t, `{"ok":true}`, string(val))
	})

	t.Run("ping succeeds on open store", func(t *testing.T) {
		t.Parallel()

		s := newTestSQLite(t)
		require.NoError(t, s.Ping(context.Background()))
	})
}
