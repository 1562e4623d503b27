package cache_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

type prayerTimes struct {
	Fajr    string `json:"fajr"`
	Maghrib string `json:"maghrib"`
}

func newTestService(t *testing.T, opts ...cache.Option) *cache.Service {
	t.Helper()

	svc := cache.New(cache.NewMemory(), opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// --- Service: Basic Operations ---

func TestService_SetGet(t *testing.T) {
	t.Parallel()

	t.Run("round trips a struct", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		want := prayerTimes{Fajr: "05:12", Maghrib: "18:40"}

		require.NoError(t, svc.Set(ctx, "prayer-times:today", want))

		got, err := cache.Get[prayerTimes](ctx, svc, "prayer-times:today")
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)

		_, err := cache.Get[string](context.Background(), svc, "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("decode failure wraps ErrUnmarshal", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", "text"))

		_, err := cache.Get[int](ctx, svc, "key")
		require.ErrorIs(t, err, cache.ErrUnmarshal)
	})

	t.Run("encode failure wraps ErrMarshal and stores nothing", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()

		err := svc.Set(ctx, "key", make(chan int))
		require.ErrorIs(t, err, cache.ErrMarshal)

		has, err := svc.Has(ctx, "key")
		require.NoError(t, err)
		require.False(t, has)
		require.Zero(t, svc.Metrics().TotalSets)
	})

	t.Run("entry ttl expires value", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", "v", cache.WithTTL(50*time.Millisecond)))

		time.Sleep(100 * time.Millisecond)

		_, err := cache.Get[string](ctx, svc, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("default ttl applies when entry ttl is zero", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, cache.WithDefaultTTL(50*time.Millisecond))
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "short", "v"))
		require.NoError(t, svc.Set(ctx, "forever", "v", cache.WithTTL(-1)))

		time.Sleep(100 * time.Millisecond)

		has, err := svc.Has(ctx, "short")
		require.NoError(t, err)
		require.False(t, has)

		has, err = svc.Has(ctx, "forever")
		require.NoError(t, err)
		require.True(t, has, "negative ttl never expires")
	})
}

func TestService_Metadata(t *testing.T) {
	t.Parallel()

	t.Run("records tags dependencies and size", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "habits:list", []string{"fajr"},
			cache.WithTags("habits", "dashboard"),
			cache.WithDependencies("user:1"),
		))

		meta, ok := svc.Metadata("habits:list")
		require.True(t, ok)
		require.Equal(t, "habits:list", meta.Key)
		require.ElementsMatch(t, []string{"habits", "dashboard"}, meta.Tags)
		require.Equal(t, []string{"user:1"}, meta.Dependencies)
		require.Equal(t, int64(len(`["fajr"]`)), meta.Size)
		require.Zero(t, meta.AccessCount)
	})

	t.Run("hits update access tracking", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", 1))

		before, _ := svc.Metadata("key")
		time.Sleep(2 * time.Millisecond)

		_, err := cache.Get[int](ctx, svc, "key")
		require.NoError(t, err)
		_, err = cache.Get[int](ctx, svc, "key")
		require.NoError(t, err)

		after, ok := svc.Metadata("key")
		require.True(t, ok)
		require.Equal(t, int64(2), after.AccessCount)
		require.True(t, after.LastAccessed.After(before.LastAccessed))
	})

	t.Run("unencodable size falls back to default", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, cache.WithCodec(cache.GobCodec{}))
		ctx := context.Background()

		require.NoError(t, svc.Set(ctx, "inf", math.Inf(1)))

		meta, ok := svc.Metadata("inf")
		require.True(t, ok)
		require.Equal(t, cache.DefaultEntrySize, meta.Size)

		got, err := cache.Get[float64](ctx, svc, "inf")
		require.NoError(t, err)
		require.True(t, math.IsInf(got, 1))
	})

	t.Run("rewriting replaces tags", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", 1, cache.WithTags("old")))
		require.NoError(t, svc.Set(ctx, "key", 2, cache.WithTags("new")))

		n, err := svc.Invalidate(ctx, cache.InvalidateOptions{Tags: []string{"old"}})
		require.NoError(t, err)
		require.Zero(t, n)

		n, err = svc.Invalidate(ctx, cache.InvalidateOptions{Tags: []string{"new"}})
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("delete drops metadata", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", 1, cache.WithTags("t")))
		require.NoError(t, svc.Delete(ctx, "key"))

		_, ok := svc.Metadata("key")
		require.False(t, ok)
		require.Empty(t, svc.Keys())
	})
}

// --- Service: Clear ---

func TestService_Clear(t *testing.T) {
	t.Parallel()

	t.Run("empties the store", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "a", 1))
		require.NoError(t, svc.Set(ctx, "b", 2))

		require.NoError(t, svc.Clear(ctx))

		n, err := svc.Size(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("leaves metadata in place", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "a", 1, cache.WithTags("t")))

		require.NoError(t, svc.Clear(ctx))

		_, ok := svc.Metadata("a")
		require.True(t, ok)

		// Invalidating a cleared key is harmless and still counted.
		n, err := svc.Invalidate(ctx, cache.InvalidateOptions{Tags: []string{"t"}})
		require.NoError(t, err)
		require.Equal(t, 1, n)
		_, ok = svc.Metadata("a")
		require.False(t, ok)
	})
}

// --- Service: Capacity ---

func TestService_Eviction(t *testing.T) {
	t.Parallel()

	t.Run("evicts least recently accessed keys at capacity", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, cache.WithMaxSize(10))
		ctx := context.Background()

		for _, k := range []string{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9"} {
			require.NoError(t, svc.Set(ctx, k, k))
			time.Sleep(time.Millisecond)
		}

		// Touch k0 so k1 becomes the oldest.
		_, err := cache.Get[string](ctx, svc, "k0")
		require.NoError(t, err)

		require.NoError(t, svc.Set(ctx, "k10", "k10"))

		n, err := svc.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 10, n)

		has, err := svc.Has(ctx, "k1")
		require.NoError(t, err)
		require.False(t, has, "k1 was least recently accessed")

		has, err = svc.Has(ctx, "k0")
		require.NoError(t, err)
		require.True(t, has)

		require.Equal(t, int64(1), svc.Metrics().Evictions)
	})

	t.Run("clears store when untracked entries fill it", func(t *testing.T) {
		t.Parallel()

		store := cache.NewMemory()
		svc := cache.New(store, cache.WithMaxSize(2))
		t.Cleanup(func() { _ = svc.Close() })

		ctx := context.Background()
		require.NoError(t, store.Set(ctx, "foreign:1", []byte("1"), 0))
		require.NoError(t, store.Set(ctx, "foreign:2", []byte("2"), 0))

		require.NoError(t, svc.Set(ctx, "mine", "v"))

		n, err := svc.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, []string{"mine"}, svc.Keys())
		require.Equal(t, int64(2), svc.Metrics().Evictions)
	})

	t.Run("skips keys removed by clear", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, cache.WithMaxSize(10))
		ctx := context.Background()

		for i := range 10 {
			require.NoError(t, svc.Set(ctx, fmt.Sprintf("old:%d", i), i))
		}
		require.NoError(t, svc.Clear(ctx))
		time.Sleep(time.Millisecond)

		for i := range 10 {
			require.NoError(t, svc.Set(ctx, fmt.Sprintf("new:%d", i), i))
			time.Sleep(time.Millisecond)
		}
		require.NoError(t, svc.Set(ctx, "new:10", 10))

		n, err := svc.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 10, n)

		has, err := svc.Has(ctx, "new:0")
		require.NoError(t, err)
		require.False(t, has, "new:0 was the oldest live entry")
		for i := 1; i <= 10; i++ {
			has, err := svc.Has(ctx, fmt.Sprintf("new:%d", i))
			require.NoError(t, err)
			require.True(t, has)
		}

		require.Equal(t, int64(1), svc.Metrics().Evictions)
		for _, k := range svc.Keys() {
			require.NotContains(t, k, "old:")
		}
	})

	t.Run("non-positive max size disables eviction", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, cache.WithMaxSize(0))
		ctx := context.Background()

		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, svc.Set(ctx, k, k))
		}

		n, err := svc.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		require.Zero(t, svc.Metrics().Evictions)
	})
}

// --- Service: Metrics ---

func TestService_Metrics(t *testing.T) {
	t.Parallel()

	t.Run("hit and miss rates", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", "v"))

		_, err := cache.Get[string](ctx, svc, "key")
		require.NoError(t, err)
		_, err = cache.Get[string](ctx, svc, "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)

		m := svc.Metrics()
		require.Equal(t, int64(1), m.TotalHits)
		require.Equal(t, int64(1), m.TotalMisses)
		require.InDelta(t, 50.0, m.HitRate, 0.001)
		require.InDelta(t, 50.0, m.MissRate, 0.001)
		require.Equal(t, int64(1), m.TotalSets)
	})

	t.Run("rates are zero without lookups", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)

		m := svc.Metrics()
		require.Zero(t, m.HitRate)
		require.Zero(t, m.MissRate)
		require.Zero(t, m.AverageResponseTime)
	})

	t.Run("reset zeroes counters", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", "v", cache.WithTags("t")))
		_, _ = cache.Get[string](ctx, svc, "key")
		_, err := svc.Invalidate(ctx, cache.InvalidateOptions{Tags: []string{"t"}})
		require.NoError(t, err)

		svc.ResetMetrics()

		m := svc.Metrics()
		require.Zero(t, m.TotalHits)
		require.Zero(t, m.TotalSets)
		require.Zero(t, m.TotalDeletes)
		require.Zero(t, m.TotalInvalidations)
		require.Empty(t, m.InvalidationsByStrategy)
	})

	t.Run("snapshot is detached", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t)
		ctx := context.Background()
		require.NoError(t, svc.Set(ctx, "key", "v", cache.WithTags("t")))
		_, err := svc.Invalidate(ctx, cache.InvalidateOptions{Tags: []string{"t"}})
		require.NoError(t, err)

		m := svc.Metrics()
		m.InvalidationsByStrategy[cache.InvalidateTag] = 99

		require.Equal(t, int64(1), svc.Metrics().InvalidationsByStrategy[cache.InvalidateTag])
	})
}

func TestService_MemoryUsage(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, cache.WithMaxMemory(100))
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "a", "1234567890")) // 12 bytes of JSON
	require.NoError(t, svc.Set(ctx, "b", "12345678"))   // 10 bytes of JSON

	usage, err := svc.MemoryUsage(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, usage.EntryCount)
	require.Equal(t, int64(22), usage.TotalSize)
	require.InDelta(t, 11.0, usage.AverageEntrySize, 0.001)
	require.Equal(t, int64(100), usage.MaxMemory)
	require.InDelta(t, 22.0, usage.UsagePercent, 0.001)
}

// --- Service: Close ---

func TestService_Close(t *testing.T) {
	t.Parallel()

	svc := cache.New(cache.NewMemory())
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	err := svc.Set(context.Background(), "key", "v")
	require.ErrorIs(t, err, cache.ErrClosed)
}
