// Package cache is a multi-strategy cache engine over pluggable storage
// backends, with tag and dependency invalidation, TTL expiry, warming and
// metrics.
//
// # Stores
//
// Every backend implements the [Store] interface over encoded bytes:
//
//   - Get(ctx, key) ([]byte, error): ErrNotFound when absent or expired
//   - Set(ctx, key, value, ttl) error: ttl <= 0 never expires
//   - Delete, Has, Clear, Size, Close
//
// Expiry is lazy: an expired entry is removed when it is read, and Size
// purges expired entries before counting.
//
// Four backends are provided:
//
//   - [Memory]: in-process map with LRU ordering
//   - [SQLite]: durable, transactional, single file ([modernc.org/sqlite])
//   - [Postgres]: durable, transactional, shared ([github.com/jackc/pgx/v5])
//   - [Redis]: string-keyed, one JSON envelope per key ([github.com/redis/go-redis/v9])
//
// # Service
//
// [Service] wraps one Store and is shared by every consumer:
//
//	svc := cache.New(cache.NewMemory(),
//	    cache.WithMaxSize(1000),
//	    cache.WithLogger(log),
//	)
//	defer svc.Close()
//
//	err := svc.Set(ctx, "user:1", user,
//	    cache.WithTTL(10*time.Minute),
//	    cache.WithTags("users"),
//	    cache.WithDependencies("user-location"),
//	)
//	u, err := cache.Get[User](ctx, svc, "user:1")
//
// When the Store holds at least the configured maximum number of entries,
// Set first evicts the least recently accessed tenth of the keys it tracks,
// and clears the Store if that is not enough.
//
// # Fetch Strategies
//
// [Fetch] combines the cache with a fetcher:
//
//	plans, err := cache.Fetch(ctx, svc, key, loadPlans,
//	    cache.WithStrategy(cache.NetworkFirst),
//	    cache.WithTags("plans"),
//	)
//
//   - [CacheFirst]: cached value if present, else fetch and store
//   - [NetworkFirst]: fetch and store, fall back to the cached value on error
//   - [StaleWhileRevalidate]: cached value now, refresh in the background
//   - [CacheOnly]: cached value or a [*MissError]; never fetches
//   - [NetworkOnly]: fetch, store and return the fetched value
//
// [WithForceRefresh] makes every strategy fetch and store. Concurrent misses
// for one key may each call their fetcher unless the Service is built with
// [WithSingleFlight].
//
// # Invalidation
//
// Keys are resolved from in-process indices that are empty at startup, so a
// durable Store may hold entries from an earlier process that only become
// invalidatable once they are written again:
//
//	n, err := svc.Invalidate(ctx, cache.InvalidateOptions{Tags: []string{"habits", "dashboard"}})
//	n, err = svc.Invalidate(ctx, cache.InvalidateOptions{
//	    Dependencies: []string{"user-location"},
//	    Cascade:      true,
//	})
//	n, err = svc.Invalidate(ctx, cache.InvalidateOptions{Pattern: `habits.*analytics`})
//
// # Warming
//
// [Service.Warm] preloads entries by priority in batches of five:
//
//	report := svc.Warm(ctx,
//	    cache.WarmEntry{Key: "prayer-times", Fetcher: cache.WarmFunc(loadPrayerTimes), Priority: 10},
//	    cache.WarmEntry{Key: "habits", Fetcher: cache.WarmFunc(loadHabits)},
//	)
//
// # Metrics
//
// [Service.Metrics] returns hit and miss counts and rates, write and
// invalidation totals and the average response time of the last 100 reads.
// [Service.MemoryUsage] reports estimated bytes against the budget set with
// [WithMaxMemory]; the budget is never enforced. [NewCollector] exports both
// to Prometheus.
//
// # Error Handling
//
//   - [ErrNotFound]: key does not exist or has expired
//   - [ErrCacheMiss]: matched by the cache-only [*MissError]
//   - [ErrClosed]: operation on a closed store
//   - [ErrMarshal], [ErrUnmarshal]: codec failures
//   - [ErrUnknownStrategy], [ErrInvalidPattern]: bad options
//
// Store I/O errors are returned as they are.
package cache
