package cache

import (
	"context"
	"errors"
	"fmt"
)

// Strategy selects how Fetch balances the cache against the fetcher.
type Strategy string

const (
	// CacheFirst returns a cached value when present and only calls the
	// fetcher on a miss.
	CacheFirst Strategy = "cache-first"

	// NetworkFirst always calls the fetcher and falls back to the cached
	// value when the fetcher fails.
	NetworkFirst Strategy = "network-first"

	// StaleWhileRevalidate returns a cached value immediately and refreshes
	// it in the background.
	StaleWhileRevalidate Strategy = "stale-while-revalidate"

	// CacheOnly never calls the fetcher and fails with a *MissError on a miss.
	CacheOnly Strategy = "cache-only"

	// NetworkOnly always calls the fetcher and stores the result, returning
	// the fetched value rather than re-reading the cache.
	NetworkOnly Strategy = "network-only"
)

// Fetcher loads the authoritative value for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Fetch resolves key according to the strategy chosen with WithStrategy
// (CacheFirst by default). WithForceRefresh bypasses the strategy: the
// fetcher is always called and its result stored.
//
// Fetch does not coalesce concurrent calls for the same key unless the
// Service was built WithSingleFlight.
//
// Example:
//
//	habits, err := cache.Fetch(ctx, svc, "GET:/api/habits:", loadHabits,
//	    cache.WithStrategy(cache.StaleWhileRevalidate),
//	    cache.WithTTL(5*time.Minute),
//	    cache.WithTags("habits"),
//	)
func Fetch[T any](ctx context.Context, s *Service, key string, fetcher Fetcher[T], opts ...EntryOption) (T, error) {
	o := buildEntryOptions(opts)

	if o.forceRefresh {
		return fetchAndStore(ctx, s, key, fetcher, o)
	}

	switch o.strategy {
	case CacheFirst, "":
		return cacheFirst(ctx, s, key, fetcher, o)
	case NetworkFirst:
		return networkFirst(ctx, s, key, fetcher, o)
	case StaleWhileRevalidate:
		return staleWhileRevalidate(ctx, s, key, fetcher, o)
	case CacheOnly:
		return cacheOnly[T](ctx, s, key)
	case NetworkOnly:
		return fetchAndStore(ctx, s, key, fetcher, o)
	default:
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrUnknownStrategy, o.strategy)
	}
}

func cacheFirst[T any](ctx context.Context, s *Service, key string, fetcher Fetcher[T], o *entryOptions) (T, error) {
	v, ok, err := lookup[T](ctx, s, key)
	if err != nil || ok {
		return v, err
	}
	return fetchAndStore(ctx, s, key, fetcher, o)
}

// networkFirst falls back to the cached value only when the fetcher fails.
// A failed write of a fresh value is returned as is.
func networkFirst[T any](ctx context.Context, s *Service, key string, fetcher Fetcher[T], o *entryOptions) (T, error) {
	v, err := callFetcher(ctx, s, key, fetcher)
	if err != nil {
		cached, ok, lookupErr := lookup[T](ctx, s, key)
		if lookupErr == nil && ok {
			return cached, nil
		}
		var zero T
		return zero, err
	}

	if err := s.set(ctx, key, v, o); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func staleWhileRevalidate[T any](ctx context.Context, s *Service, key string, fetcher Fetcher[T], o *entryOptions) (T, error) {
	v, ok, err := lookup[T](ctx, s, key)
	if err != nil {
		return v, err
	}
	if !ok {
		return fetchAndStore(ctx, s, key, fetcher, o)
	}

	if o.backgroundRefresh {
		// Detached from the caller: the request that triggered the refresh
		// may finish long before the fetcher does.
		bctx := context.WithoutCancel(ctx)
		s.goBackground(func() {
			fresh, err := callFetcher(bctx, s, key, fetcher)
			if err != nil {
				return
			}
			_ = s.set(bctx, key, fresh, o)
		})
	}

	return v, nil
}

func cacheOnly[T any](ctx context.Context, s *Service, key string) (T, error) {
	v, ok, err := lookup[T](ctx, s, key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &MissError{Key: key}
	}
	return v, nil
}

// fetchAndStore calls the fetcher, writes its result and returns it.
func fetchAndStore[T any](ctx context.Context, s *Service, key string, fetcher Fetcher[T], o *entryOptions) (T, error) {
	v, err := callFetcher(ctx, s, key, fetcher)
	if err != nil {
		return v, err
	}
	if err := s.set(ctx, key, v, o); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// lookup reads key, turning ErrNotFound into ok=false.
func lookup[T any](ctx context.Context, s *Service, key string) (T, bool, error) {
	v, err := Get[T](ctx, s, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return v, false, nil
		}
		return v, false, err
	}
	return v, true, nil
}

func callFetcher[T any](ctx context.Context, s *Service, key string, fetcher Fetcher[T]) (T, error) {
	if !s.opts.singleFlight {
		return fetcher(ctx)
	}

	var zero T
	res, err, _ := s.flight.Do(key, func() (any, error) {
		return fetcher(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("cache: coalesced fetch for %q returned %T", key, res)
	}
	return v, nil
}
