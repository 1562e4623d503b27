package cache

import (
	"errors"
)

// Sentinel errors for cache operations.
var (
	// ErrNotFound is returned when a key does not exist in the cache or has expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrCacheMiss is matched by the error returned from a cache-only fetch
	// when the key is not cached.
	ErrCacheMiss = errors.New("cache: miss")

	// ErrClosed is returned when an operation is attempted on a closed cache.
	ErrClosed = errors.New("cache: closed")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("cache: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")

	// ErrUnknownStrategy is returned for a fetch or invalidation strategy
	// the service does not implement.
	ErrUnknownStrategy = errors.New("cache: unknown strategy")

	// ErrNoFetcher is returned when a warm entry has no fetcher.
	ErrNoFetcher = errors.New("cache: no fetcher")

	// ErrInvalidPattern is returned when a pattern invalidation receives an
	// expression that does not compile.
	ErrInvalidPattern = errors.New("cache: invalid invalidation pattern")
)

// MissError is returned by a cache-only fetch for a key that is not cached.
// It matches both ErrCacheMiss and ErrNotFound.
type MissError struct {
	Key string
}

func (e *MissError) Error() string {
	return "Cache miss for key: " + e.Key
}

// Is reports whether target is one of the miss sentinels.
func (e *MissError) Is(target error) bool {
	return target == ErrCacheMiss || target == ErrNotFound
}
