package cache

import "time"

// MemoryOption configures the in-memory store.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	cleanupInterval time.Duration
	maxEntries      int
}

func defaultMemoryOptions() *memoryOptions {
	return &memoryOptions{
		cleanupInterval: 0, // lazy expiry only
		maxEntries:      0, // unlimited
	}
}

// WithCleanupInterval starts a janitor goroutine that purges expired
// entries at the given interval. Zero disables it, leaving expiry lazy.
// Default: 0.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.cleanupInterval = d
	}
}

// WithMaxEntries caps the store at n entries, evicting the least recently
// used entry on insert when full. Zero means unlimited.
// The Service enforces its own capacity before writing; this is a hard
// backstop for stores used on their own.
// Default: 0.
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.maxEntries = n
	}
}
