package cache

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/ihsan/pkg/logger"
)

// Option configures a Service.
type Option func(*options)

type options struct {
	codec        Codec
	logger       *slog.Logger
	maxSize      int
	maxMemory    int64
	defaultTTL   time.Duration
	singleFlight bool
}

func defaultOptions() *options {
	return &options{
		codec:      JSONCodec{},
		logger:     logger.NewNope(),
		maxSize:    1000,
		maxMemory:  50 << 20,
		defaultTTL: 0, // never expires
	}
}

// WithMaxSize sets the entry count at which Set evicts before writing.
// Zero or negative disables eviction.
// Default: 1000.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithMaxMemory sets the byte budget MemoryUsage reports against.
// The budget is informational and never triggers eviction.
// Default: 50 MiB.
func WithMaxMemory(bytes int64) Option {
	return func(o *options) {
		if bytes > 0 {
			o.maxMemory = bytes
		}
	}
}

// WithDefaultTTL sets the TTL used when an entry is written without WithTTL.
// Default: 0 (never expires).
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		o.defaultTTL = d
	}
}

// WithCodec sets how values are encoded before reaching the Store.
// Default: JSONCodec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger used for warming failures and eviction.
// Default: discards all output.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithSingleFlight coalesces concurrent fetcher calls for the same key into
// one call. Without it, concurrent misses may each invoke their fetcher.
// Default: off.
func WithSingleFlight() Option {
	return func(o *options) {
		o.singleFlight = true
	}
}

// EntryOption configures a single Set, Fetch or warm entry.
type EntryOption func(*entryOptions)

type entryOptions struct {
	strategy          Strategy
	tags              []string
	dependencies      []string
	ttl               time.Duration
	forceRefresh      bool
	backgroundRefresh bool
}

func defaultEntryOptions() *entryOptions {
	return &entryOptions{
		strategy:          CacheFirst,
		backgroundRefresh: true,
	}
}

// WithTTL sets the entry lifetime. Zero falls back to the Service default
// TTL; a negative value never expires.
func WithTTL(d time.Duration) EntryOption {
	return func(o *entryOptions) {
		o.ttl = d
	}
}

// WithTags labels the entry for tag invalidation.
func WithTags(tags ...string) EntryOption {
	return func(o *entryOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithDependencies declares the names the entry depends on for dependency
// invalidation.
func WithDependencies(deps ...string) EntryOption {
	return func(o *entryOptions) {
		o.dependencies = append(o.dependencies, deps...)
	}
}

// WithStrategy selects the fetch strategy.
// Default: CacheFirst.
func WithStrategy(s Strategy) EntryOption {
	return func(o *entryOptions) {
		o.strategy = s
	}
}

// WithForceRefresh makes Fetch call the fetcher and store its result
// regardless of strategy.
func WithForceRefresh() EntryOption {
	return func(o *entryOptions) {
		o.forceRefresh = true
	}
}

// WithoutBackgroundRefresh stops StaleWhileRevalidate from refreshing a
// cached value in the background.
func WithoutBackgroundRefresh() EntryOption {
	return func(o *entryOptions) {
		o.backgroundRefresh = false
	}
}

func buildEntryOptions(opts []EntryOption) *entryOptions {
	o := defaultEntryOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
