package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultEntrySize is the size recorded for a value whose JSON size cannot
// be estimated.
const DefaultEntrySize int64 = 1024

// Service layers tags, dependencies, fetch strategies, metrics and warming
// over a Store. One Service is meant to be constructed at startup and shared
// by every consumer.
//
// Metadata and indices are guarded by a mutex, but sequences that span a
// Store call (capacity check then write, cache lookup then fetch) are not
// atomic with respect to other callers.
type Service struct {
	store   Store
	opts    *options
	index   *index
	metrics *metrics
	flight  singleflight.Group
	bg      sync.WaitGroup
	bgMu    sync.Mutex
	closed  bool
}

// New creates a Service over store.
//
// Example:
//
//	svc := cache.New(cache.NewMemory(),
//	    cache.WithMaxSize(500),
//	    cache.WithLogger(log),
//	)
//	defer svc.Close()
func New(store Store, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Service{
		store:   store,
		opts:    o,
		index:   newIndex(),
		metrics: newMetrics(),
	}
}

// Store returns the backend the Service writes through to.
func (s *Service) Store() Store {
	return s.store
}

// GetRaw returns the encoded value for key.
// A hit updates access tracking and records the Store response time.
// Returns ErrNotFound on a miss; Store errors are returned unchanged.
func (s *Service) GetRaw(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.miss()
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.index.touch(key, time.Now())
	s.metrics.hit(time.Since(start))

	return data, nil
}

// Get returns the decoded value for key.
//
// Example:
//
//	times, err := cache.Get[PrayerTimes](ctx, svc, "prayer-times:today")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // handle miss
//	}
func Get[T any](ctx context.Context, s *Service, key string) (T, error) {
	var v T
	data, err := s.GetRaw(ctx, key)
	if err != nil {
		return v, err
	}
	if err := s.opts.codec.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// Set encodes value and writes it through to the Store, evicting first if
// the Store is at capacity. Tags and dependencies given with WithTags and
// WithDependencies replace any the key had before.
func (s *Service) Set(ctx context.Context, key string, value any, opts ...EntryOption) error {
	return s.set(ctx, key, value, buildEntryOptions(opts))
}

func (s *Service) set(ctx context.Context, key string, value any, o *entryOptions) error {
	if err := s.ensureCapacity(ctx); err != nil {
		return err
	}

	data, err := s.opts.codec.Marshal(value)
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, key, data, s.resolveTTL(o.ttl)); err != nil {
		return err
	}

	size := estimateSize(value)
	s.index.put(key, o.tags, o.dependencies, size, time.Now())
	s.metrics.set(size)

	return nil
}

// Delete removes key from the Store and drops its metadata and index entries.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.index.remove(key)
	s.metrics.delete()
	return nil
}

// Clear empties the Store. Metadata and indices are left as they are; keys
// they still reference are harmless to invalidate and are replaced on the
// next Set or Delete.
func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Has reports whether key is live in the Store.
func (s *Service) Has(ctx context.Context, key string) (bool, error) {
	return s.store.Has(ctx, key)
}

// Size returns the Store's live entry count.
func (s *Service) Size(ctx context.Context) (int, error) {
	return s.store.Size(ctx)
}

// Metadata returns the bookkeeping for key if it was written through this Service.
func (s *Service) Metadata(key string) (EntryMetadata, bool) {
	return s.index.get(key)
}

// Keys returns every key this Service tracks, sorted.
func (s *Service) Keys() []string {
	return s.index.keys()
}

// Metrics returns a snapshot of the counters.
func (s *Service) Metrics() Metrics {
	return s.metrics.snapshot()
}

// ResetMetrics zeroes every counter and the response-time window.
func (s *Service) ResetMetrics() {
	s.metrics.reset()
}

// MemoryUsage reports the estimated size of tracked entries against the
// configured budget.
func (s *Service) MemoryUsage(ctx context.Context) (MemoryUsage, error) {
	n, err := s.store.Size(ctx)
	if err != nil {
		return MemoryUsage{}, err
	}

	_, total := s.index.totals()
	usage := MemoryUsage{
		EntryCount: n,
		TotalSize:  total,
		MaxMemory:  s.opts.maxMemory,
	}
	if n > 0 {
		usage.AverageEntrySize = float64(total) / float64(n)
	}
	if s.opts.maxMemory > 0 {
		usage.UsagePercent = float64(total) / float64(s.opts.maxMemory) * 100
	}
	return usage, nil
}

// Close waits for background revalidations to finish and closes the Store.
// Close is idempotent.
func (s *Service) Close() error {
	s.bgMu.Lock()
	if s.closed {
		s.bgMu.Unlock()
		return nil
	}
	s.closed = true
	s.bgMu.Unlock()

	s.bg.Wait()
	return s.store.Close()
}

// goBackground runs fn on a tracked goroutine unless the Service is closed.
func (s *Service) goBackground(fn func()) bool {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()

	if s.closed {
		return false
	}
	s.bg.Go(fn)
	return true
}

// ensureCapacity drops the least recently accessed tenth of the live tracked
// keys when the Store is full, and clears the Store outright if that was not
// enough (for example when it holds entries this Service never wrote).
func (s *Service) ensureCapacity(ctx context.Context) error {
	if s.opts.maxSize <= 0 {
		return nil
	}

	n, err := s.store.Size(ctx)
	if err != nil {
		return err
	}
	if n < s.opts.maxSize {
		return nil
	}

	target := max(s.opts.maxSize/10, 1)
	tracked, _ := s.index.totals()

	evicted := 0
	for _, key := range s.index.leastRecentlyUsed(tracked) {
		if evicted >= target {
			break
		}
		// Keys left behind by Clear or expiry are pruned without counting.
		live, err := s.store.Has(ctx, key)
		if err != nil {
			s.metrics.evicted(evicted)
			return err
		}
		if !live {
			s.index.remove(key)
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.metrics.evicted(evicted)
			return err
		}
		s.index.remove(key)
		evicted++
	}

	n, err = s.store.Size(ctx)
	if err != nil {
		s.metrics.evicted(evicted)
		return err
	}
	if n >= s.opts.maxSize {
		if err := s.store.Clear(ctx); err != nil {
			s.metrics.evicted(evicted)
			return err
		}
		s.index.reset()
		evicted += n
		s.opts.logger.WarnContext(ctx, "cache cleared to enforce capacity",
			slog.Int("entries", n),
			slog.Int("max_size", s.opts.maxSize),
		)
	}

	s.metrics.evicted(evicted)
	return nil
}

func (s *Service) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return s.opts.defaultTTL
	}
	return ttl
}

// estimateSize approximates an entry's footprint by its JSON length.
func estimateSize(value any) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return DefaultEntrySize
	}
	return int64(len(data))
}
