package cache

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// warmBatchSize bounds how many warm entries are fetched at once.
const warmBatchSize = 5

// WarmEntry describes one key to preload.
type WarmEntry struct {
	Fetcher      func(ctx context.Context) (any, error)
	Key          string
	Tags         []string
	Dependencies []string
	TTL          time.Duration
	Priority     int
}

// WarmFunc adapts a typed fetcher for use in a WarmEntry.
func WarmFunc[T any](fn Fetcher[T]) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// WarmReport lists the outcome of a Warm call.
type WarmReport struct {
	Failed map[string]error
	Warmed []string
}

// Warm fetches and stores entries, highest Priority first, in sequential
// batches of five concurrent fetches. A failing entry is logged and
// recorded in the report; it never stops the other entries. If ctx is
// cancelled, remaining batches are not started.
func (s *Service) Warm(ctx context.Context, entries ...WarmEntry) WarmReport {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b WarmEntry) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	report := WarmReport{Failed: make(map[string]error)}
	var mu sync.Mutex

	for batch := range slices.Chunk(ordered, warmBatchSize) {
		if err := ctx.Err(); err != nil {
			for _, e := range batch {
				report.Failed[e.Key] = err
			}
			continue
		}

		var g errgroup.Group
		for _, e := range batch {
			g.Go(func() error {
				err := s.warmOne(ctx, e)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed[e.Key] = err
					s.opts.logger.ErrorContext(ctx, "cache warm failed",
						slog.String("key", e.Key),
						slog.String("error", err.Error()),
					)
					return nil
				}
				report.Warmed = append(report.Warmed, e.Key)
				return nil
			})
		}
		_ = g.Wait()
	}

	return report
}

func (s *Service) warmOne(ctx context.Context, e WarmEntry) error {
	if e.Fetcher == nil {
		return ErrNoFetcher
	}
	v, err := e.Fetcher(ctx)
	if err != nil {
		return err
	}
	return s.set(ctx, e.Key, v, &entryOptions{
		ttl:          e.TTL,
		tags:         e.Tags,
		dependencies: e.Dependencies,
	})
}
