package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// InvalidateOptions selects the keys Invalidate removes.
//
// When Strategy is empty it is inferred from the first non-empty field of
// Pattern, Tags and Dependencies.
type InvalidateOptions struct {
	Strategy     InvalidationStrategy `json:"strategy"`
	Pattern      string               `json:"pattern,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
	Dependencies []string             `json:"dependencies,omitempty"`
	Cascade      bool                 `json:"cascade,omitempty"`
}

func (o InvalidateOptions) strategy() InvalidationStrategy {
	switch {
	case o.Strategy != "":
		return o.Strategy
	case o.Pattern != "":
		return InvalidatePattern
	case len(o.Tags) > 0:
		return InvalidateTag
	case len(o.Dependencies) > 0:
		return InvalidateDependency
	default:
		return InvalidateManual
	}
}

// Invalidate removes every key selected by opts and returns how many were
// removed. Only keys written through this Service can be resolved.
//
//   - pattern: Pattern is a regular expression matched against keys. An
//     empty Pattern resolves nothing.
//   - tag: keys carrying any of Tags.
//   - dependency: keys declaring any of Dependencies. With Cascade, each
//     removed key's name and its own declared dependencies are walked as
//     further dependency names. Every name is walked at most once.
//   - manual: resolves nothing; the caller deletes keys itself.
func (s *Service) Invalidate(ctx context.Context, opts InvalidateOptions) (int, error) {
	strategy := opts.strategy()

	var (
		removed int
		err     error
	)
	switch strategy {
	case InvalidatePattern:
		removed, err = s.invalidatePattern(ctx, opts.Pattern)
	case InvalidateTag:
		removed, err = s.deleteKeys(ctx, s.index.keysForTags(opts.Tags))
	case InvalidateDependency:
		removed, err = s.invalidateDependencies(ctx, opts.Dependencies, opts.Cascade)
	case InvalidateManual:
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	s.metrics.invalidated(strategy, removed)
	return removed, err
}

// invalidatePattern resolves nothing for an empty pattern.
func (s *Service) invalidatePattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, errors.Join(ErrInvalidPattern, err)
	}

	var matched []string
	for _, key := range s.index.keys() {
		if re.MatchString(key) {
			matched = append(matched, key)
		}
	}
	return s.deleteKeys(ctx, matched)
}

func (s *Service) invalidateDependencies(ctx context.Context, seeds []string, cascade bool) (int, error) {
	visited := make(map[string]struct{})
	removed := make(map[string]struct{})
	queue := append([]string(nil), seeds...)

	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if _, ok := visited[dep]; ok {
			continue
		}
		visited[dep] = struct{}{}

		for _, key := range s.index.keysForDependency(dep) {
			if _, ok := removed[key]; ok {
				continue
			}
			meta, _ := s.index.get(key)
			if err := s.Delete(ctx, key); err != nil {
				return len(removed), err
			}
			removed[key] = struct{}{}
			if cascade {
				queue = append(queue, key)
				queue = append(queue, meta.Dependencies...)
			}
		}
	}

	return len(removed), nil
}

func (s *Service) deleteKeys(ctx context.Context, keys []string) (int, error) {
	for i, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}
