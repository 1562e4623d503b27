package cache

import (
	"slices"
	"sync"
	"time"
)

// EntryMetadata is the Service's bookkeeping for a key it has written.
// It is never handed to a Store and never persisted.
type EntryMetadata struct {
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
	Key          string    `json:"key"`
	Tags         []string  `json:"tags"`
	Dependencies []string  `json:"dependencies"`
	AccessCount  int64     `json:"accessCount"`
	Size         int64     `json:"size"`
}

type keySet map[string]struct{}

// index tracks per-key metadata plus the tag and dependency inverted indices.
// A key is in tags[t] iff meta[key].Tags contains t; the same holds for deps.
type index struct {
	meta map[string]*EntryMetadata
	tags map[string]keySet
	deps map[string]keySet
	mu   sync.RWMutex
}

func newIndex() *index {
	return &index{
		meta: make(map[string]*EntryMetadata),
		tags: make(map[string]keySet),
		deps: make(map[string]keySet),
	}
}

// put (re)creates metadata for key, replacing any previous tags and dependencies.
func (ix *index) put(key string, tags, deps []string, size int64, now time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(key)

	m := &EntryMetadata{
		Key:          key,
		Tags:         dedupe(tags),
		Dependencies: dedupe(deps),
		CreatedAt:    now,
		LastAccessed: now,
		Size:         size,
	}
	ix.meta[key] = m

	for _, t := range m.Tags {
		addToBucket(ix.tags, t, key)
	}
	for _, d := range m.Dependencies {
		addToBucket(ix.deps, d, key)
	}
}

// remove drops key from metadata and both indices. It reports whether the
// key was tracked.
func (ix *index) remove(key string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(key)
}

func (ix *index) removeLocked(key string) bool {
	m, ok := ix.meta[key]
	if !ok {
		return false
	}
	for _, t := range m.Tags {
		removeFromBucket(ix.tags, t, key)
	}
	for _, d := range m.Dependencies {
		removeFromBucket(ix.deps, d, key)
	}
	delete(ix.meta, key)
	return true
}

// reset forgets every tracked key.
func (ix *index) reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	clear(ix.meta)
	clear(ix.tags)
	clear(ix.deps)
}

// touch records an access. Untracked keys are left untracked.
func (ix *index) touch(key string, now time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if m, ok := ix.meta[key]; ok {
		m.LastAccessed = now
		m.AccessCount++
	}
}

// get returns a copy of the metadata for key.
func (ix *index) get(key string) (EntryMetadata, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	m, ok := ix.meta[key]
	if !ok {
		return EntryMetadata{}, false
	}
	cp := *m
	cp.Tags = slices.Clone(m.Tags)
	cp.Dependencies = slices.Clone(m.Dependencies)
	return cp, true
}

// keysForTags returns the de-duplicated union of the given tag buckets.
func (ix *index) keysForTags(tags []string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return union(ix.tags, tags)
}

// keysForDependency returns the keys that declared dependency dep.
func (ix *index) keysForDependency(dep string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return union(ix.deps, []string{dep})
}

// keys returns every tracked key, sorted.
func (ix *index) keys() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, len(ix.meta))
	for k := range ix.meta {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// leastRecentlyUsed returns up to n tracked keys ordered by ascending LastAccessed.
func (ix *index) leastRecentlyUsed(n int) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	all := make([]*EntryMetadata, 0, len(ix.meta))
	for _, m := range ix.meta {
		all = append(all, m)
	}
	slices.SortFunc(all, func(a, b *EntryMetadata) int {
		if c := a.LastAccessed.Compare(b.LastAccessed); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	n = min(n, len(all))
	out := make([]string, n)
	for i := range n {
		out[i] = all[i].Key
	}
	return out
}

// totals returns the number of tracked keys and the sum of their sizes.
func (ix *index) totals() (count int, size int64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, m := range ix.meta {
		size += m.Size
	}
	return len(ix.meta), size
}

func addToBucket(idx map[string]keySet, name, key string) {
	b, ok := idx[name]
	if !ok {
		b = make(keySet)
		idx[name] = b
	}
	b[key] = struct{}{}
}

func removeFromBucket(idx map[string]keySet, name, key string) {
	b, ok := idx[name]
	if !ok {
		return
	}
	delete(b, key)
	if len(b) == 0 {
		delete(idx, name)
	}
}

func union(idx map[string]keySet, names []string) []string {
	seen := make(keySet)
	for _, n := range names {
		for k := range idx[n] {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
