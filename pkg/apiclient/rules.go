package apiclient

import (
	"slices"
	"strings"
)

// Rule attaches tags and dependencies to cached GET responses whose path
// contains Match.
type Rule struct {
	Match        string
	Tags         []string
	Dependencies []string
}

// DefaultRules tags the app's read endpoints.
var DefaultRules = []Rule{
	{Match: "/plans", Tags: []string{"plans"}},
	{Match: "/habits", Tags: []string{"habits"}},
	{Match: "/dashboard", Tags: []string{"dashboard"}},
	{Match: "/active", Tags: []string{"dashboard"}},
	{Match: "/prayer-times", Tags: []string{"prayer-times"}, Dependencies: []string{"user-location"}},
	{Match: "/intentions", Tags: []string{"intentions"}, Dependencies: []string{"user-timezone"}},
	{Match: "/users/preferences", Tags: []string{"user-preferences"}},
}

// InvalidationRule lists what a successful mutating request invalidates.
// An empty Method matches POST, PUT, PATCH and DELETE.
// Dependencies are invalidated with cascade.
type InvalidationRule struct {
	Method       string
	Match        string
	Tags         []string
	Dependencies []string
	Patterns     []string
}

// DefaultInvalidations covers the app's write endpoints.
var DefaultInvalidations = []InvalidationRule{
	{Match: "/habits", Tags: []string{"habits", "dashboard"}, Patterns: []string{`habits.*analytics`}},
	{Match: "/plans", Tags: []string{"plans", "dashboard"}},
	{Match: "/intentions", Tags: []string{"intentions"}},
	{Match: "/users/preferences", Tags: []string{"user-preferences"}},
	{Match: "/users/location", Dependencies: []string{"user-location"}},
	{Match: "/users/timezone", Dependencies: []string{"user-timezone"}},
}

// resolveRules returns the union of tags and dependencies of every rule
// matching path.
func resolveRules(rules []Rule, path string) (tags, deps []string) {
	for _, r := range rules {
		if r.Match != "" && strings.Contains(path, r.Match) {
			tags = append(tags, r.Tags...)
			deps = append(deps, r.Dependencies...)
		}
	}
	return compact(tags), compact(deps)
}

type invalidationSet struct {
	tags     []string
	deps     []string
	patterns []string
}

func (s invalidationSet) empty() bool {
	return len(s.tags) == 0 && len(s.deps) == 0 && len(s.patterns) == 0
}

func resolveInvalidations(rules []InvalidationRule, method, path string) invalidationSet {
	var out invalidationSet
	for _, r := range rules {
		if r.Method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if r.Match == "" || !strings.Contains(path, r.Match) {
			continue
		}
		out.tags = append(out.tags, r.Tags...)
		out.deps = append(out.deps, r.Dependencies...)
		out.patterns = append(out.patterns, r.Patterns...)
	}
	out.tags, out.deps, out.patterns = compact(out.tags), compact(out.deps), compact(out.patterns)
	return out
}

func compact(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	slices.Sort(in)
	return slices.Compact(in)
}
