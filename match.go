package refs

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects every document.
const DefaultPattern = "**"

// Matcher selects the keys whose documents may declare references.
type Matcher interface {
	Match(patterns []string, keys []string) ([]string, error)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(patterns []string, keys []string) ([]string, error)

// Match implements Matcher.
func (f MatcherFunc) Match(patterns []string, keys []string) ([]string, error) {
	return f(patterns, keys)
}

// GlobMatcher matches keys with doublestar patterns. A pattern prefixed with
// "!" excludes the keys it matches. Selected keys keep their input order.
type GlobMatcher struct{}

// Match implements Matcher.
func (GlobMatcher) Match(patterns []string, keys []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	var include, exclude []string
	for _, pattern := range patterns {
		negated := strings.HasPrefix(pattern, "!")
		glob := strings.TrimPrefix(pattern, "!")
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
		if negated {
			exclude = append(exclude, glob)
			continue
		}
		include = append(include, glob)
	}
	if len(include) == 0 {
		include = []string{DefaultPattern}
	}

	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		name := NormalizeKey(key)
		if matchAny(include, name) && !matchAny(exclude, name) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
