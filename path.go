package refs

import (
	"path"
	"strings"
)

// PathResolver turns a lookup found in a reference into a document set key.
// dir is the referring document's directory, relative to the set root.
type PathResolver interface {
	Resolve(dir, lookup string) string
}

// PathResolverFunc adapts a function to PathResolver.
type PathResolverFunc func(dir, lookup string) string

// Resolve implements PathResolver.
func (f PathResolverFunc) Resolve(dir, lookup string) string {
	if f == nil {
		return ""
	}
	return f(dir, lookup)
}

// SourcePaths is the default PathResolver. Root-absolute lookups resolve
// against the set root; everything else against dir.
type SourcePaths struct{}

// Resolve implements PathResolver.
func (SourcePaths) Resolve(dir, lookup string) string {
	lookup = NormalizeKey(lookup)
	if strings.HasPrefix(lookup, "/") {
		return path.Clean(lookup[1:])
	}
	return path.Clean(path.Join(NormalizeKey(dir), lookup))
}

// Dir returns the directory part of a canonical key.
func Dir(key string) string {
	return path.Dir(NormalizeKey(key))
}
