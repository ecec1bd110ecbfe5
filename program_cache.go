package refs

import "sync"

// ProgramCache stores compiled accessor programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapCache is an unbounded, concurrency-safe ProgramCache.
type MapCache struct {
	programs sync.Map
}

// NewMapCache returns an empty cache.
func NewMapCache() *MapCache {
	return &MapCache{}
}

// Get implements ProgramCache.
func (c *MapCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	return c.programs.Load(key)
}

// Set implements ProgramCache.
func (c *MapCache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.programs.Store(key, value)
}
