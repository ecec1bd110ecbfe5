package refs

import (
	"fmt"
	"sort"
	"sync"
)

// Origin describes the reference being resolved and the run it belongs to.
type Origin struct {
	// Path is the referring document's canonical key.
	Path string
	// Dir is the directory of Path.
	Dir string
	// Name is the reference name inside the refs field.
	Name string
	// Document is the referring document.
	Document *Document
	// Set is the whole document set, not only the participating subset.
	Set *DocumentSet
	// Metadata is the global metadata of the run.
	Metadata map[string]any
}

// Outcome is what a strategy produced. Exactly one of Value or Document is
// meaningful when Found is true; a Document is wrapped in a view.
type Outcome struct {
	Found    bool
	Value    any
	Document *Document
}

// Strategy resolves the lookup part of a reference. Returning an error or an
// Outcome without Found both mean "not found" to the resolver; the error is
// kept as the cause.
type Strategy interface {
	Resolve(lookup string, origin Origin) (Outcome, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(lookup string, origin Origin) (Outcome, error)

// Resolve implements Strategy.
func (f StrategyFunc) Resolve(lookup string, origin Origin) (Outcome, error) {
	return f(lookup, origin)
}

// MetadataStrategy reads lookup out of the global metadata.
type MetadataStrategy struct {
	Accessor MetadataAccessor
}

// Resolve implements Strategy.
func (s MetadataStrategy) Resolve(lookup string, origin Origin) (Outcome, error) {
	accessor := s.Accessor
	if accessor == nil {
		accessor = PathAccessor{}
	}
	value, found, err := accessor.Lookup(origin.Metadata, lookup)
	if err != nil || !found {
		return Outcome{}, err
	}
	return Outcome{Found: true, Value: value}, nil
}

// FileStrategy resolves lookup as a path relative to the referring document.
type FileStrategy struct {
	Paths PathResolver
}

// Resolve implements Strategy.
func (s FileStrategy) Resolve(lookup string, origin Origin) (Outcome, error) {
	paths := s.Paths
	if paths == nil {
		paths = SourcePaths{}
	}
	doc, ok := origin.Set.Get(paths.Resolve(origin.Dir, lookup))
	if !ok || doc == nil {
		return Outcome{}, nil
	}
	return Outcome{Found: true, Document: doc}, nil
}

// IDStrategy finds the first document in the set whose id equals lookup.
type IDStrategy struct{}

// Resolve implements Strategy.
func (IDStrategy) Resolve(lookup string, origin Origin) (Outcome, error) {
	var match *Document
	origin.Set.Range(func(_ string, doc *Document) bool {
		if id, ok := doc.ID(); ok && id == lookup {
			match = doc
			return false
		}
		return true
	})
	if match == nil {
		return Outcome{}, nil
	}
	return Outcome{Found: true, Document: match}, nil
}

// StrategyRegistry maps protocols to strategies.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[Protocol]Strategy
}

// NewStrategyRegistry constructs an empty registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: make(map[Protocol]Strategy)}
}

// DefaultStrategies returns a registry holding the metadata, file and id
// strategies.
func DefaultStrategies(accessor MetadataAccessor, paths PathResolver) *StrategyRegistry {
	registry := NewStrategyRegistry()
	registry.strategies[ProtocolMetadata] = MetadataStrategy{Accessor: accessor}
	registry.strategies[ProtocolFile] = FileStrategy{Paths: paths}
	registry.strategies[ProtocolID] = IDStrategy{}
	return registry
}

// Register stores strategy under protocol guarding against duplicates.
func (r *StrategyRegistry) Register(protocol Protocol, strategy Strategy) error {
	if strategy == nil {
		return fmt.Errorf("refs: strategy for protocol %q is nil", protocol)
	}
	if protocol == "" {
		return fmt.Errorf("refs: protocol must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.strategies == nil {
		r.strategies = make(map[Protocol]Strategy)
	}
	if _, exists := r.strategies[protocol]; exists {
		return fmt.Errorf("refs: protocol %q already registered", protocol)
	}
	r.strategies[protocol] = strategy
	return nil
}

// Lookup returns the strategy registered for protocol.
func (r *StrategyRegistry) Lookup(protocol Protocol) (Strategy, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.strategies[protocol]
	return strategy, ok
}

// Protocols returns the registered protocols sorted alphabetically.
func (r *StrategyRegistry) Protocols() []Protocol {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Protocol, 0, len(r.strategies))
	for protocol := range r.strategies {
		out = append(out, protocol)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
