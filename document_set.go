package refs

import "strings"

// DocumentSet is an insertion ordered collection of documents keyed by their
// canonical, root-relative path. Keys are stored with "/" separators.
type DocumentSet struct {
	keys []string
	docs map[string]*Document
}

// NewDocumentSet returns an empty set.
func NewDocumentSet() *DocumentSet {
	return &DocumentSet{docs: map[string]*Document{}}
}

// Put stores doc under key. Replacing an existing key keeps its position.
func (s *DocumentSet) Put(key string, doc *Document) {
	if s.docs == nil {
		s.docs = map[string]*Document{}
	}
	key = NormalizeKey(key)
	if _, exists := s.docs[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.docs[key] = doc
}

// Get returns the document stored under key.
func (s *DocumentSet) Get(key string) (*Document, bool) {
	if s == nil {
		return nil, false
	}
	doc, ok := s.docs[NormalizeKey(key)]
	return doc, ok
}

// Remove deletes key from the set.
func (s *DocumentSet) Remove(key string) bool {
	if s == nil {
		return false
	}
	key = NormalizeKey(key)
	if _, exists := s.docs[key]; !exists {
		return false
	}
	delete(s.docs, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (s *DocumentSet) Keys() []string {
	if s == nil || len(s.keys) == 0 {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Len returns the number of documents.
func (s *DocumentSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Range calls fn for each document in insertion order until fn returns false.
func (s *DocumentSet) Range(fn func(key string, doc *Document) bool) {
	if s == nil || fn == nil {
		return
	}
	for _, key := range s.keys {
		if !fn(key, s.docs[key]) {
			return
		}
	}
}

// NormalizeKey converts host path separators into "/".
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, `\`, "/")
}
