package refs

import "sort"

const (
	// IDField is the reserved field carrying a document identifier.
	IDField = "id"
	// RefsField is the reserved field carrying a document's references.
	RefsField = "refs"
)

// Document is an ordered mapping from field name to value. Enumeration and
// JSON encoding follow insertion order; re-setting an existing field keeps its
// position.
type Document struct {
	keys   []string
	fields map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: map[string]any{}}
}

// DocumentOf builds a document from fields. Go maps carry no order, so the
// keys are inserted alphabetically.
func DocumentOf(fields map[string]any) *Document {
	doc := NewDocument()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		doc.Set(key, fields[key])
	}
	return doc
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	value, ok := d.fields[key]
	return value, ok
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set stores value under key, appending key when it is new.
func (d *Document) Set(key string, value any) {
	if d.fields == nil {
		d.fields = map[string]any{}
	}
	if _, exists := d.fields[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = value
}

// Delete removes key and reports whether anything was removed.
func (d *Document) Delete(key string) bool {
	if d == nil {
		return false
	}
	if _, exists := d.fields[key]; !exists {
		return false
	}
	delete(d.fields, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the field names in insertion order.
func (d *Document) Keys() []string {
	if d == nil || len(d.keys) == 0 {
		return nil
	}
	return append([]string(nil), d.keys...)
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// ID returns the document identifier when it is a string.
func (d *Document) ID() (string, bool) {
	value, ok := d.Get(IDField)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok
}

// Refs returns the references declared on the document once they have been
// normalised into *Refs, which happens when a resolver selects the document.
func (d *Document) Refs() (*Refs, bool) {
	value, ok := d.Get(RefsField)
	if !ok {
		return nil, false
	}
	refs, ok := value.(*Refs)
	return refs, ok && refs != nil
}

// Fields returns a shallow copy of the document as a plain map.
func (d *Document) Fields() map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d.fields))
	for key, value := range d.fields {
		out[key] = value
	}
	return out
}
