package refs

// View is a masking wrapper over a document. It forwards reads, writes and
// deletes to the shared target but never exposes or accepts the refs field,
// which keeps circular references finite when walked or encoded.
type View struct {
	target *Document
}

// NewView wraps target. Every call returns a new view over the same document.
func NewView(target *Document) *View {
	return &View{target: target}
}

// Get returns the target's current value for key. The refs field is always
// absent.
func (v *View) Get(key string) (any, bool) {
	if v == nil || key == RefsField {
		return nil, false
	}
	return v.target.Get(key)
}

// Has reports whether key is visible through the view.
func (v *View) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Keys returns the target's field names in order, without refs.
func (v *View) Keys() []string {
	if v == nil {
		return nil
	}
	keys := v.target.Keys()
	out := keys[:0]
	for _, key := range keys {
		if key != RefsField {
			out = append(out, key)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Len returns the number of visible fields.
func (v *View) Len() int {
	return len(v.Keys())
}

// Set writes value to the target. Writing refs fails with a
// *ProtectedFieldError and leaves the target untouched.
func (v *View) Set(key string, value any) error {
	if key == RefsField {
		return &ProtectedFieldError{Field: key}
	}
	if v == nil || v.target == nil {
		return ErrNilTarget
	}
	v.target.Set(key, value)
	return nil
}

// Define is Set under the name property-definition hosts use. It applies the
// same protection to refs.
func (v *View) Define(key string, value any) error {
	return v.Set(key, value)
}

// Delete removes key from the target and reports whether anything was
// removed. Deleting refs or a missing field is a no-op.
func (v *View) Delete(key string) bool {
	if v == nil || key == RefsField {
		return false
	}
	return v.target.Delete(key)
}

// Is reports whether the view wraps doc.
func (v *View) Is(doc *Document) bool {
	return v != nil && v.target == doc
}

// Fields returns a shallow copy of the visible fields.
func (v *View) Fields() map[string]any {
	if v == nil {
		return nil
	}
	out := v.target.Fields()
	delete(out, RefsField)
	return out
}
