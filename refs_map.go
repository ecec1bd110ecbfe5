package refs

import (
	"fmt"
	"sort"
)

// EntryState tags what a reference entry currently holds.
type EntryState int

const (
	// EntryPending holds a declared reference that has not been resolved.
	EntryPending EntryState = iota
	// EntryValue holds a raw value, produced by the metadata protocol.
	EntryValue
	// EntryView holds a masking view over another document.
	EntryView
	// EntryFailed holds a reference that could not be resolved.
	EntryFailed
)

func (s EntryState) String() string {
	switch s {
	case EntryPending:
		return "pending"
	case EntryValue:
		return "value"
	case EntryView:
		return "view"
	case EntryFailed:
		return "failed"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

// Entry is one named reference. Raw always keeps the declared value so failed
// or skipped entries can still be reported and encoded as written.
type Entry struct {
	Name  string
	State EntryState
	Raw   any
	Value any
	View  *View
	Err   error
}

// Current returns what the entry stands for: the resolved value or view, or
// the declared value while pending or failed.
func (e *Entry) Current() any {
	if e == nil {
		return nil
	}
	switch e.State {
	case EntryValue:
		return e.Value
	case EntryView:
		return e.View
	default:
		return e.Raw
	}
}

// Resolved reports whether the entry holds a value or a view.
func (e *Entry) Resolved() bool {
	return e != nil && (e.State == EntryValue || e.State == EntryView)
}

func (e *Entry) resolveValue(value any) {
	e.State = EntryValue
	e.Value = value
	e.View = nil
	e.Err = nil
}

func (e *Entry) resolveView(view *View) {
	e.State = EntryView
	e.View = view
	e.Value = nil
	e.Err = nil
}

func (e *Entry) fail(err error) {
	e.State = EntryFailed
	e.Value = nil
	e.View = nil
	e.Err = err
}

// Refs is the ordered association stored in a document's refs field.
type Refs struct {
	names   []string
	entries map[string]*Entry
}

// NewRefs returns an empty reference map.
func NewRefs() *Refs {
	return &Refs{entries: map[string]*Entry{}}
}

// RefsOf declares every entry of declared as pending. Keys are inserted
// alphabetically because Go maps carry no order.
func RefsOf(declared map[string]any) *Refs {
	refs := NewRefs()
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		refs.Declare(name, declared[name])
	}
	return refs
}

// Declare stores raw under name as a pending reference, replacing any
// previous entry while keeping its position.
func (r *Refs) Declare(name string, raw any) {
	if r.entries == nil {
		r.entries = map[string]*Entry{}
	}
	if _, exists := r.entries[name]; !exists {
		r.names = append(r.names, name)
	}
	r.entries[name] = &Entry{Name: name, State: EntryPending, Raw: raw}
}

// Entry returns the entry stored under name.
func (r *Refs) Entry(name string) (*Entry, bool) {
	if r == nil {
		return nil, false
	}
	entry, ok := r.entries[name]
	return entry, ok
}

// Get returns the current value of the entry stored under name.
func (r *Refs) Get(name string) (any, bool) {
	entry, ok := r.Entry(name)
	if !ok {
		return nil, false
	}
	return entry.Current(), true
}

// View returns the view stored under name when the entry resolved to a
// document.
func (r *Refs) View(name string) (*View, bool) {
	entry, ok := r.Entry(name)
	if !ok || entry.State != EntryView {
		return nil, false
	}
	return entry.View, true
}

// Names returns the reference names in declaration order.
func (r *Refs) Names() []string {
	if r == nil || len(r.names) == 0 {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Entries returns the entries in declaration order. The entries are shared
// with the map.
func (r *Refs) Entries() []*Entry {
	if r == nil || len(r.names) == 0 {
		return nil
	}
	out := make([]*Entry, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.entries[name])
	}
	return out
}

// Len returns the number of entries.
func (r *Refs) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// asRefs converts a declared refs field into *Refs. It accepts the shapes a
// host is likely to produce; anything else is not a mapping.
func asRefs(value any) (*Refs, bool) {
	switch v := value.(type) {
	case *Refs:
		return v, v != nil
	case map[string]any:
		return RefsOf(v), true
	case map[string]string:
		declared := make(map[string]any, len(v))
		for name, raw := range v {
			declared[name] = raw
		}
		return RefsOf(declared), true
	case *Document:
		if v == nil {
			return nil, false
		}
		refs := NewRefs()
		for _, name := range v.Keys() {
			raw, _ := v.Get(name)
			refs.Declare(name, raw)
		}
		return refs, true
	default:
		return nil, false
	}
}
