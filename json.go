package refs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the document as an object in field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return encodeOrdered(d.keys, func(key string) any { return d.fields[key] })
}

// UnmarshalJSON decodes an object keeping its field order. A refs object is
// decoded into *Refs with every entry pending.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc := NewDocument()
	err := decodeOrdered(data, func(key string, raw json.RawMessage) error {
		if key == RefsField && isJSONObject(raw) {
			refs := NewRefs()
			if err := refs.UnmarshalJSON(raw); err != nil {
				return err
			}
			doc.Set(key, refs)
			return nil
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		doc.Set(key, value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refs: decode document: %w", err)
	}
	*d = *doc
	return nil
}

// MarshalJSON encodes the set as an object keyed by canonical path.
func (s *DocumentSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return encodeOrdered(s.keys, func(key string) any { return s.docs[key] })
}

// UnmarshalJSON decodes an object of documents keeping key order.
func (s *DocumentSet) UnmarshalJSON(data []byte) error {
	set := NewDocumentSet()
	err := decodeOrdered(data, func(key string, raw json.RawMessage) error {
		doc := NewDocument()
		if err := doc.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
		set.Put(key, doc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refs: decode document set: %w", err)
	}
	*s = *set
	return nil
}

// MarshalJSON encodes each entry's current value in declaration order.
func (r *Refs) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return encodeOrdered(r.names, func(name string) any { return r.entries[name].Current() })
}

// UnmarshalJSON declares every member of the object as a pending reference.
func (r *Refs) UnmarshalJSON(data []byte) error {
	refs := NewRefs()
	err := decodeOrdered(data, func(name string, raw json.RawMessage) error {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		refs.Declare(name, value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refs: decode refs: %w", err)
	}
	*r = *refs
	return nil
}

// MarshalJSON encodes the visible fields of the target in order.
func (v *View) MarshalJSON() ([]byte, error) {
	if v == nil || v.target == nil {
		return []byte("null"), nil
	}
	return encodeOrdered(v.Keys(), func(key string) any {
		value, _ := v.target.Get(key)
		return value
	})
}

func encodeOrdered(keys []string, value func(string) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encoded, err := json.Marshal(value(key))
		if err != nil {
			return nil, fmt.Errorf("refs: encode field %q: %w", key, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeOrdered(data []byte, member func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := member(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
