package refs

import (
	"reflect"
	"strconv"
	"strings"
)

// MetadataAccessor reads a value out of the global metadata. found is false
// when the path does not lead to a value.
type MetadataAccessor interface {
	Lookup(metadata map[string]any, path string) (value any, found bool, err error)
}

// MetadataAccessorFunc adapts a function to MetadataAccessor.
type MetadataAccessorFunc func(metadata map[string]any, path string) (any, bool, error)

// Lookup implements MetadataAccessor.
func (f MetadataAccessorFunc) Lookup(metadata map[string]any, path string) (any, bool, error) {
	return f(metadata, path)
}

// PathAccessor walks a dotted path ("a.b.c") through maps, documents, views,
// slices and exported struct fields. It is the default accessor.
type PathAccessor struct{}

// Lookup implements MetadataAccessor.
func (PathAccessor) Lookup(metadata map[string]any, path string) (any, bool, error) {
	if path == "" {
		return nil, false, nil
	}
	var current any = metadata
	for _, segment := range strings.Split(path, ".") {
		next, ok := step(current, segment)
		if !ok {
			return nil, false, nil
		}
		current = next
	}
	return current, true, nil
}

func step(current any, segment string) (any, bool) {
	switch c := current.(type) {
	case nil:
		return nil, false
	case map[string]any:
		value, ok := c[segment]
		return value, ok
	case *Document:
		return c.Get(segment)
	case *View:
		return c.Get(segment)
	case *Refs:
		return c.Get(segment)
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= len(c) {
			return nil, false
		}
		return c[index], true
	}
	return reflectStep(reflect.ValueOf(current), segment)
}

func reflectStep(rv reflect.Value, segment string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= rv.Len() {
			return nil, false
		}
		return rv.Index(index).Interface(), true
	case reflect.Struct:
		field, ok := rv.Type().FieldByName(segment)
		if !ok || !field.IsExported() {
			return nil, false
		}
		return rv.FieldByIndex(field.Index).Interface(), true
	default:
		return nil, false
	}
}
