package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the document a payload came from.
type Context struct {
	Key string
	ID  string
}

func (c Context) label() string {
	if c.Key != "" {
		return c.Key
	}
	return c.ID
}

// PreHook rewrites the payload before decoding. Returning nil keeps the
// current payload.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces JSON decoding.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder turns document payloads into typed values. Payloads go through a
// JSON round trip, so any value implementing json.Marshaler (documents,
// views, refs) is encoded the way it encodes itself.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	configure []func(*json.Decoder)
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.preHooks = append(d.preHooks, hook)
		}
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.postHooks = append(d.postHooks, hook)
		}
	}
}

// WithUseNumber decodes numbers into json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(dec *json.Decoder) { dec.UseNumber() })
}

// WithDisallowUnknownFields rejects payload fields T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(dec *json.Decoder) { dec.DisallowUnknownFields() })
}

// WithDecoderConfig configures the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configure = append(d.configure, configure)
		}
	}
}

// WithCustomDecoder replaces the JSON decoding step.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a Decoder from opts.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode runs the pre hooks, decodes payload into T and runs the post hooks.
// The caller's payload is never mutated.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	label := ctx.label()

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %q", label)
	}
	current, err := Normalize(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: normalize payload for %q: %w", label, err)
	}

	for _, hook := range d.preHooks {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %q failed: %w", label, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		if result, err = d.custom(ctx, current); err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %q failed: %w", label, err)
		}
	} else if result, err = d.decodeJSON(current); err != nil {
		return zero, fmt.Errorf("hydrate: decode %q: %w", label, err)
	}

	for _, hook := range d.postHooks {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %q failed: %w", label, err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) decodeJSON(payload map[string]any) (T, error) {
	var result T
	buffer, err := json.Marshal(payload)
	if err != nil {
		return result, err
	}
	dec := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configure {
		configure(dec)
	}
	err = dec.Decode(&result)
	return result, err
}

// Normalize converts payload into plain JSON values: nested maps, slices,
// strings, float64, bool and nil.
func Normalize(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
