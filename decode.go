package refs

import (
	"fmt"

	"github.com/goliatone/go-refs/internal/hydrate"
)

// DecodeOption configures DecodeInto.
type DecodeOption func(*decodeSettings)

type decodeSettings struct {
	strict    bool
	useNumber bool
	keepRefs  bool
}

// DecodeStrict rejects fields the target type does not declare.
func DecodeStrict() DecodeOption {
	return func(s *decodeSettings) { s.strict = true }
}

// DecodeUseNumber decodes numbers into json.Number.
func DecodeUseNumber() DecodeOption {
	return func(s *decodeSettings) { s.useNumber = true }
}

// DecodeWithRefs keeps the refs field of a document, encoded with resolved
// targets in place of the declared strings.
func DecodeWithRefs() DecodeOption {
	return func(s *decodeSettings) { s.keepRefs = true }
}

// DecodeInto decodes a *Document, *View or map into T. Resolved references
// decode as the visible fields of their targets, so a struct field of type
// struct can receive a referenced document. The refs field of a *Document is
// dropped unless DecodeWithRefs is given.
func DecodeInto[T any](source any, opts ...DecodeOption) (T, error) {
	var zero T
	settings := decodeSettings{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	var payload map[string]any
	ctx := hydrate.Context{}
	switch v := source.(type) {
	case *Document:
		if v == nil {
			return zero, fmt.Errorf("refs: decode: document is nil")
		}
		payload = v.Fields()
		if !settings.keepRefs {
			delete(payload, RefsField)
		}
		ctx.ID, _ = v.ID()
	case *View:
		if v == nil || v.target == nil {
			return zero, ErrNilTarget
		}
		payload = v.Fields()
		ctx.ID, _ = v.target.ID()
	case map[string]any:
		payload = v
	default:
		return zero, fmt.Errorf("refs: decode: unsupported source %T", source)
	}
	ctx.Key = ctx.ID

	var decoderOpts []hydrate.DecoderOption[T]
	if settings.strict {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}
	if settings.useNumber {
		decoderOpts = append(decoderOpts, hydrate.WithUseNumber[T]())
	}
	out, err := hydrate.NewDecoder[T](decoderOpts...).Decode(ctx, payload)
	if err != nil {
		return zero, fmt.Errorf("refs: %w", err)
	}
	return out, nil
}
