package refs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProtocol matches *UnknownProtocolError.
	ErrUnknownProtocol = errors.New("refs: unknown protocol")
	// ErrUnresolvedReference matches *UnresolvedReferenceError.
	ErrUnresolvedReference = errors.New("refs: unresolved reference")
	// ErrProtectedField matches *ProtectedFieldError.
	ErrProtectedField = errors.New("refs: protected field")
	// ErrMalformedReference matches *MalformedReferenceError.
	ErrMalformedReference = errors.New("refs: malformed reference")
	// ErrDuplicateID matches *DuplicateIDError.
	ErrDuplicateID = errors.New("refs: duplicate id")
	// ErrNilDocumentSet is returned when Resolve is called without a set.
	ErrNilDocumentSet = errors.New("refs: document set is nil")
	// ErrNilTarget is returned when writing through a view without a target.
	ErrNilTarget = errors.New("refs: view has no target document")
	// ErrInvalidPattern is returned for patterns the matcher cannot parse.
	ErrInvalidPattern = errors.New("refs: invalid pattern")
	// ErrInvalidPolicy is returned for unknown policy names.
	ErrInvalidPolicy = errors.New("refs: invalid policy")
)

// UnknownProtocolError reports a reference whose protocol has no strategy.
type UnknownProtocolError struct {
	Protocol  Protocol
	Reference string
	Name      string
	Path      string
	ID        string
}

func (e *UnknownProtocolError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("refs: unknown protocol %q for file %q (ref %s=%q)", e.Protocol, e.Path, e.Name, e.Reference)
}

func (e *UnknownProtocolError) Is(target error) bool {
	return target == ErrUnknownProtocol
}

// UnresolvedReferenceError reports a lookup that produced no match. Err holds
// the cause when the strategy itself failed.
type UnresolvedReferenceError struct {
	Protocol  Protocol
	Lookup    string
	Reference string
	Name      string
	Path      string
	Err       error
}

func (e *UnresolvedReferenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("refs: unable to resolve ref %q (%s:%s) in file %q", e.Name, e.Protocol, e.Lookup, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnresolvedReferenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

// ProtectedFieldError reports an attempt to write a masked field through a
// view.
type ProtectedFieldError struct {
	Field string
}

func (e *ProtectedFieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("refs: field %q cannot be defined through a view", e.Field)
}

func (e *ProtectedFieldError) Is(target error) bool {
	return target == ErrProtectedField
}

// MalformedReferenceError reports a refs entry or field that was skipped.
type MalformedReferenceError struct {
	Name   string
	Path   string
	Value  any
	Reason string
}

func (e *MalformedReferenceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Name == "" {
		return fmt.Sprintf("refs: skipped refs field in file %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("refs: skipped ref %q in file %q: %s (%T)", e.Name, e.Path, e.Reason, e.Value)
}

func (e *MalformedReferenceError) Is(target error) bool {
	return target == ErrMalformedReference
}

// DuplicateIDError reports two participating documents sharing an id.
type DuplicateIDError struct {
	ID    string
	Paths []string
}

func (e *DuplicateIDError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("refs: id %q is shared by %q", e.ID, e.Paths)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// AccessorError captures a metadata accessor failure alongside the engine and
// path that produced it.
type AccessorError struct {
	Engine string
	Path   string
	Err    error
}

func (e *AccessorError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("refs: %s accessor path=%q: %v", e.Engine, e.Path, e.Err)
}

func (e *AccessorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapAccessorError(engine, path string, err error) error {
	if err == nil {
		return nil
	}
	var accessorErr *AccessorError
	if errors.As(err, &accessorErr) {
		if accessorErr.Engine == "" {
			accessorErr.Engine = engine
		}
		if accessorErr.Path == "" {
			accessorErr.Path = path
		}
		return accessorErr
	}
	return &AccessorError{Engine: engine, Path: path, Err: err}
}

// wrapUnresolved builds the error for a reference that produced no match.
// A strategy may already return an *UnresolvedReferenceError; its empty
// fields are filled in from the reference being resolved.
func wrapUnresolved(ref Reference, name, path string, cause error) *UnresolvedReferenceError {
	var unresolved *UnresolvedReferenceError
	if errors.As(cause, &unresolved) {
		if unresolved.Protocol == "" {
			unresolved.Protocol = ref.Protocol
		}
		if unresolved.Lookup == "" {
			unresolved.Lookup = ref.Lookup
		}
		if unresolved.Reference == "" {
			unresolved.Reference = ref.Raw
		}
		if unresolved.Name == "" {
			unresolved.Name = name
		}
		if unresolved.Path == "" {
			unresolved.Path = path
		}
		return unresolved
	}
	return &UnresolvedReferenceError{
		Protocol:  ref.Protocol,
		Lookup:    ref.Lookup,
		Reference: ref.Raw,
		Name:      name,
		Path:      path,
		Err:       cause,
	}
}
