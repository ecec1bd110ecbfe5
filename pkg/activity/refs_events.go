package activity

import (
	"strings"
	"time"
)

const (
	VerbReferenceResolved   = "refs.reference.resolved"
	VerbReferenceUnresolved = "refs.reference.unresolved"
	VerbRunCompleted        = "refs.run.completed"
	VerbRunFailed           = "refs.run.failed"

	ObjectTypeReference = "refs.reference"
	ObjectTypeRun       = "refs.run"
)

// ReferenceEventInput describes one reference entry of a run.
type ReferenceEventInput struct {
	ActorID   string
	TenantID  string
	RunID     string
	Path      string
	Name      string
	Reference string
	Protocol  string
	// Target is the key or id of the document a reference resolved to.
	Target     string
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// RunEventInput describes the outcome of a whole run.
type RunEventInput struct {
	ActorID    string
	TenantID   string
	RunID      string
	Policy     string
	Matched    int
	Processed  int
	Resolved   int
	Unresolved int
	Skipped    int
	Warnings   int
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildReferenceResolvedEvent reports a reference that resolved.
func BuildReferenceResolvedEvent(input ReferenceEventInput) Event {
	return buildReferenceEvent(VerbReferenceResolved, input)
}

// BuildReferenceUnresolvedEvent reports a reference that failed.
func BuildReferenceUnresolvedEvent(input ReferenceEventInput) Event {
	return buildReferenceEvent(VerbReferenceUnresolved, input)
}

// BuildRunCompletedEvent reports a run that reached the done phase.
func BuildRunCompletedEvent(input RunEventInput) Event {
	return buildRunEvent(VerbRunCompleted, input)
}

// BuildRunFailedEvent reports a run aborted by a fatal error.
func BuildRunFailedEvent(input RunEventInput) Event {
	return buildRunEvent(VerbRunFailed, input)
}

func buildReferenceEvent(verb string, input ReferenceEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = put(metadata, "run_id", input.RunID)
	metadata = put(metadata, "path", input.Path)
	metadata = put(metadata, "name", input.Name)
	metadata = put(metadata, "reference", input.Reference)
	metadata = put(metadata, "protocol", input.Protocol)
	metadata = put(metadata, "target", input.Target)
	if input.Err != nil {
		metadata = put(metadata, "error", input.Err.Error())
	}

	objectID := strings.TrimSpace(input.Path)
	if name := strings.TrimSpace(input.Name); name != "" {
		objectID += "#" + name
	}
	if objectID == "" {
		objectID = ObjectTypeReference
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeReference,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func buildRunEvent(verb string, input RunEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["matched"] = input.Matched
	metadata["processed"] = input.Processed
	metadata["resolved"] = input.Resolved
	metadata["unresolved"] = input.Unresolved
	metadata["skipped"] = input.Skipped
	metadata["warnings"] = input.Warnings
	metadata = put(metadata, "policy", input.Policy)
	if input.Err != nil {
		metadata = put(metadata, "error", input.Err.Error())
	}

	objectID := strings.TrimSpace(input.RunID)
	if objectID == "" {
		objectID = ObjectTypeRun
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeRun,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func put(meta map[string]any, key, value string) map[string]any {
	value = strings.TrimSpace(value)
	if value == "" {
		return meta
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta[key] = value
	return meta
}
