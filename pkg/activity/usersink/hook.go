package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-refs/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards resolution activity to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps event into an ActivityRecord. Identifiers that are not UUIDs
// are kept in the record data under actor and tenant.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := copyData(normalized.Metadata)
	actorID, data := identifier(normalized.ActorID, "actor", data)
	tenantID, data := identifier(normalized.TenantID, "tenant", data)

	record := usertypes.ActivityRecord{
		ActorID:    actorID,
		UserID:     actorID,
		TenantID:   tenantID,
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	return h.Sink.Log(ctx, record)
}

func identifier(raw, key string, data map[string]any) (uuid.UUID, map[string]any) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return uuid.Nil, data
	}
	id, err := uuid.Parse(value)
	if err == nil {
		return id, data
	}
	if data == nil {
		data = map[string]any{}
	}
	data[key] = value
	return uuid.Nil, data
}

func copyData(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
