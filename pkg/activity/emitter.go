package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "refs"

// Config controls whether a resolver emits activity and on which channel.
type Config struct {
	Enabled bool
	Channel string
	// ActorID is stamped on events that do not carry an actor.
	ActorID string
}

// Emitter applies run-wide defaults to events before handing them to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	actorID string
}

// NewEmitter drops nil hooks and disables itself when none remain.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	live := hooks.compact()
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   live,
		enabled: cfg.Enabled && len(live) > 0,
		channel: channel,
		actorID: strings.TrimSpace(cfg.ActorID),
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the channel stamped on events without one.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Emit stamps the defaults on event and fans it out.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	return e.hooks.Notify(ctx, event)
}
