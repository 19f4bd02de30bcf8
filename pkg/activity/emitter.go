package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events when neither the event nor the
// emitter configuration names one.
const DefaultChannel = "observable"

// Config holds the defaults an Emitter applies to outgoing events.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
}

// Object identifies the observed object an event is about.
type Object struct {
	ID   string
	Type string
}

// Emitter turns property and collection changes into events and forwards
// them to hooks.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

// NewEmitter constructs an emitter. It is disabled when cfg.Enabled is false
// or no non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	hooks = hooks.Compact()
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	cfg.Enabled = cfg.Enabled && len(hooks) > 0
	return &Emitter{hooks: hooks, cfg: cfg}
}

// Enabled reports whether emissions are attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled
}

// EmitProperty reports a write of property on obj.
func (e *Emitter) EmitProperty(ctx context.Context, obj Object, property string) error {
	if !e.Enabled() {
		return nil
	}
	return e.Emit(ctx, PropertyChanged(obj, property))
}

// EmitCollection reports a collection change on obj.
func (e *Emitter) EmitCollection(ctx context.Context, obj Object, change Change) error {
	if !e.Enabled() {
		return nil
	}
	return e.Emit(ctx, CollectionChanged(obj, change.Action, change.Items, change.Index))
}

// Emit fills the channel, actor and tenant from the configuration where the
// event leaves them empty, then notifies the hooks. The actor doubles as the
// user.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	fill(&event.Channel, e.cfg.Channel)
	fill(&event.ActorID, e.cfg.ActorID)
	fill(&event.UserID, e.cfg.ActorID)
	fill(&event.TenantID, e.cfg.TenantID)
	return e.hooks.Notify(ctx, event)
}

func fill(field *string, fallback string) {
	if strings.TrimSpace(*field) == "" {
		*field = fallback
	}
}
