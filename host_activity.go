package observable

import (
	"context"
	"reflect"

	"github.com/goliatone/go-observable/pkg/activity"
	"github.com/google/uuid"
)

// WithActivityHooks forwards every property and collection change to hooks as
// an activity event. Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel sets the channel stamped on activity events that do
// not carry one.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.activityCfg.Channel = channel
	}
}

// WithActivityActor attributes activity events to an actor and tenant.
func WithActivityActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.activityCfg.ActorID = actorID
		cfg.activityCfg.TenantID = tenantID
	}
}

func activityObject(id uuid.UUID, t reflect.Type) activity.Object {
	return activity.Object{ID: id.String(), Type: typeLabel(t)}
}

func (cfg *config) emitPropertyActivity(id uuid.UUID, t reflect.Type, name string) {
	obj := activityObject(id, t)
	if err := cfg.emitter.EmitProperty(context.Background(), obj, name); err != nil {
		cfg.logger.LogEvent(LogEvent{Op: "activity", Owner: obj.Type, Path: name, Err: err})
	}
}

func (cfg *config) emitCollectionActivity(id uuid.UUID, t reflect.Type, event CollectionChangedEvent) {
	obj := activityObject(id, t)
	change := activity.Change{Action: event.Action.String(), Items: event.Items, Index: event.Index}
	if err := cfg.emitter.EmitCollection(context.Background(), obj, change); err != nil {
		cfg.logger.LogEvent(LogEvent{Op: "activity", Owner: obj.Type, Err: err})
	}
}
