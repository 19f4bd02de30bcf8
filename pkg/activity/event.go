package activity

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// VerbPropertyChanged is the verb of events raised for a member write.
const VerbPropertyChanged = "property.changed"

// NoIndex marks a collection change without a position.
const NoIndex = -1

// Change describes what happened to the observed object. Property is set for
// member writes; Action, Items and Index are set for collection changes.
type Change struct {
	Property string
	Action   string
	Items    []any
	Index    int
}

// IsCollection reports whether the change came from a collection.
func (c Change) IsCollection() bool {
	return c.Action != ""
}

func (c Change) verb() string {
	switch {
	case c.IsCollection():
		return "collection." + c.Action
	case c.Property != "":
		return VerbPropertyChanged
	}
	return ""
}

// Event is a change on an observed object as seen by hooks. IDs are strings
// so callers can use any identifier scheme.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Change     Change
	Metadata   map[string]any
	OccurredAt time.Time
}

// Routable reports whether the event names a verb and an object. Hooks drop
// events that are not routable.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Data flattens metadata and the change into a single map. Change fields
// win over metadata keys of the same name. Index is only recorded for
// collection changes with a position.
func (e Event) Data() map[string]any {
	data := maps.Clone(e.Metadata)
	if data == nil {
		data = map[string]any{}
	}
	if e.Change.Property != "" {
		data["property"] = e.Change.Property
	}
	if e.Change.IsCollection() {
		data["action"] = e.Change.Action
		data["count"] = len(e.Change.Items)
		if len(e.Change.Items) > 0 {
			data["items"] = slices.Clone(e.Change.Items)
		}
		if e.Change.Index >= 0 {
			data["index"] = e.Change.Index
		}
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

// NormalizeEvent trims identifiers, copies metadata and items, derives the
// verb from the change when it is missing and stamps the current time when
// OccurredAt is zero.
func NormalizeEvent(event Event) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID,
		&out.ObjectType, &out.ObjectID, &out.Channel,
		&out.Change.Property, &out.Change.Action,
	} {
		*field = strings.TrimSpace(*field)
	}
	if out.Verb == "" {
		out.Verb = out.Change.verb()
	}
	if len(event.Metadata) > 0 {
		out.Metadata = maps.Clone(event.Metadata)
	} else {
		out.Metadata = nil
	}
	if len(event.Change.Items) > 0 {
		out.Change.Items = slices.Clone(event.Change.Items)
	} else {
		out.Change.Items = nil
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}
