package observable

import (
	"github.com/google/uuid"
)

// PropertyChangedEvent announces that the member Name of Source changed.
type PropertyChangedEvent struct {
	Source any
	Name   string
}

// CollectionAction classifies a collection change.
type CollectionAction int

const (
	// CollectionAdded reports items inserted into the collection.
	CollectionAdded CollectionAction = iota + 1
	// CollectionRemoved reports items taken out of the collection.
	CollectionRemoved
	// CollectionReset reports contents that changed in a way no diff describes.
	CollectionReset
)

func (a CollectionAction) String() string {
	switch a {
	case CollectionAdded:
		return "added"
	case CollectionRemoved:
		return "removed"
	case CollectionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// NoIndex marks a CollectionChangedEvent without a position.
const NoIndex = -1

// CollectionChangedEvent is the only shape emitted for collection changes.
type CollectionChangedEvent struct {
	Source any
	Action CollectionAction
	Items  []any
	// Index is the position of the first item or NoIndex.
	Index int
}

// MapEntry is the item type reported for map-shaped collections.
type MapEntry struct {
	Key   any
	Value any
}

// PropertyNotifier is the observable contract shared by proxies and hosts.
type PropertyNotifier interface {
	SubscribePropertyChanged(handler func(PropertyChangedEvent)) Subscription
	NotifyPropertyChanged(name string)
}

// CollectionNotifier is implemented by collection-aware proxies.
type CollectionNotifier interface {
	SubscribeCollectionChanged(handler func(CollectionChangedEvent)) Subscription
}

// Subscription identifies a registered handler.
type Subscription struct {
	ID     uuid.UUID
	cancel func()
}

// Cancel detaches the handler. Calling Cancel more than once is a no-op.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Active reports whether the subscription was ever registered.
func (s Subscription) Active() bool {
	return s.cancel != nil
}

type listener[E any] struct {
	id      uuid.UUID
	fn      func(E)
	removed bool
}

// listenerSet dispatches synchronously. Handlers added during a dispatch are
// not called for it; handlers cancelled during a dispatch are skipped.
type listenerSet[E any] struct {
	entries []*listener[E]
}

func (s *listenerSet[E]) add(fn func(E)) Subscription {
	if fn == nil {
		return Subscription{}
	}
	entry := &listener[E]{id: uuid.New(), fn: fn}
	s.entries = append(s.entries, entry)
	return Subscription{
		ID: entry.id,
		cancel: func() {
			s.remove(entry)
		},
	}
}

func (s *listenerSet[E]) remove(entry *listener[E]) {
	if entry.removed {
		return
	}
	entry.removed = true
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e != entry {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
}

func (s *listenerSet[E]) emit(event E) {
	if len(s.entries) == 0 {
		return
	}
	current := make([]*listener[E], len(s.entries))
	copy(current, s.entries)
	for _, entry := range current {
		if entry.removed {
			continue
		}
		entry.fn(event)
	}
}

func (s *listenerSet[E]) len() int {
	return len(s.entries)
}
