package observable

import (
	"reflect"

	"github.com/google/uuid"
)

// Host gives a struct observable behaviour by embedding. Call Init with a
// pointer to the embedding struct before use:
//
//	type Invoice struct {
//		observable.Host
//		Lines *[]Line
//		Total float64
//	}
//
//	inv := &Invoice{}
//	err := inv.Init(inv)
//
// Init installs the dependency rules registered for the owner type. Events
// raised by the host carry the owner as their source.
type Host struct {
	owner     PropertyNotifier
	cfg       *config
	id        uuid.UUID
	listeners listenerSet[PropertyChangedEvent]
	cache     identityCache
	observers []*PathObserver
}

// Init records owner and installs its dependency rules. Calling Init again
// replaces the previous observers.
func (h *Host) Init(owner PropertyNotifier, opts ...Option) error {
	if owner == nil {
		return &NullTargetError{Op: "init"}
	}
	h.Close()
	h.owner = owner
	h.cfg = applyOptions(opts)
	if h.id == uuid.Nil {
		h.id = uuid.New()
	}
	observers, err := install(owner, h.cfg)
	if err != nil {
		return err
	}
	h.observers = observers
	return nil
}

// Close stops the dependency observers installed by Init.
func (h *Host) Close() {
	for _, o := range h.observers {
		o.Close()
	}
	h.observers = nil
}

// Observers returns the observers installed by Init.
func (h *Host) Observers() []*PathObserver {
	return append([]*PathObserver(nil), h.observers...)
}

func (h *Host) config() *config {
	if h.cfg == nil {
		h.cfg = defaultConfig()
	}
	return h.cfg
}

// NotifyPropertyChanged raises a PropertyChangedEvent for name.
func (h *Host) NotifyPropertyChanged(name string) {
	var source any
	if h.owner != nil {
		source = h.owner
	}
	h.listeners.emit(PropertyChangedEvent{Source: source, Name: name})
	h.config().emitPropertyActivity(h.id, reflect.TypeOf(source), name)
}

// SubscribePropertyChanged registers handler for every change raised by the
// host.
func (h *Host) SubscribePropertyChanged(handler func(PropertyChangedEvent)) Subscription {
	return h.listeners.add(handler)
}

// SetBinding assigns value to the owner member name and raises a change for
// it. Values for members declared as interfaces are stored as proxies, with
// slices, arrays and structs passed by value copied into a new pointer first.
// Concretely typed members receive the raw value; Binding(name) observes it.
func (h *Host) SetBinding(name string, value any) error {
	if h.owner == nil {
		return &NullTargetError{Op: "set binding", Member: name}
	}
	cfg := h.config()
	owner := newValueProxy(reflect.ValueOf(h.owner), cfg)
	stored := value
	if value != nil && !IsSimple(value) {
		if _, isProxy := value.(rawTargeter); !isProxy {
			declared, ok := memberType(owner.Type(), name)
			rv := reflect.ValueOf(value)
			if !ok || declared.Kind() == reflect.Interface || !rv.Type().AssignableTo(declared) {
				stored = h.cache.wrap(boxed(rv), cfg)
			}
		}
	}
	if err := owner.Set(name, stored); err != nil {
		return err
	}
	h.NotifyPropertyChanged(name)
	return nil
}

// Binding returns the proxy for the owner member name, nil when the member
// holds nil, a simple value or a value without identity. Repeated calls
// return the same proxy for the same object for the lifetime of the host.
func (h *Host) Binding(name string) Binding {
	if h.owner == nil {
		return nil
	}
	owner := newValueProxy(reflect.ValueOf(h.owner), h.config())
	v, err := owner.memberValue(name)
	if err != nil {
		h.config().logger.LogEvent(LogEvent{Op: "resolve", Owner: typeLabel(owner.Type()), Path: name, Err: err})
		return nil
	}
	b, _ := h.cache.wrap(v, h.config()).(Binding)
	return b
}
