package observable

import (
	"reflect"

	"github.com/google/uuid"
)

// IndexerProperty is the property name raised when a value is written
// through SetIndexed.
const IndexerProperty = "[]"

// Binding is a live, observable proxy over a raw object.
type Binding interface {
	Accessor
	PropertyNotifier
	// Target returns the wrapped raw object.
	Target() any
	// Child returns the proxy for the member name, or nil when the member
	// holds nil or a value without identity.
	Child(name string) (Binding, error)
	// Wrap applies the proxy selection rule using this binding's cache.
	Wrap(value any) any
}

// NotifyProxy raises a PropertyChangedEvent on every successful write and
// wraps nested objects on demand. Each NotifyProxy keeps its own identity
// cache, so reading the same nested object twice through it yields the same
// proxy, and listeners attached to that proxy keep firing.
type NotifyProxy struct {
	*ValueProxy
	id        uuid.UUID
	self      Binding
	listeners listenerSet[PropertyChangedEvent]
	cache     identityCache
}

var _ Binding = (*NotifyProxy)(nil)

// NewNotifyProxy wraps obj with change notification. Use Bind when obj may
// be a collection.
func NewNotifyProxy(obj any, opts ...Option) *NotifyProxy {
	if raw, ok := proxyTarget(obj); ok {
		obj = raw
	}
	return newNotifyProxy(reflect.ValueOf(obj), applyOptions(opts))
}

func newNotifyProxy(target reflect.Value, cfg *config) *NotifyProxy {
	p := &NotifyProxy{
		ValueProxy: newValueProxy(target, cfg),
		id:         uuid.New(),
	}
	p.self = p
	return p
}

// Bind selects the proxy flavour for obj: a CollectionProxy for maps,
// pointers to slices and Add/All types, a NotifyProxy otherwise. Slices,
// arrays and structs passed by value are copied into a new pointer first.
// Bind returns nil for nil and simple values.
func Bind(obj any, opts ...Option) Binding {
	if obj == nil || IsSimple(obj) {
		return nil
	}
	if b, ok := obj.(Binding); ok {
		return b
	}
	target := boxed(reflect.ValueOf(obj))
	if isNilValue(target) {
		return nil
	}
	return newBinding(target, applyOptions(opts))
}

func boxed(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array:
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		return ptr
	}
	return v
}

// ID identifies the proxy in activity events.
func (p *NotifyProxy) ID() uuid.UUID {
	return p.id
}

// Get returns the member value with any stored proxy unwrapped.
func (p *NotifyProxy) Get(name string) (any, error) {
	v, err := p.ValueProxy.Get(name)
	if err != nil {
		return nil, err
	}
	return unwrapProxy(v), nil
}

// Child returns the member as a proxy. Repeated calls return the same proxy
// for the same underlying object.
func (p *NotifyProxy) Child(name string) (Binding, error) {
	v, err := p.memberValue(name)
	if err != nil {
		return nil, err
	}
	b, _ := p.cache.wrap(v, p.cfg).(Binding)
	return b, nil
}

// GetIndexed reads through the indexer and wraps non-simple results so
// elements come back live and observable.
func (p *NotifyProxy) GetIndexed(indices ...any) (any, error) {
	v, err := p.indexedValue(indices)
	if err != nil {
		return nil, err
	}
	return p.cache.wrap(v, p.cfg), nil
}

// Set wraps value, assigns it and raises PropertyChanged for name, whether
// or not the value differs from the previous one.
func (p *NotifyProxy) Set(name string, value any) error {
	if err := p.ValueProxy.Set(name, p.Wrap(value)); err != nil {
		return err
	}
	p.self.NotifyPropertyChanged(name)
	return nil
}

// SetIndexed writes through the indexer and raises PropertyChanged for
// IndexerProperty.
func (p *NotifyProxy) SetIndexed(value any, indices ...any) error {
	if err := p.ValueProxy.SetIndexed(p.Wrap(value), indices...); err != nil {
		return err
	}
	p.self.NotifyPropertyChanged(IndexerProperty)
	return nil
}

// Wrap applies the proxy selection rule to value.
func (p *NotifyProxy) Wrap(value any) any {
	if value == nil {
		return nil
	}
	return p.cache.wrap(reflect.ValueOf(value), p.cfg)
}

// SubscribePropertyChanged registers handler for every change raised by
// this proxy.
func (p *NotifyProxy) SubscribePropertyChanged(handler func(PropertyChangedEvent)) Subscription {
	return p.listeners.add(handler)
}

// NotifyPropertyChanged raises a PropertyChangedEvent for name.
func (p *NotifyProxy) NotifyPropertyChanged(name string) {
	p.listeners.emit(PropertyChangedEvent{Source: p.self, Name: name})
	p.cfg.emitPropertyActivity(p.id, p.Type(), name)
}
