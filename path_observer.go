package observable

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// PathObserver keeps a chain of subscriptions along a dotted member path and
// calls back whenever any segment changes. Nested levels are re-subscribed
// when an intermediate object is replaced. Collection observers also follow
// change events of the collection at the end of the path.
type PathObserver struct {
	ID         uuid.UUID
	Path       string
	segments   []string
	collection bool
	callback   func()
	levels     []Subscription
	terminal   Subscription
	cfg        *config
	closed     bool
}

// Watch calls callback whenever a member along path changes. The observer
// stays active until Close.
func Watch(source PropertyNotifier, path string, callback func(), opts ...Option) (*PathObserver, error) {
	return watch(source, path, false, callback, applyOptions(opts))
}

// WatchCollection is Watch that also fires on collection changes of the
// value at the end of path.
func WatchCollection(source PropertyNotifier, path string, callback func(), opts ...Option) (*PathObserver, error) {
	return watch(source, path, true, callback, applyOptions(opts))
}

func watch(source PropertyNotifier, path string, collection bool, callback func(), cfg *config) (*PathObserver, error) {
	if source == nil {
		return nil, &NullTargetError{Op: "watch", Member: path}
	}
	if callback == nil {
		return nil, fmt.Errorf("observable: watch %q: callback must not be nil", path)
	}
	if _, err := ResolvePath(source, path); err != nil {
		return nil, err
	}
	o := newPathObserver(path, collection, callback, cfg)
	o.attach(0, source)
	return o, nil
}

func newPathObserver(path string, collection bool, callback func(), cfg *config) *PathObserver {
	segments := splitPath(path)
	return &PathObserver{
		ID:         uuid.New(),
		Path:       path,
		segments:   segments,
		collection: collection,
		callback:   callback,
		levels:     make([]Subscription, len(segments)),
		cfg:        cfg,
	}
}

// Collection reports whether the observer follows collection changes.
func (o *PathObserver) Collection() bool {
	return o.collection
}

// Close cancels every subscription. The callback is not called afterwards.
func (o *PathObserver) Close() {
	o.closed = true
	o.release(0)
}

// attach subscribes levels from..n-1, starting with source as the notifier
// for segment from.
func (o *PathObserver) attach(from int, source any) {
	if o.closed {
		return
	}
	for i := from; i < len(o.segments); i++ {
		if source == nil {
			return
		}
		o.subscribeLevel(i, source)
		if i == len(o.segments)-1 && !o.collection {
			return
		}
		source = o.step(source, o.segments[i])
	}
	if !o.collection {
		return
	}
	if notifier, ok := source.(CollectionNotifier); ok {
		o.terminal = notifier.SubscribeCollectionChanged(func(CollectionChangedEvent) {
			o.fire()
		})
	}
}

func (o *PathObserver) subscribeLevel(i int, source any) {
	notifier, ok := source.(PropertyNotifier)
	if !ok {
		return
	}
	name := o.segments[i]
	o.levels[i] = notifier.SubscribePropertyChanged(func(event PropertyChangedEvent) {
		if event.Name != name || o.closed {
			return
		}
		o.release(i + 1)
		o.attach(i+1, o.step(source, name))
		o.fire()
	})
}

// release drops the subscriptions of levels from..n-1 and the terminal one.
func (o *PathObserver) release(from int) {
	for i := from; i < len(o.levels); i++ {
		o.levels[i].Cancel()
		o.levels[i] = Subscription{}
	}
	o.terminal.Cancel()
	o.terminal = Subscription{}
}

func (o *PathObserver) fire() {
	if o.closed || o.callback == nil {
		return
	}
	o.callback()
}

// step reads name from source and returns something that can be observed:
// the member itself when it raises events, otherwise the proxy the source
// hands out for it.
func (o *PathObserver) step(source any, name string) any {
	next, err := resolveStep(source, name)
	if err != nil {
		o.cfg.logger.LogEvent(LogEvent{Op: "resolve", Owner: fmt.Sprintf("%T", source), Path: o.Path, Err: err})
		return nil
	}
	return next
}

type bindingSource interface {
	Binding(name string) Binding
}

func resolveStep(source any, name string) (any, error) {
	if source == nil {
		return nil, nil
	}
	raw, err := newValueProxy(reflect.ValueOf(unwrapProxy(source)), defaultConfig()).Get(name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	if notifier, ok := raw.(PropertyNotifier); ok {
		return notifier, nil
	}
	switch s := source.(type) {
	case Binding:
		child, err := s.Child(name)
		if err != nil || child == nil {
			return nil, err
		}
		return child, nil
	case bindingSource:
		if b := s.Binding(name); b != nil {
			return b, nil
		}
	}
	return nil, nil
}
