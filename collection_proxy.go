package observable

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// CollectionProxy is a NotifyProxy over a collection. Mutating operations go
// through Invoke, which performs the real mutation and then describes it with
// CollectionChangedEvents. Operations whose effect can't be rebuilt from the
// post-state snapshot the elements first.
type CollectionProxy struct {
	*NotifyProxy
	collection listenerSet[CollectionChangedEvent]
}

var (
	_ Binding            = (*CollectionProxy)(nil)
	_ CollectionNotifier = (*CollectionProxy)(nil)
)

func newCollectionProxy(target reflect.Value, cfg *config) *CollectionProxy {
	c := &CollectionProxy{NotifyProxy: newNotifyProxy(target, cfg)}
	c.self = c
	return c
}

// Operation names understood by CollectionProxy.Invoke.
const (
	OpAdd         = "Add"
	OpAddRange    = "AddRange"
	OpClear       = "Clear"
	OpInsert      = "Insert"
	OpInsertRange = "InsertRange"
	OpRemove      = "Remove"
	OpRemoveAll   = "RemoveAll"
	OpRemoveAt    = "RemoveAt"
	OpRemoveRange = "RemoveRange"
	OpSort        = "Sort"
)

// Invoke performs the operation name and raises the matching collection
// events. Methods defined on the target type take precedence over the
// built-in slice and map operations. Non-mutating calls raise nothing.
func (c *CollectionProxy) Invoke(name string, args ...any) (any, error) {
	var before []any
	if c.needsSnapshot(name) {
		before = c.Snapshot()
	}
	result, err := c.perform(name, args)
	if err != nil {
		return nil, err
	}
	c.announce(name, args, before)
	return result, nil
}

func (c *CollectionProxy) needsSnapshot(name string) bool {
	switch name {
	case OpClear, OpRemoveAll, OpRemoveAt, OpRemoveRange, OpSort:
		return true
	case OpRemove:
		return c.isMap()
	}
	return false
}

func (c *CollectionProxy) perform(name string, args []any) (any, error) {
	t := c.Type()
	if t == nil {
		return nil, &NullTargetError{Op: "invoke", Member: name}
	}
	if _, ok := t.MethodByName(name); ok {
		return c.ValueProxy.Invoke(name, args...)
	}
	if c.IsNil() {
		return nil, &NullTargetError{Op: "invoke", Member: name, Type: t}
	}
	if c.isMap() {
		return c.mapOp(name, args)
	}
	if c.isSlice() {
		return c.sliceOp(name, args)
	}
	return nil, &MissingMemberError{Type: t, Member: name}
}

func (c *CollectionProxy) announce(name string, args []any, before []any) {
	switch name {
	case OpAdd:
		if len(args) == 0 {
			return
		}
		if c.isMap() && len(args) == 2 {
			c.emit(CollectionAdded, []any{MapEntry{Key: unwrapProxy(args[0]), Value: unwrapProxy(args[1])}}, NoIndex)
			return
		}
		c.emit(CollectionAdded, []any{unwrapProxy(args[0])}, NoIndex)
	case OpAddRange:
		if len(args) == 0 {
			return
		}
		c.emit(CollectionAdded, itemsOf(args[0]), NoIndex)
	case OpClear:
		c.emit(CollectionRemoved, before, NoIndex)
	case OpInsert:
		if len(args) < 2 {
			return
		}
		c.emit(CollectionAdded, []any{unwrapProxy(args[1])}, c.intArg(args[0], NoIndex))
	case OpInsertRange:
		if len(args) < 2 {
			return
		}
		c.emit(CollectionAdded, itemsOf(args[1]), c.intArg(args[0], NoIndex))
	case OpRemove:
		if len(args) == 0 {
			return
		}
		item := unwrapProxy(args[0])
		if c.isMap() {
			entry := MapEntry{Key: item}
			for _, existing := range before {
				if e, ok := existing.(MapEntry); ok && reflect.DeepEqual(e.Key, item) {
					entry = e
					break
				}
			}
			c.emit(CollectionRemoved, []any{entry}, NoIndex)
			return
		}
		c.emit(CollectionRemoved, []any{item}, NoIndex)
	case OpRemoveAll, OpSort:
		c.emit(CollectionRemoved, before, NoIndex)
		c.emit(CollectionAdded, c.Snapshot(), NoIndex)
	case OpRemoveAt:
		if len(args) == 0 {
			return
		}
		i := c.intArg(args[0], -1)
		if i >= 0 && i < len(before) {
			c.emit(CollectionRemoved, []any{before[i]}, NoIndex)
		}
	case OpRemoveRange:
		if len(args) < 2 {
			return
		}
		lo, hi := clampRange(c.intArg(args[0], 0), c.intArg(args[1], 0), len(before))
		for i := lo; i < hi; i++ {
			c.emit(CollectionRemoved, []any{before[i]}, NoIndex)
		}
	}
}

func (c *CollectionProxy) emit(action CollectionAction, items []any, index int) {
	if items == nil {
		items = []any{}
	}
	event := CollectionChangedEvent{Source: c, Action: action, Items: items, Index: index}
	c.collection.emit(event)
	c.cfg.emitCollectionActivity(c.id, c.Type(), event)
}

func (c *CollectionProxy) intArg(arg any, fallback int) int {
	v, err := c.cfg.converters.Coerce(arg, intType)
	if err != nil {
		return fallback
	}
	return int(v.Int())
}

// SubscribeCollectionChanged registers handler for collection events.
func (c *CollectionProxy) SubscribeCollectionChanged(handler func(CollectionChangedEvent)) Subscription {
	return c.collection.add(handler)
}

// NotifyReset raises a Reset event carrying the current contents, for callers
// that changed the raw collection directly.
func (c *CollectionProxy) NotifyReset() {
	c.emit(CollectionReset, c.Snapshot(), NoIndex)
}

// SetIndexed replaces the element at the index and reports it as the old
// element removed and the new one added at that position.
func (c *CollectionProxy) SetIndexed(value any, indices ...any) error {
	var old any
	hadOld := false
	if len(indices) == 1 {
		if v, err := c.ValueProxy.GetIndexed(indices...); err == nil {
			old, hadOld = v, true
		}
	}
	if err := c.NotifyProxy.SetIndexed(value, indices...); err != nil {
		return err
	}
	current, err := c.ValueProxy.GetIndexed(indices...)
	if err != nil {
		return err
	}
	index := NoIndex
	if !c.isMap() {
		index = c.intArg(indices[0], NoIndex)
	}
	if hadOld {
		c.emit(CollectionRemoved, []any{c.itemAt(indices[0], old)}, index)
	}
	c.emit(CollectionAdded, []any{c.itemAt(indices[0], current)}, index)
	return nil
}

func (c *CollectionProxy) itemAt(key, value any) any {
	if c.isMap() {
		return MapEntry{Key: key, Value: value}
	}
	return value
}

// All iterates the live collection without copying it. Maps yield MapEntry
// values in unspecified order. A nil collection yields nothing.
func (c *CollectionProxy) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		if c.IsNil() {
			return
		}
		switch {
		case c.isSlice():
			for i := 0; i < sequenceOf(c.target).Len(); i++ {
				if !yield(interfaceOf(sequenceOf(c.target).Index(i))) {
					return
				}
			}
		case c.isMap():
			entries := sequenceOf(c.target).MapRange()
			for entries.Next() {
				if !yield(MapEntry{Key: entries.Key().Interface(), Value: interfaceOf(entries.Value())}) {
					return
				}
			}
		default:
			rangeSeqMethod(c.target, yield)
		}
	}
}

// Len returns the number of elements.
func (c *CollectionProxy) Len() int {
	if c.IsNil() {
		return 0
	}
	if c.isSlice() || c.isMap() {
		return sequenceOf(c.target).Len()
	}
	n := 0
	for range c.All() {
		n++
	}
	return n
}

// Snapshot copies the current elements. Map entries are ordered by the text
// of their keys.
func (c *CollectionProxy) Snapshot() []any {
	items := make([]any, 0, c.Len())
	for item := range c.All() {
		items = append(items, item)
	}
	if c.isMap() {
		slices.SortStableFunc(items, func(a, b any) int {
			return compareText(a.(MapEntry).Key, b.(MapEntry).Key)
		})
	}
	return items
}

// Add appends item (or, for maps, stores value under key).
func (c *CollectionProxy) Add(item any, value ...any) error {
	args := append([]any{item}, value...)
	_, err := c.Invoke(OpAdd, args...)
	return err
}

// AddRange appends every item.
func (c *CollectionProxy) AddRange(items ...any) error {
	_, err := c.Invoke(OpAddRange, items)
	return err
}

// Clear removes every element.
func (c *CollectionProxy) Clear() error {
	_, err := c.Invoke(OpClear)
	return err
}

// Insert places item at index.
func (c *CollectionProxy) Insert(index int, item any) error {
	_, err := c.Invoke(OpInsert, index, item)
	return err
}

// InsertRange places items starting at index.
func (c *CollectionProxy) InsertRange(index int, items ...any) error {
	_, err := c.Invoke(OpInsertRange, index, items)
	return err
}

// Remove deletes the first element equal to item (or the key, for maps). The
// Removed event is raised even when nothing matched.
func (c *CollectionProxy) Remove(item any) (bool, error) {
	result, err := c.Invoke(OpRemove, item)
	if err != nil {
		return false, err
	}
	removed, _ := result.(bool)
	return removed, nil
}

// RemoveAll deletes every element matching predicate: a func(any) bool, a
// func(T) bool for the element type, or an expression evaluated with the
// element bound to "item". It returns the number of removed elements.
func (c *CollectionProxy) RemoveAll(predicate any) (int, error) {
	result, err := c.Invoke(OpRemoveAll, predicate)
	if err != nil {
		return 0, err
	}
	removed, _ := result.(int)
	return removed, nil
}

// RemoveAt deletes the element at index. An index outside the collection
// changes nothing and raises no event.
func (c *CollectionProxy) RemoveAt(index int) error {
	_, err := c.Invoke(OpRemoveAt, index)
	return err
}

// RemoveRange deletes count elements starting at start, clamped to the
// collection bounds.
func (c *CollectionProxy) RemoveRange(start, count int) error {
	_, err := c.Invoke(OpRemoveRange, start, count)
	return err
}

// Sort orders the elements with compare: nil for the natural order of
// numbers and strings, a func(a, b any) int, or a func(a, b T) int.
func (c *CollectionProxy) Sort(compare any) error {
	args := []any{}
	if compare != nil {
		args = append(args, compare)
	}
	_, err := c.Invoke(OpSort, args...)
	return err
}

func (c *CollectionProxy) isSlice() bool {
	t := c.Type()
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice
}

func (c *CollectionProxy) isMap() bool {
	t := c.Type()
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Map
}

// itemsOf expands a slice, array or sequence argument into items.
func itemsOf(arg any) []any {
	arg = unwrapProxy(arg)
	if arg == nil {
		return []any{}
	}
	if items, ok := arg.([]any); ok {
		return slices.Clone(items)
	}
	rv := reflect.ValueOf(arg)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Slice {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = interfaceOf(rv.Index(i))
		}
		return items
	}
	if seq, ok := arg.(iter.Seq[any]); ok {
		return slices.Collect(seq)
	}
	return []any{arg}
}

func compareText(a, b any) int {
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
