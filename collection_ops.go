package observable

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

func (c *CollectionProxy) sliceOp(name string, args []any) (any, error) {
	s := c.target.Elem()
	elemType := s.Type().Elem()
	switch name {
	case OpAdd:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		v, err := assignable(args[0], elemType)
		if err != nil {
			return nil, err
		}
		s.Set(reflect.Append(s, v))
		return nil, nil
	case OpAddRange:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		values, err := elementValues(itemsOf(args[0]), elemType)
		if err != nil {
			return nil, err
		}
		s.Set(reflect.Append(s, values...))
		return nil, nil
	case OpClear:
		if err := c.expectArgs(name, args, 0); err != nil {
			return nil, err
		}
		s.Clear()
		s.SetLen(0)
		return nil, nil
	case OpInsert, OpInsertRange:
		if err := c.expectArgs(name, args, 2); err != nil {
			return nil, err
		}
		index, err := c.cfg.converters.Coerce(args[0], intType)
		if err != nil {
			return nil, err
		}
		at := int(index.Int())
		if at < 0 || at > s.Len() {
			return nil, fmt.Errorf("%w: insert at %d (len %d)", ErrIndexOutOfRange, at, s.Len())
		}
		items := []any{args[1]}
		if name == OpInsertRange {
			items = itemsOf(args[1])
		}
		values, err := elementValues(items, elemType)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeSlice(s.Type(), 0, s.Len()+len(values))
		out = reflect.AppendSlice(out, s.Slice(0, at))
		out = reflect.Append(out, values...)
		out = reflect.AppendSlice(out, s.Slice(at, s.Len()))
		s.Set(out)
		return nil, nil
	case OpRemove:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		item := unwrapProxy(args[0])
		for i := 0; i < s.Len(); i++ {
			if sameElement(s.Index(i), item) {
				removeSliceRange(s, i, i+1)
				return true, nil
			}
		}
		return false, nil
	case OpRemoveAll:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		match, err := c.predicate(args[0])
		if err != nil {
			return nil, err
		}
		kept := reflect.MakeSlice(s.Type(), 0, s.Len())
		removed := 0
		for i := 0; i < s.Len(); i++ {
			ok, err := match(interfaceOf(s.Index(i)))
			if err != nil {
				return nil, err
			}
			if ok {
				removed++
				continue
			}
			kept = reflect.Append(kept, s.Index(i))
		}
		s.Set(kept)
		return removed, nil
	case OpRemoveAt:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		index, err := c.cfg.converters.Coerce(args[0], intType)
		if err != nil {
			return nil, err
		}
		i := int(index.Int())
		if i < 0 || i >= s.Len() {
			return nil, nil
		}
		removeSliceRange(s, i, i+1)
		return nil, nil
	case OpRemoveRange:
		if err := c.expectArgs(name, args, 2); err != nil {
			return nil, err
		}
		start, err := c.cfg.converters.Coerce(args[0], intType)
		if err != nil {
			return nil, err
		}
		count, err := c.cfg.converters.Coerce(args[1], intType)
		if err != nil {
			return nil, err
		}
		lo, hi := clampRange(int(start.Int()), int(count.Int()), s.Len())
		if lo < hi {
			removeSliceRange(s, lo, hi)
		}
		return nil, nil
	case OpSort:
		if len(args) > 1 {
			return nil, c.argCountError(name, 1, len(args))
		}
		var compare any
		if len(args) == 1 {
			compare = args[0]
		}
		order, err := comparator(compare)
		if err != nil {
			return nil, err
		}
		items := make([]any, s.Len())
		for i := range items {
			items[i] = interfaceOf(s.Index(i))
		}
		slices.SortStableFunc(items, order)
		for i, item := range items {
			if item == nil {
				s.Index(i).SetZero()
				continue
			}
			s.Index(i).Set(reflect.ValueOf(item))
		}
		return nil, nil
	}
	return nil, &MissingMemberError{Type: c.Type(), Member: name}
}

func (c *CollectionProxy) mapOp(name string, args []any) (any, error) {
	m := sequenceOf(c.target)
	keyType, elemType := m.Type().Key(), m.Type().Elem()
	if m.IsNil() {
		if !m.CanSet() {
			return nil, &NullTargetError{Op: "invoke", Member: name, Type: c.Type()}
		}
		m.Set(reflect.MakeMap(m.Type()))
	}
	put := func(key, value any) error {
		k, err := assignable(key, keyType)
		if err != nil {
			return err
		}
		v, err := assignable(value, elemType)
		if err != nil {
			return err
		}
		m.SetMapIndex(k, v)
		return nil
	}
	switch name {
	case OpAdd:
		if len(args) == 1 {
			entry, ok := args[0].(MapEntry)
			if !ok {
				return nil, c.argCountError(name, 2, 1)
			}
			return nil, put(entry.Key, entry.Value)
		}
		if err := c.expectArgs(name, args, 2); err != nil {
			return nil, err
		}
		return nil, put(args[0], args[1])
	case OpAddRange:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		for _, item := range itemsOf(args[0]) {
			entry, ok := item.(MapEntry)
			if !ok {
				return nil, &ConversionError{From: reflect.TypeOf(item), To: reflect.TypeFor[MapEntry](), Value: item}
			}
			if err := put(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case OpClear:
		if err := c.expectArgs(name, args, 0); err != nil {
			return nil, err
		}
		m.Clear()
		return nil, nil
	case OpRemove:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		key, err := assignable(unwrapProxy(args[0]), keyType)
		if err != nil {
			return nil, err
		}
		if !m.MapIndex(key).IsValid() {
			return false, nil
		}
		m.SetMapIndex(key, reflect.Value{})
		return true, nil
	case OpRemoveAll:
		if err := c.expectArgs(name, args, 1); err != nil {
			return nil, err
		}
		match, err := c.predicate(args[0])
		if err != nil {
			return nil, err
		}
		var doomed []reflect.Value
		entries := m.MapRange()
		for entries.Next() {
			ok, err := match(MapEntry{Key: entries.Key().Interface(), Value: interfaceOf(entries.Value())})
			if err != nil {
				return nil, err
			}
			if ok {
				doomed = append(doomed, entries.Key())
			}
		}
		for _, key := range doomed {
			m.SetMapIndex(key, reflect.Value{})
		}
		return len(doomed), nil
	}
	return nil, &MissingMemberError{Type: c.Type(), Member: name}
}

func (c *CollectionProxy) expectArgs(name string, args []any, want int) error {
	if len(args) != want {
		return c.argCountError(name, want, len(args))
	}
	return nil
}

func (c *CollectionProxy) argCountError(name string, want, got int) error {
	return &MissingMemberError{Type: c.Type(), Member: name, Err: fmt.Errorf("expects %d arguments, got %d", want, got)}
}

// predicate adapts the supported predicate shapes to one signature.
func (c *CollectionProxy) predicate(arg any) (func(any) (bool, error), error) {
	switch fn := arg.(type) {
	case nil:
		return nil, fmt.Errorf("observable: predicate must not be nil")
	case func(any) bool:
		return func(item any) (bool, error) { return fn(item), nil }, nil
	case string:
		evaluator := c.cfg.resolveEvaluator()
		if evaluator == nil {
			return nil, ErrNoEvaluator
		}
		rule, err := evaluator.Compile(fn)
		if err != nil {
			return nil, err
		}
		return func(item any) (bool, error) {
			result, err := rule.Evaluate(RuleContext{
				Target: item,
				Vars:   map[string]any{"item": item},
				Owner:  typeLabel(c.Type()),
			})
			if err != nil {
				return false, evalFailure(evaluatorEngineName(evaluator), StageRun, fn, typeLabel(c.Type()), err)
			}
			matched, ok := result.(bool)
			if !ok {
				return false, &ConversionError{From: reflect.TypeOf(result), To: reflect.TypeFor[bool](), Value: result}
			}
			return matched, nil
		}, nil
	}
	fv := reflect.ValueOf(arg)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumIn() != 1 || ft.NumOut() != 1 || ft.Out(0).Kind() != reflect.Bool {
		return nil, &ConversionError{From: ft, To: reflect.TypeFor[func(any) bool](), Value: arg}
	}
	return func(item any) (bool, error) {
		in, err := assignable(item, ft.In(0))
		if err != nil {
			return false, err
		}
		return fv.Call([]reflect.Value{in})[0].Bool(), nil
	}, nil
}

// comparator adapts the supported comparison shapes to one signature.
func comparator(arg any) (func(a, b any) int, error) {
	switch fn := arg.(type) {
	case nil:
		return naturalOrder, nil
	case func(a, b any) int:
		return fn, nil
	}
	fv := reflect.ValueOf(arg)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumIn() != 2 || ft.NumOut() != 1 || ft.Out(0).Kind() != reflect.Int {
		return nil, &ConversionError{From: ft, To: reflect.TypeFor[func(a, b any) int](), Value: arg}
	}
	return func(a, b any) int {
		av, errA := assignable(a, ft.In(0))
		bv, errB := assignable(b, ft.In(1))
		if errA != nil || errB != nil {
			return compareText(a, b)
		}
		return int(fv.Call([]reflect.Value{av, bv})[0].Int())
	}, nil
}

// naturalOrder compares numbers numerically and strings lexically. Mixed or
// unordered values compare by their text.
func naturalOrder(a, b any) int {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return cmp.Compare(boolRank(av.IsValid()), boolRank(bv.IsValid()))
	}
	switch {
	case isIntKind(av.Kind()) && isIntKind(bv.Kind()):
		return cmp.Compare(av.Int(), bv.Int())
	case isUintKind(av.Kind()) && isUintKind(bv.Kind()):
		return cmp.Compare(av.Uint(), bv.Uint())
	case isNumberKind(av.Kind()) && isNumberKind(bv.Kind()):
		return cmp.Compare(asFloat(av), asFloat(bv))
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return cmp.Compare(av.String(), bv.String())
	case av.Kind() == reflect.Bool && bv.Kind() == reflect.Bool:
		return cmp.Compare(boolRank(av.Bool()), boolRank(bv.Bool()))
	}
	return compareText(a, b)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumberKind(k reflect.Kind) bool {
	return isIntKind(k) || isUintKind(k) || k == reflect.Float32 || k == reflect.Float64
}

func asFloat(v reflect.Value) float64 {
	switch {
	case isIntKind(v.Kind()):
		return float64(v.Int())
	case isUintKind(v.Kind()):
		return float64(v.Uint())
	}
	return v.Float()
}

func elementValues(items []any, elemType reflect.Type) ([]reflect.Value, error) {
	values := make([]reflect.Value, len(items))
	for i, item := range items {
		v, err := assignable(item, elemType)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func sameElement(elem reflect.Value, item any) bool {
	current := interfaceOf(elem)
	if current == nil || item == nil {
		return current == nil && item == nil
	}
	cv, iv := reflect.ValueOf(current), reflect.ValueOf(item)
	if cv.Type() == iv.Type() && cv.Comparable() && iv.Comparable() {
		return current == item
	}
	return reflect.DeepEqual(current, item)
}

// clampRange maps start and count onto [0, n) without overflowing. The
// result is empty when lo >= hi.
func clampRange(start, count, n int) (lo, hi int) {
	if count <= 0 || start >= n {
		return 0, 0
	}
	if start < 0 {
		count += start
		start = 0
		if count <= 0 {
			return 0, 0
		}
	}
	return start, start + min(count, n-start)
}

// removeSliceRange deletes s[lo:hi] in place and zeroes the vacated tail.
func removeSliceRange(s reflect.Value, lo, hi int) {
	n := s.Len()
	reflect.Copy(s.Slice(lo, n), s.Slice(hi, n))
	tail := n - (hi - lo)
	for i := tail; i < n; i++ {
		s.Index(i).SetZero()
	}
	s.SetLen(tail)
}

// seqMethod finds an All method returning iter.Seq[V] or iter.Seq2[K, V].
func seqMethod(t reflect.Type) (reflect.Method, bool) {
	method, ok := t.MethodByName("All")
	if !ok {
		return reflect.Method{}, false
	}
	mt := method.Type
	if mt.NumIn() != 1 || mt.NumOut() != 1 {
		return reflect.Method{}, false
	}
	seq := mt.Out(0)
	if seq.Kind() != reflect.Func || seq.NumIn() != 1 || seq.NumOut() != 0 {
		return reflect.Method{}, false
	}
	yield := seq.In(0)
	if yield.Kind() != reflect.Func || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return reflect.Method{}, false
	}
	if n := yield.NumIn(); n != 1 && n != 2 {
		return reflect.Method{}, false
	}
	return method, true
}

// rangeSeqMethod ranges over target.All(). Two-value sequences yield
// MapEntry items.
func rangeSeqMethod(target reflect.Value, yield func(any) bool) {
	if _, ok := seqMethod(target.Type()); !ok {
		return
	}
	seq := target.MethodByName("All").Call(nil)[0]
	if seq.IsNil() {
		return
	}
	yieldType := seq.Type().In(0)
	fn := reflect.MakeFunc(yieldType, func(in []reflect.Value) []reflect.Value {
		var item any
		if len(in) == 2 {
			item = MapEntry{Key: interfaceOf(in[0]), Value: interfaceOf(in[1])}
		} else {
			item = interfaceOf(in[0])
		}
		return []reflect.Value{reflect.ValueOf(yield(item))}
	})
	seq.Call([]reflect.Value{fn})
}
