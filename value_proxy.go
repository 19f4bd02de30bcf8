package observable

import (
	"fmt"
	"hash/maphash"
	"iter"
	"reflect"
	"slices"
	"strings"
)

// Accessor is the capability set every proxy exposes over its target.
type Accessor interface {
	Get(name string) (any, error)
	Set(name string, value any) error
	GetIndexed(indices ...any) (any, error)
	SetIndexed(value any, indices ...any) error
	Invoke(name string, args ...any) (any, error)
	MemberNames() iter.Seq[string]
}

// ValueProxy gives name-based access to the members of an arbitrary value:
// exported struct fields, zero-argument getter methods, Set<Name> setter
// methods, the keys of string-keyed maps, and methods. It raises no events.
type ValueProxy struct {
	target reflect.Value
	cfg    *config
}

var _ Accessor = (*ValueProxy)(nil)

// NewValueProxy wraps obj. Passing a proxy wraps its target instead.
func NewValueProxy(obj any, opts ...Option) *ValueProxy {
	if raw, ok := proxyTarget(obj); ok {
		obj = raw
	}
	return newValueProxy(reflect.ValueOf(obj), applyOptions(opts))
}

func newValueProxy(target reflect.Value, cfg *config) *ValueProxy {
	if cfg == nil {
		cfg = defaultConfig()
	}
	return &ValueProxy{target: target, cfg: cfg}
}

// rawTargeter is implemented by every proxy flavour through ValueProxy.
type rawTargeter interface {
	rawTarget() reflect.Value
}

func (p *ValueProxy) rawTarget() reflect.Value {
	return p.target
}

// proxyTarget returns the raw value behind value when value is a proxy.
func proxyTarget(value any) (any, bool) {
	wrapped, ok := value.(rawTargeter)
	if !ok {
		return nil, false
	}
	target := wrapped.rawTarget()
	if !target.IsValid() {
		return nil, true
	}
	return target.Interface(), true
}

// unwrapProxy returns the raw value behind value, or value itself.
func unwrapProxy(value any) any {
	if raw, ok := proxyTarget(value); ok {
		return raw
	}
	return value
}

// Target returns the wrapped raw value.
func (p *ValueProxy) Target() any {
	if !p.target.IsValid() {
		return nil
	}
	return p.target.Interface()
}

// Type returns the static type of the wrapped value, nil for an untyped nil.
func (p *ValueProxy) Type() reflect.Type {
	if !p.target.IsValid() {
		return nil
	}
	return p.target.Type()
}

// IsNil reports whether the wrapped value is absent.
func (p *ValueProxy) IsNil() bool {
	return isNilValue(p.target)
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Get returns the live value of the member name.
func (p *ValueProxy) Get(name string) (any, error) {
	v, err := p.memberValue(name)
	if err != nil {
		return nil, err
	}
	return interfaceOf(v), nil
}

// memberValue resolves name to a reflect.Value. Struct fields are returned
// addressable whenever the target is a pointer.
func (p *ValueProxy) memberValue(name string) (reflect.Value, error) {
	t := p.Type()
	if t == nil {
		return reflect.Value{}, &NullTargetError{Op: "get", Member: name}
	}
	if isStringMap(t) {
		if p.IsNil() {
			return reflect.Value{}, &NullTargetError{Op: "get", Member: name, Type: t}
		}
		v := p.target.MapIndex(reflect.ValueOf(name).Convert(t.Key()))
		if !v.IsValid() {
			return reflect.Value{}, &MissingMemberError{Type: t, Member: name}
		}
		return v, nil
	}
	if field, ok := exportedField(t, name); ok {
		if p.IsNil() {
			return reflect.Value{}, &NullTargetError{Op: "get", Member: name, Type: t}
		}
		v, err := structOf(p.target).FieldByIndexErr(field.Index)
		if err != nil {
			return reflect.Value{}, &NullTargetError{Op: "get", Member: name, Type: t}
		}
		return v, nil
	}
	if _, ok := getterMethod(t, name); ok {
		if p.IsNil() {
			return reflect.Value{}, &NullTargetError{Op: "get", Member: name, Type: t}
		}
		return callGetter(p.target.MethodByName(name))
	}
	return reflect.Value{}, &MissingMemberError{Type: t, Member: name}
}

// Set assigns value to the writable member name, coercing value to the
// member's type.
func (p *ValueProxy) Set(name string, value any) error {
	t := p.Type()
	if t == nil {
		return &NullTargetError{Op: "set", Member: name}
	}
	if isStringMap(t) {
		if p.IsNil() {
			return &NullTargetError{Op: "set", Member: name, Type: t}
		}
		coerced, err := p.cfg.converters.Coerce(value, t.Elem())
		if err != nil {
			return err
		}
		p.target.SetMapIndex(reflect.ValueOf(name).Convert(t.Key()), coerced)
		return nil
	}
	if field, ok := exportedField(t, name); ok {
		if p.IsNil() {
			return &NullTargetError{Op: "set", Member: name, Type: t}
		}
		fv, err := structOf(p.target).FieldByIndexErr(field.Index)
		if err != nil {
			return &NullTargetError{Op: "set", Member: name, Type: t}
		}
		if !fv.CanSet() {
			return &MissingMemberError{Type: t, Member: name, Writable: true}
		}
		coerced, err := p.cfg.converters.Coerce(value, field.Type)
		if err != nil {
			return err
		}
		fv.Set(coerced)
		return nil
	}
	if method, ok := setterMethod(t, name); ok {
		if p.IsNil() {
			return &NullTargetError{Op: "set", Member: name, Type: t}
		}
		coerced, err := p.cfg.converters.Coerce(value, method.Type.In(1))
		if err != nil {
			return err
		}
		out := p.target.MethodByName(method.Name).Call([]reflect.Value{coerced})
		_, err = collectResults(out)
		return err
	}
	return &MissingMemberError{Type: t, Member: name, Writable: true}
}

// GetIndexed reads through the default indexer: slice and array positions,
// map keys, or an At method. Index arguments are coerced.
func (p *ValueProxy) GetIndexed(indices ...any) (any, error) {
	v, err := p.indexedValue(indices)
	if err != nil {
		return nil, err
	}
	return interfaceOf(v), nil
}

func (p *ValueProxy) indexedValue(indices []any) (reflect.Value, error) {
	t := p.Type()
	if t == nil {
		return reflect.Value{}, &NullTargetError{Op: "index"}
	}
	switch indexKind(t) {
	case reflect.Slice, reflect.Array:
		if len(indices) != 1 {
			return reflect.Value{}, noIndexer(t, len(indices))
		}
		if p.IsNil() {
			return reflect.Value{}, &NullTargetError{Op: "index", Type: t}
		}
		i, err := p.cfg.converters.Coerce(indices[0], intType)
		if err != nil {
			return reflect.Value{}, err
		}
		seq := sequenceOf(p.target)
		pos := int(i.Int())
		if pos < 0 || pos >= seq.Len() {
			return reflect.Value{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, pos, seq.Len())
		}
		return seq.Index(pos), nil
	case reflect.Map:
		if len(indices) != 1 {
			return reflect.Value{}, noIndexer(t, len(indices))
		}
		if p.IsNil() {
			return reflect.Value{}, &NullTargetError{Op: "index", Type: t}
		}
		m := sequenceOf(p.target)
		key, err := p.cfg.converters.Coerce(indices[0], m.Type().Key())
		if err != nil {
			return reflect.Value{}, err
		}
		v := m.MapIndex(key)
		if !v.IsValid() {
			return reflect.Value{}, &MissingMemberError{Type: t, Member: fmt.Sprint(key.Interface())}
		}
		return v, nil
	}
	method, ok := t.MethodByName("At")
	if !ok || method.Type.IsVariadic() || method.Type.NumIn()-1 != len(indices) {
		return reflect.Value{}, noIndexer(t, len(indices))
	}
	if p.IsNil() {
		return reflect.Value{}, &NullTargetError{Op: "index", Type: t}
	}
	args := make([]reflect.Value, len(indices))
	for i, index := range indices {
		arg, err := p.cfg.converters.Coerce(index, method.Type.In(i+1))
		if err != nil {
			return reflect.Value{}, err
		}
		args[i] = arg
	}
	return callGetter(p.target.MethodByName("At"), args...)
}

// SetIndexed writes value through the default indexer. Maps gain the key when
// it is missing; slice and array positions must exist.
func (p *ValueProxy) SetIndexed(value any, indices ...any) error {
	t := p.Type()
	if t == nil {
		return &NullTargetError{Op: "set index"}
	}
	switch indexKind(t) {
	case reflect.Slice, reflect.Array:
		if len(indices) != 1 {
			return noIndexer(t, len(indices))
		}
		if p.IsNil() {
			return &NullTargetError{Op: "set index", Type: t}
		}
		seq := sequenceOf(p.target)
		i, err := p.cfg.converters.Coerce(indices[0], intType)
		if err != nil {
			return err
		}
		pos := int(i.Int())
		if pos < 0 || pos >= seq.Len() {
			return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, pos, seq.Len())
		}
		elem := seq.Index(pos)
		if !elem.CanSet() {
			return &MissingMemberError{Type: t, Member: fmt.Sprintf("[%d]", pos), Writable: true}
		}
		coerced, err := p.cfg.converters.Coerce(value, elem.Type())
		if err != nil {
			return err
		}
		elem.Set(coerced)
		return nil
	case reflect.Map:
		if len(indices) != 1 {
			return noIndexer(t, len(indices))
		}
		if p.IsNil() {
			return &NullTargetError{Op: "set index", Type: t}
		}
		m := sequenceOf(p.target)
		key, err := p.cfg.converters.Coerce(indices[0], m.Type().Key())
		if err != nil {
			return err
		}
		coerced, err := p.cfg.converters.Coerce(value, m.Type().Elem())
		if err != nil {
			return err
		}
		m.SetMapIndex(key, coerced)
		return nil
	}
	return noIndexer(t, len(indices))
}

// Invoke calls the method name with positional arguments. Arguments are not
// coerced. A trailing error result is returned as the error; a single
// remaining result is returned as-is and several come back as []any.
func (p *ValueProxy) Invoke(name string, args ...any) (any, error) {
	t := p.Type()
	if t == nil {
		return nil, &NullTargetError{Op: "invoke", Member: name}
	}
	method, ok := t.MethodByName(name)
	if !ok {
		return nil, &MissingMemberError{Type: t, Member: name}
	}
	if p.IsNil() {
		return nil, &NullTargetError{Op: "invoke", Member: name, Type: t}
	}
	in, err := methodArgs(t, method, args)
	if err != nil {
		return nil, err
	}
	return collectResults(p.target.MethodByName(name).Call(in))
}

func methodArgs(t reflect.Type, method reflect.Method, args []any) ([]reflect.Value, error) {
	mt := method.Type
	params := mt.NumIn() - 1
	if mt.IsVariadic() {
		if len(args) < params-1 {
			return nil, &MissingMemberError{Type: t, Member: method.Name, Err: fmt.Errorf("expects at least %d arguments, got %d", params-1, len(args))}
		}
	} else if len(args) != params {
		return nil, &MissingMemberError{Type: t, Member: method.Name, Err: fmt.Errorf("expects %d arguments, got %d", params, len(args))}
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if mt.IsVariadic() && i >= params-1 {
			paramType = mt.In(params).Elem()
		} else {
			paramType = mt.In(i + 1)
		}
		v, err := assignable(arg, paramType)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	return in, nil
}

// MemberNames yields the member names of the target's type: fields, then
// methods, or the sorted keys of a string-keyed map. Each range over the
// sequence starts again from the beginning.
func (p *ValueProxy) MemberNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		t := p.Type()
		if t == nil {
			return
		}
		if isStringMap(t) {
			if p.IsNil() {
				return
			}
			keys := make([]string, 0, p.target.Len())
			for _, key := range p.target.MapKeys() {
				keys = append(keys, key.String())
			}
			slices.Sort(keys)
			for _, key := range keys {
				if !yield(key) {
					return
				}
			}
			return
		}
		if st := structType(t); st != nil {
			for _, field := range reflect.VisibleFields(st) {
				if !field.IsExported() {
					continue
				}
				if !yield(field.Name) {
					return
				}
			}
		}
		for i := 0; i < t.NumMethod(); i++ {
			if !yield(t.Method(i).Name) {
				return
			}
		}
	}
}

var hashSeed = maphash.MakeSeed()

// Equal compares the target with other, unwrapping other when it is a proxy.
// Comparable targets use ==, everything else reflect.DeepEqual.
func (p *ValueProxy) Equal(other any) bool {
	other = unwrapProxy(other)
	if !p.target.IsValid() {
		return other == nil
	}
	if other == nil {
		return p.IsNil()
	}
	ov := reflect.ValueOf(other)
	if ov.Type() == p.target.Type() && p.target.Comparable() && ov.Comparable() {
		return p.target.Interface() == other
	}
	return reflect.DeepEqual(p.target.Interface(), other)
}

// Hash returns a hash consistent with Equal for comparable targets and with
// identity for maps. Other values hash their text form.
func (p *ValueProxy) Hash() uint64 {
	if !p.target.IsValid() {
		return 0
	}
	if p.target.Comparable() {
		return maphash.Comparable(hashSeed, p.target.Interface())
	}
	if p.target.Kind() == reflect.Map {
		return maphash.Comparable(hashSeed, p.target.Pointer())
	}
	return maphash.String(hashSeed, p.String())
}

// String formats the target.
func (p *ValueProxy) String() string {
	if !p.target.IsValid() {
		return "<nil>"
	}
	return fmt.Sprint(p.target.Interface())
}

func interfaceOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		return v.Elem().Interface()
	}
	return v.Interface()
}

func isStringMap(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func structOf(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Pointer {
		return v.Elem()
	}
	return v
}

// indexKind returns the kind used for indexing t, looking through one level
// of pointer so *[]T and *[N]T index like their targets.
func indexKind(t reflect.Type) reflect.Kind {
	if t.Kind() == reflect.Pointer {
		switch t.Elem().Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return t.Elem().Kind()
		}
		return reflect.Pointer
	}
	return t.Kind()
}

func sequenceOf(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Pointer {
		return v.Elem()
	}
	return v
}

func exportedField(t reflect.Type, name string) (reflect.StructField, bool) {
	st := structType(t)
	if st == nil || name == "" {
		return reflect.StructField{}, false
	}
	field, ok := st.FieldByName(name)
	if !ok || !field.IsExported() {
		return reflect.StructField{}, false
	}
	return field, true
}

// getterMethod finds a zero-argument method returning T or (T, error).
func getterMethod(t reflect.Type, name string) (reflect.Method, bool) {
	method, ok := t.MethodByName(name)
	if !ok {
		return reflect.Method{}, false
	}
	mt := method.Type
	if mt.NumIn() != 1 {
		return reflect.Method{}, false
	}
	switch mt.NumOut() {
	case 1:
		return method, mt.Out(0) != errorType
	case 2:
		return method, mt.Out(1) == errorType
	}
	return reflect.Method{}, false
}

// setterMethod finds Set<Name>(v) returning nothing or an error.
func setterMethod(t reflect.Type, name string) (reflect.Method, bool) {
	if name == "" {
		return reflect.Method{}, false
	}
	method, ok := t.MethodByName("Set" + strings.ToUpper(name[:1]) + name[1:])
	if !ok {
		return reflect.Method{}, false
	}
	mt := method.Type
	if mt.NumIn() != 2 || mt.IsVariadic() {
		return reflect.Method{}, false
	}
	if mt.NumOut() == 0 || (mt.NumOut() == 1 && mt.Out(0) == errorType) {
		return method, true
	}
	return reflect.Method{}, false
}

func callGetter(method reflect.Value, args ...reflect.Value) (reflect.Value, error) {
	out := method.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	return out[0], nil
}

func collectResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return interfaceOf(out[0]), nil
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = interfaceOf(v)
	}
	return results, nil
}

func noIndexer(t reflect.Type, args int) error {
	return &MissingMemberError{Type: t, Member: "[]", Err: fmt.Errorf("%w for %d arguments", ErrNoIndexer, args)}
}
