package observable

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	errorType           = reflect.TypeFor[error]()
	stringType          = reflect.TypeFor[string]()
	intType             = reflect.TypeFor[int]()
	durationType        = reflect.TypeFor[time.Duration]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// ConvertFunc builds a target value from a source value.
type ConvertFunc func(value any) (any, error)

type converterKey struct {
	from reflect.Type
	to   reflect.Type
}

// ConverterRegistry holds type-specific converters consulted during
// coercion before the built-in conversions.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[converterKey]ConvertFunc
}

var defaultConverters = NewConverterRegistry()

// NewConverterRegistry constructs an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{converters: make(map[converterKey]ConvertFunc)}
}

// DefaultConverters returns the process-wide registry used when no
// WithConverters option is given.
func DefaultConverters() *ConverterRegistry {
	return defaultConverters
}

// Register stores fn as the converter from values of type from into to.
// Registering string as the source type makes fn a text converter.
func (r *ConverterRegistry) Register(from, to reflect.Type, fn ConvertFunc) error {
	if from == nil || to == nil {
		return fmt.Errorf("observable: converter types must not be nil")
	}
	if fn == nil {
		return fmt.Errorf("observable: converter %s -> %s is nil", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.converters == nil {
		r.converters = make(map[converterKey]ConvertFunc)
	}
	r.converters[converterKey{from: from, to: to}] = fn
	return nil
}

// RegisterConverter registers a typed converter from S to T on r.
func RegisterConverter[S, T any](r *ConverterRegistry, fn func(S) (T, error)) error {
	if fn == nil {
		return fmt.Errorf("observable: converter %s -> %s is nil", reflect.TypeFor[S](), reflect.TypeFor[T]())
	}
	return r.Register(reflect.TypeFor[S](), reflect.TypeFor[T](), func(value any) (any, error) {
		return fn(value.(S))
	})
}

// Clone returns a shallow copy of the registry.
func (r *ConverterRegistry) Clone() *ConverterRegistry {
	if r == nil {
		return NewConverterRegistry()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewConverterRegistry()
	for key, fn := range r.converters {
		clone.converters[key] = fn
	}
	return clone
}

func (r *ConverterRegistry) lookup(from, to reflect.Type) (ConvertFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.converters[converterKey{from: from, to: to}]; ok {
		return fn, true
	}
	for key, fn := range r.converters {
		if key.to == to && key.from.Kind() == reflect.Interface && from.Implements(key.from) {
			return fn, true
		}
	}
	return nil, false
}

// Coerce converts value into target. A value that already satisfies the
// target is used as-is; proxies are unwrapped when the target does not accept
// them. Otherwise a converter building target directly from the value is
// tried, then one building it from the value's text. ConversionError is
// returned when no path exists.
func (r *ConverterRegistry) Coerce(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		if nillable(target) {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, &ConversionError{To: target}
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if raw, ok := proxyTarget(value); ok {
		return r.Coerce(raw, target)
	}
	if out, ok, err := r.convertDirect(rv, target); ok {
		return out, err
	}
	if out, ok, err := r.convertText(rv, target); ok {
		return out, err
	}
	return reflect.Value{}, &ConversionError{From: rv.Type(), To: target, Value: value}
}

func (r *ConverterRegistry) convertDirect(rv reflect.Value, target reflect.Type) (reflect.Value, bool, error) {
	if fn, ok := r.lookup(rv.Type(), target); ok {
		out, err := r.apply(fn, rv, target)
		return out, true, err
	}
	if rv.Kind() == target.Kind() && rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), true, nil
	}
	if target.Kind() == reflect.Pointer && rv.Kind() != reflect.Pointer {
		elem, err := r.Coerce(rv.Interface(), target.Elem())
		if err != nil {
			return reflect.Value{}, true, &ConversionError{From: rv.Type(), To: target, Value: rv.Interface(), Err: err}
		}
		boxed := reflect.New(target.Elem())
		boxed.Elem().Set(elem)
		return boxed, true, nil
	}
	return reflect.Value{}, false, nil
}

func (r *ConverterRegistry) convertText(rv reflect.Value, target reflect.Type) (reflect.Value, bool, error) {
	text := fmt.Sprint(rv.Interface())
	fail := func(err error) (reflect.Value, bool, error) {
		return reflect.Value{}, true, &ConversionError{From: rv.Type(), To: target, Value: rv.Interface(), Err: err}
	}
	if fn, ok := r.lookup(stringType, target); ok {
		out, err := r.apply(fn, reflect.ValueOf(text), target)
		return out, true, err
	}
	if target == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(text))
		if err != nil {
			return fail(err)
		}
		return reflect.ValueOf(d), true, nil
	}
	if reflect.PointerTo(target).Implements(textUnmarshalerType) {
		out := reflect.New(target)
		if err := out.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
			return fail(err)
		}
		return out.Elem(), true, nil
	}
	out := reflect.New(target).Elem()
	trimmed := strings.TrimSpace(text)
	switch target.Kind() {
	case reflect.String:
		out.SetString(text)
	case reflect.Bool:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return fail(err)
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(trimmed, 10, target.Bits())
		if err != nil {
			return fail(err)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(trimmed, 10, target.Bits())
		if err != nil {
			return fail(err)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(trimmed, target.Bits())
		if err != nil {
			return fail(err)
		}
		out.SetFloat(f)
	case reflect.Complex64, reflect.Complex128:
		c, err := strconv.ParseComplex(trimmed, target.Bits())
		if err != nil {
			return fail(err)
		}
		out.SetComplex(c)
	default:
		return reflect.Value{}, false, nil
	}
	return out, true, nil
}

func (r *ConverterRegistry) apply(fn ConvertFunc, rv reflect.Value, target reflect.Type) (reflect.Value, error) {
	result, err := fn(rv.Interface())
	if err != nil {
		return reflect.Value{}, &ConversionError{From: rv.Type(), To: target, Value: rv.Interface(), Err: err}
	}
	if result == nil {
		if nillable(target) {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, &ConversionError{From: rv.Type(), To: target, Value: rv.Interface()}
	}
	out := reflect.ValueOf(result)
	if !out.Type().AssignableTo(target) {
		return reflect.Value{}, &ConversionError{
			From:  rv.Type(),
			To:    target,
			Value: rv.Interface(),
			Err:   fmt.Errorf("converter returned %s", out.Type()),
		}
	}
	return out, nil
}

// assignable prepares an invocation argument without coercion: proxies are
// unwrapped when the parameter does not accept them and nil becomes the zero
// value of nillable parameters.
func assignable(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		if nillable(target) {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, &ConversionError{To: target}
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if raw, ok := proxyTarget(value); ok {
		return assignable(raw, target)
	}
	return reflect.Value{}, &ConversionError{From: rv.Type(), To: target, Value: value}
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
