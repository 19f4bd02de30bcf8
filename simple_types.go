package observable

import (
	"math/big"
	"reflect"
	"sync"
	"time"
)

var simpleTypes = struct {
	mu    sync.RWMutex
	types map[reflect.Type]struct{}
}{
	types: map[reflect.Type]struct{}{
		reflect.TypeFor[time.Time](): {},
		reflect.TypeFor[big.Int]():   {},
		reflect.TypeFor[big.Float](): {},
		reflect.TypeFor[big.Rat]():   {},
	},
}

// RegisterSimpleType marks T as a value that is never proxied, the way
// numbers and strings are. Use it for decimal and other value-like types.
func RegisterSimpleType[T any]() {
	simpleTypes.mu.Lock()
	defer simpleTypes.mu.Unlock()
	simpleTypes.types[reflect.TypeFor[T]()] = struct{}{}
}

// IsSimpleType reports whether values of t pass through wrapping unchanged:
// booleans, numbers (named numeric "enums" included), strings, registered
// value types, and pointers to any of those.
func IsSimpleType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		return IsSimpleType(t.Elem())
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	simpleTypes.mu.RLock()
	defer simpleTypes.mu.RUnlock()
	_, ok := simpleTypes.types[t]
	return ok
}

// IsSimple reports whether value is nil or of a simple type.
func IsSimple(value any) bool {
	if value == nil {
		return true
	}
	return IsSimpleType(reflect.TypeOf(value))
}
