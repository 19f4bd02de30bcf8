package observable

import (
	"reflect"
)

type identityKey struct {
	addr uintptr
	typ  reflect.Type
}

// identityCache maps raw objects to the proxy created for them. Entries are
// held strongly and live as long as the proxy or host that owns the cache,
// so listeners attached to a child proxy survive after the caller drops it.
// A cached proxy keeps its raw object alive, so an address cannot be reused
// while its entry exists.
type identityCache struct {
	entries map[identityKey]Binding
}

func (c *identityCache) lookup(key identityKey) (Binding, bool) {
	proxy, ok := c.entries[key]
	return proxy, ok
}

func (c *identityCache) store(key identityKey, proxy Binding) {
	if c.entries == nil {
		c.entries = make(map[identityKey]Binding)
	}
	c.entries[key] = proxy
}

func (c *identityCache) len() int {
	return len(c.entries)
}

// wrap applies the proxy selection rule to v: nil stays nil, simple values
// and values without identity are returned unchanged, proxies are returned
// as-is, and anything else maps to its cached proxy or a new one.
func (c *identityCache) wrap(v reflect.Value, cfg *config) any {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}
	if v.CanInterface() {
		if _, ok := v.Interface().(rawTargeter); ok {
			return v.Interface()
		}
	}
	if IsSimpleType(v.Type()) {
		if isNilValue(v) {
			return nil
		}
		return v.Interface()
	}
	target, ok := identityOf(v)
	if !ok {
		return v.Interface()
	}
	if target.IsNil() {
		return nil
	}
	key := identityKey{addr: target.Pointer(), typ: target.Type()}
	if existing, ok := c.lookup(key); ok {
		return existing
	}
	created := newBinding(target, cfg)
	c.store(key, created)
	return created
}

// identityOf returns the value whose address identifies v: pointers and maps
// identify themselves, addressable structs, slices and arrays are identified
// by their address.
func identityOf(v reflect.Value) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		return v, true
	case reflect.Struct, reflect.Slice, reflect.Array:
		if v.CanAddr() {
			return v.Addr(), true
		}
	}
	return reflect.Value{}, false
}

// hasCollectionSemantics reports whether t is enumerable and mutable: maps,
// pointers to slices, and types with Add and All methods.
func hasCollectionSemantics(t reflect.Type) bool {
	switch {
	case t.Kind() == reflect.Map:
		return true
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice:
		return true
	}
	if _, ok := t.MethodByName("Add"); !ok {
		return false
	}
	_, ok := seqMethod(t)
	return ok
}

func newBinding(target reflect.Value, cfg *config) Binding {
	if hasCollectionSemantics(target.Type()) {
		return newCollectionProxy(target, cfg)
	}
	return newNotifyProxy(target, cfg)
}
