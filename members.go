package observable

import (
	"reflect"
)

// MemberDescriptor describes one member reachable through a proxy.
type MemberDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	Writable bool   `json:"writable"`
}

// Member kinds reported by Describe.
const (
	MemberField  = "field"
	MemberGetter = "getter"
	MemberKey    = "key"
	MemberMethod = "method"
)

// Describe lists the members of the target in MemberNames order. Setter
// methods make the matching getter writable and are also listed as methods.
func (p *ValueProxy) Describe() []MemberDescriptor {
	t := p.Type()
	if t == nil {
		return []MemberDescriptor{}
	}
	descriptors := []MemberDescriptor{}
	for name := range p.MemberNames() {
		descriptors = append(descriptors, p.describe(t, name))
	}
	return descriptors
}

func (p *ValueProxy) describe(t reflect.Type, name string) MemberDescriptor {
	if isStringMap(t) {
		return MemberDescriptor{Name: name, Type: t.Elem().String(), Kind: MemberKey, Writable: true}
	}
	if field, ok := exportedField(t, name); ok {
		writable := t.Kind() == reflect.Pointer
		if !writable {
			_, writable = setterMethod(t, name)
		}
		return MemberDescriptor{Name: name, Type: field.Type.String(), Kind: MemberField, Writable: writable}
	}
	if method, ok := getterMethod(t, name); ok {
		_, writable := setterMethod(t, name)
		return MemberDescriptor{Name: name, Type: method.Type.Out(0).String(), Kind: MemberGetter, Writable: writable}
	}
	method, _ := t.MethodByName(name)
	return MemberDescriptor{Name: name, Type: method.Type.String(), Kind: MemberMethod}
}
