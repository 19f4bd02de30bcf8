package observable

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

var propertyNotifierType = reflect.TypeFor[PropertyNotifier]()

// Trace records how a dotted member path resolved against a source, one
// entry per segment.
type Trace struct {
	Path     string         `json:"path"`
	Segments []SegmentTrace `json:"segments"`
}

// SegmentTrace details the resolution of one path segment.
type SegmentTrace struct {
	Name string `json:"name"`
	// Owner is the type the segment was looked up on.
	Owner string `json:"owner,omitempty"`
	// Type is the member's declared type.
	Type string `json:"type,omitempty"`
	// Dynamic is set when Owner came from the live value because the
	// declared type was an interface.
	Dynamic bool `json:"dynamic,omitempty"`
	// Notifier is set when Owner raises property change events itself.
	Notifier bool `json:"notifier,omitempty"`
	Found    bool `json:"found"`
	// Unverified marks segments behind a nil dynamic value.
	Unverified bool `json:"unverified,omitempty"`
}

// Resolved reports whether every segment was found or left unverified.
func (t Trace) Resolved() bool {
	for _, segment := range t.Segments {
		if !segment.Found && !segment.Unverified {
			return false
		}
	}
	return len(t.Segments) > 0
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// ResolvePath checks that every segment of path names a readable member,
// walking declared types and falling back to live values where a member is
// declared as an interface. A nil value behind an interface leaves the rest
// of the path unverified, which is not an error.
func ResolvePath(source any, path string) (Trace, error) {
	segments := splitPath(path)
	trace := Trace{Path: path, Segments: make([]SegmentTrace, 0, len(segments))}
	if len(segments) == 0 {
		return trace, fmt.Errorf("observable: empty member path %q", path)
	}
	live := unwrapProxy(source)
	declared := reflect.TypeOf(live)
	for i, name := range segments {
		segment := SegmentTrace{Name: name}
		t := declared
		if t == nil || t.Kind() == reflect.Interface {
			t = nil
			if live != nil {
				t = reflect.TypeOf(live)
				segment.Dynamic = true
			}
		}
		if t == nil {
			for _, rest := range segments[i:] {
				trace.Segments = append(trace.Segments, SegmentTrace{Name: rest, Unverified: true})
			}
			return trace, nil
		}
		segment.Owner = t.String()
		segment.Notifier = t.Implements(propertyNotifierType)
		member, ok := memberType(t, name)
		if !ok {
			trace.Segments = append(trace.Segments, segment)
			return trace, &MissingMemberError{Type: t, Member: name}
		}
		segment.Found = true
		segment.Type = member.String()
		trace.Segments = append(trace.Segments, segment)

		declared = member
		live = liveMember(live, name)
	}
	return trace, nil
}

func liveMember(owner any, name string) any {
	if owner == nil {
		return nil
	}
	value, err := newValueProxy(reflect.ValueOf(owner), defaultConfig()).Get(name)
	if err != nil {
		return nil
	}
	return unwrapProxy(value)
}

// memberType returns the declared type of a readable member of t.
func memberType(t reflect.Type, name string) (reflect.Type, bool) {
	if isStringMap(t) {
		return t.Elem(), true
	}
	if field, ok := exportedField(t, name); ok {
		return field.Type, true
	}
	if method, ok := getterMethod(t, name); ok {
		return method.Type.Out(0), true
	}
	return nil, false
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil
		}
		segments = append(segments, part)
	}
	return segments
}
