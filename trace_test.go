package observable

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolvePathStatic(t *testing.T) {
	trace, err := ResolvePath(&customer{}, "Address.City")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !trace.Resolved() || len(trace.Segments) != 2 {
		t.Fatalf("unexpected trace %+v", trace)
	}
	first, second := trace.Segments[0], trace.Segments[1]
	if first.Owner != "*observable.customer" || first.Type != "*observable.address" || first.Dynamic {
		t.Fatalf("unexpected first segment %+v", first)
	}
	if second.Owner != "*observable.address" || second.Type != "string" || !second.Found {
		t.Fatalf("unexpected second segment %+v", second)
	}
}

func TestResolvePathDynamic(t *testing.T) {
	trace, err := ResolvePath(&customer{}, "Extra.City.Length")
	if err != nil {
		t.Fatalf("expected nil interface member accepted, got %v", err)
	}
	if !trace.Resolved() || !trace.Segments[1].Unverified || !trace.Segments[2].Unverified {
		t.Fatalf("expected remaining segments unverified, got %+v", trace.Segments)
	}

	trace, err = ResolvePath(&customer{Extra: &address{}}, "Extra.City")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !trace.Segments[1].Dynamic || trace.Segments[1].Owner != "*observable.address" {
		t.Fatalf("expected live type used, got %+v", trace.Segments[1])
	}

	_, err = ResolvePath(&customer{Extra: &address{}}, "Extra.Street")
	if !errors.Is(err, ErrMissingMember) {
		t.Fatalf("expected live value checked, got %v", err)
	}
}

func TestResolvePathGettersMapsAndNotifiers(t *testing.T) {
	trace, err := ResolvePath(NewNotifyProxy(&customer{}), "Greeting")
	if err != nil || trace.Segments[0].Type != "string" || trace.Segments[0].Notifier {
		t.Fatalf("expected getter on raw target, got %+v (err=%v)", trace, err)
	}
	if _, err := ResolvePath(&customer{}, "Meta.anything"); err != nil {
		t.Fatalf("expected string map keys accepted, got %v", err)
	}
	trace, err = ResolvePath(&person{}, "FullName")
	if err != nil || !trace.Segments[0].Notifier {
		t.Fatalf("expected host owner flagged as notifier, got %+v (err=%v)", trace, err)
	}
}

func TestResolvePathFailures(t *testing.T) {
	trace, err := ResolvePath(&customer{}, "Address.Street")
	if !errors.Is(err, ErrMissingMember) {
		t.Fatalf("expected ErrMissingMember, got %v", err)
	}
	if trace.Resolved() || len(trace.Segments) != 2 || trace.Segments[1].Found {
		t.Fatalf("expected failing segment recorded, got %+v", trace)
	}
	for _, path := range []string{"", "Address..City", " . "} {
		if _, err := ResolvePath(&customer{}, path); err == nil {
			t.Fatalf("expected %q rejected", path)
		}
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	trace, err := ResolvePath(&customer{}, "Extra.City")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if !reflect.DeepEqual(decoded, trace) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", trace, decoded)
	}
	if _, err := TraceFromJSON([]byte("{")); err == nil {
		t.Fatalf("expected malformed payload rejected")
	}
}
