package observable

import (
	"errors"
	"runtime"
	"slices"
	"testing"
)

func TestNotifyProxySetRaisesOneEvent(t *testing.T) {
	c := &customer{Name: "Ada"}
	proxy := NewNotifyProxy(c)
	var events []PropertyChangedEvent
	proxy.SubscribePropertyChanged(func(e PropertyChangedEvent) {
		events = append(events, e)
	})

	if err := proxy.Set("Name", "Ada"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(events) != 1 || events[0].Name != "Name" {
		t.Fatalf("expected one Name event even for an unchanged value, got %+v", events)
	}
	if events[0].Source != proxy {
		t.Fatalf("expected proxy as event source, got %T", events[0].Source)
	}

	if err := proxy.Set("Age", "not a number"); err == nil {
		t.Fatalf("expected conversion failure")
	}
	if len(events) != 1 {
		t.Fatalf("expected no event for a failed set, got %d", len(events))
	}
}

func TestNotifyProxySetIndexedRaisesIndexerProperty(t *testing.T) {
	proxy := NewNotifyProxy(map[string]int{})
	rec := &propertyRecorder{}
	proxy.SubscribePropertyChanged(rec.record)
	if err := proxy.SetIndexed(1, "a"); err != nil {
		t.Fatalf("set indexed: %v", err)
	}
	if !slices.Equal(rec.names, []string{IndexerProperty}) {
		t.Fatalf("expected indexer event, got %v", rec.names)
	}
}

func TestNotifyProxyChildIdentity(t *testing.T) {
	c := &customer{Address: &address{City: "Oslo"}}
	proxy := NewNotifyProxy(c)

	first, err := proxy.Child("Address")
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	second, _ := proxy.Child("Address")
	if first == nil || first != second {
		t.Fatalf("expected the same proxy for the same object, got %p and %p", first, second)
	}
	if first.Target() != any(c.Address) {
		t.Fatalf("expected child proxy to wrap the live object")
	}

	other := NewNotifyProxy(c)
	third, _ := other.Child("Address")
	if third == first {
		t.Fatalf("expected separate caches per proxy")
	}

	if simple, err := proxy.Child("Name"); err != nil || simple != nil {
		t.Fatalf("expected nil child for a simple member, got %v (err=%v)", simple, err)
	}
	if _, err := proxy.Child("Nope"); !errors.Is(err, ErrMissingMember) {
		t.Fatalf("expected ErrMissingMember, got %v", err)
	}
}

func TestNotifyProxyChildWritesAreLive(t *testing.T) {
	c := &customer{Address: &address{}}
	proxy := NewNotifyProxy(c)
	child, _ := proxy.Child("Address")
	rec := &propertyRecorder{}
	child.SubscribePropertyChanged(rec.record)

	if err := child.Set("City", "Lima"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.Address.City != "Lima" {
		t.Fatalf("expected raw object updated, got %q", c.Address.City)
	}
	if !slices.Equal(rec.names, []string{"City"}) {
		t.Fatalf("expected City event on child, got %v", rec.names)
	}
}

func TestNotifyProxyStoresProxiesInInterfaceMembers(t *testing.T) {
	c := &customer{}
	proxy := NewNotifyProxy(c)
	a := &address{}
	if err := proxy.Set("Extra", a); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := c.Extra.(Binding); !ok {
		t.Fatalf("expected proxy stored in interface member, got %T", c.Extra)
	}
	value, err := proxy.Get("Extra")
	if err != nil || value != any(a) {
		t.Fatalf("expected Get to unwrap the stored proxy, got %v (err=%v)", value, err)
	}
	child, _ := proxy.Child("Extra")
	if child != c.Extra {
		t.Fatalf("expected Child to return the stored proxy")
	}

	if err := proxy.Set("Address", NewNotifyProxy(a)); err != nil {
		t.Fatalf("set typed member from proxy: %v", err)
	}
	if c.Address != a {
		t.Fatalf("expected typed member to receive the raw object")
	}
}

func TestNotifyProxyGetIndexedWraps(t *testing.T) {
	items := []*address{{City: "a"}, {City: "b"}}
	proxy := NewNotifyProxy(&items)
	first, err := proxy.GetIndexed(0)
	if err != nil {
		t.Fatalf("get indexed: %v", err)
	}
	if _, ok := first.(Binding); !ok {
		t.Fatalf("expected element proxy, got %T", first)
	}
	again, _ := proxy.GetIndexed(0)
	if again != first {
		t.Fatalf("expected element identity preserved")
	}

	names := NewNotifyProxy(&[]string{"x"})
	if v, _ := names.GetIndexed(0); v != "x" {
		t.Fatalf("expected simple element unchanged, got %v", v)
	}
}

func TestBindSelectsFlavour(t *testing.T) {
	if Bind(nil) != nil || Bind(42) != nil || Bind("s") != nil {
		t.Fatalf("expected nil binding for nil and simple values")
	}
	if _, ok := Bind(&customer{}).(*NotifyProxy); !ok {
		t.Fatalf("expected NotifyProxy for a struct pointer")
	}
	if _, ok := Bind(&[]int{}).(*CollectionProxy); !ok {
		t.Fatalf("expected CollectionProxy for a slice pointer")
	}
	if _, ok := Bind(map[string]int{}).(*CollectionProxy); !ok {
		t.Fatalf("expected CollectionProxy for a map")
	}
	if _, ok := Bind(&bag{}).(*CollectionProxy); !ok {
		t.Fatalf("expected CollectionProxy for an Add/All type")
	}
	boxed := Bind(address{City: "Rome"})
	if boxed == nil {
		t.Fatalf("expected struct value to be boxed")
	}
	if a, ok := boxed.Target().(*address); !ok || a.City != "Rome" {
		t.Fatalf("expected boxed copy, got %#v", boxed.Target())
	}
	existing := Bind(&customer{})
	if Bind(existing) != existing {
		t.Fatalf("expected bindings to pass through Bind")
	}
}

func TestNotifyProxyWrapRule(t *testing.T) {
	proxy := NewNotifyProxy(&customer{})
	if proxy.Wrap(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	if proxy.Wrap(3) != 3 {
		t.Fatalf("expected simple values unchanged")
	}
	var missing *address
	if proxy.Wrap(missing) != nil {
		t.Fatalf("expected typed nil pointer to wrap to nil")
	}
	value := address{}
	if _, ok := proxy.Wrap(value).(address); !ok {
		t.Fatalf("expected value without identity to pass through")
	}
	a := &address{}
	wrapped := proxy.Wrap(a)
	if proxy.Wrap(a) != wrapped || proxy.Wrap(wrapped) != wrapped {
		t.Fatalf("expected cached and existing proxies returned as-is")
	}
}

func TestSubscriptionCancel(t *testing.T) {
	proxy := NewNotifyProxy(&customer{})
	rec := &propertyRecorder{}
	sub := proxy.SubscribePropertyChanged(rec.record)
	if !sub.Active() {
		t.Fatalf("expected active subscription")
	}
	_ = proxy.Set("Name", "a")
	sub.Cancel()
	sub.Cancel()
	_ = proxy.Set("Name", "b")
	if len(rec.names) != 1 {
		t.Fatalf("expected no events after cancel, got %v", rec.names)
	}
}

func TestListenerSetReentrancy(t *testing.T) {
	proxy := NewNotifyProxy(&customer{})
	var order []string
	var second Subscription
	proxy.SubscribePropertyChanged(func(PropertyChangedEvent) {
		order = append(order, "first")
		second.Cancel()
		proxy.SubscribePropertyChanged(func(PropertyChangedEvent) {
			order = append(order, "late")
		})
	})
	second = proxy.SubscribePropertyChanged(func(PropertyChangedEvent) {
		order = append(order, "second")
	})

	proxy.NotifyPropertyChanged("Name")
	if !slices.Equal(order, []string{"first"}) {
		t.Fatalf("expected cancelled handler skipped and late handler deferred, got %v", order)
	}
}

func TestNestedEventsInsideHandlers(t *testing.T) {
	proxy := NewNotifyProxy(&customer{})
	var names []string
	proxy.SubscribePropertyChanged(func(e PropertyChangedEvent) {
		names = append(names, e.Name)
		if e.Name == "Name" {
			proxy.NotifyPropertyChanged("Greeting")
		}
	})
	_ = proxy.Set("Name", "x")
	if !slices.Equal(names, []string{"Name", "Greeting"}) {
		t.Fatalf("expected synchronous nested dispatch, got %v", names)
	}
}

func TestChildSubscriptionSurvivesCollection(t *testing.T) {
	c := &customer{Address: &address{}}
	proxy := NewNotifyProxy(c)
	fired := 0
	func() {
		child, err := proxy.Child("Address")
		if err != nil || child == nil {
			t.Fatalf("expected child proxy, got %v (err=%v)", child, err)
		}
		child.SubscribePropertyChanged(func(PropertyChangedEvent) { fired++ })
	}()
	runtime.GC()
	runtime.GC()

	again, err := proxy.Child("Address")
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if err := again.Set("City", "y"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected the earlier handler to fire once, got %d", fired)
	}
	if n := proxy.cache.len(); n != 1 {
		t.Fatalf("expected one cached child, got %d", n)
	}
}

func TestNotifyProxyCoercesTextToInt(t *testing.T) {
	c := &customer{}
	proxy := NewNotifyProxy(c)
	rec := &propertyRecorder{}
	proxy.SubscribePropertyChanged(rec.record)

	if err := proxy.Set("Age", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.Age != 1 {
		t.Fatalf("expected Age 1, got %d", c.Age)
	}
	if !slices.Equal(rec.names, []string{"Age"}) {
		t.Fatalf("expected exactly one Age event, got %v", rec.names)
	}
}

func TestRereadNestedMemberKeepsSubscriptions(t *testing.T) {
	c := &customer{Address: &address{}}
	proxy := NewNotifyProxy(c)
	first, _ := proxy.Child("Address")
	rec := &propertyRecorder{}
	first.SubscribePropertyChanged(rec.record)

	for _, city := range []string{"Oslo", "Bergen"} {
		child, err := proxy.Child("Address")
		if err != nil {
			t.Fatalf("child: %v", err)
		}
		if err := child.Set("City", city); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if !slices.Equal(rec.names, []string{"City", "City"}) {
		t.Fatalf("expected both writes observed, got %v", rec.names)
	}
	if c.Address.City != "Bergen" {
		t.Fatalf("expected live write, got %q", c.Address.City)
	}
}
