package observable

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"
)

func bindStrings(t *testing.T, values ...string) (*[]string, *CollectionProxy, *collectionRecorder) {
	t.Helper()
	items := &values
	c, ok := Bind(items).(*CollectionProxy)
	if !ok {
		t.Fatalf("expected collection proxy")
	}
	rec := &collectionRecorder{}
	c.SubscribeCollectionChanged(rec.record)
	return items, c, rec
}

func expectEvent(t *testing.T, event CollectionChangedEvent, action CollectionAction, index int, items ...any) {
	t.Helper()
	if event.Action != action || event.Index != index {
		t.Fatalf("expected %s@%d, got %s@%d", action, index, event.Action, event.Index)
	}
	if len(items) == 0 {
		items = []any{}
	}
	if !reflect.DeepEqual(event.Items, items) {
		t.Fatalf("expected items %v, got %v", items, event.Items)
	}
}

func TestCollectionAdd(t *testing.T) {
	items, c, rec := bindStrings(t, "a")
	if err := c.Add("b"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !slices.Equal(*items, []string{"a", "b"}) {
		t.Fatalf("expected raw slice updated, got %v", *items)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	expectEvent(t, rec.events[0], CollectionAdded, NoIndex, "b")
	if rec.events[0].Source != c {
		t.Fatalf("expected collection proxy as source")
	}
}

func TestCollectionAddRejectsWrongType(t *testing.T) {
	_, c, rec := bindStrings(t)
	if err := c.Add(5); !errors.Is(err, ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no event for a failed add")
	}
}

func TestCollectionAddRangeAndInsertRange(t *testing.T) {
	items, c, rec := bindStrings(t, "a")
	if err := c.AddRange("b", "c"); err != nil {
		t.Fatalf("add range: %v", err)
	}
	if err := c.InsertRange(0, "x", "y"); err != nil {
		t.Fatalf("insert range: %v", err)
	}
	if !slices.Equal(*items, []string{"x", "y", "a", "b", "c"}) {
		t.Fatalf("unexpected contents %v", *items)
	}
	expectEvent(t, rec.events[0], CollectionAdded, NoIndex, "b", "c")
	expectEvent(t, rec.events[1], CollectionAdded, 0, "x", "y")
}

func TestCollectionInsert(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "c")
	if err := c.Insert(1, "b"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !slices.Equal(*items, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected contents %v", *items)
	}
	expectEvent(t, rec.events[0], CollectionAdded, 1, "b")

	if err := c.Insert(9, "z"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected no event for a failed insert")
	}
}

func TestCollectionClear(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "b")
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(*items) != 0 {
		t.Fatalf("expected empty slice, got %v", *items)
	}
	expectEvent(t, rec.events[0], CollectionRemoved, NoIndex, "a", "b")
}

func TestCollectionRemove(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "b", "a")
	removed, err := c.Remove("a")
	if err != nil || !removed {
		t.Fatalf("expected first match removed, got %v (err=%v)", removed, err)
	}
	if !slices.Equal(*items, []string{"b", "a"}) {
		t.Fatalf("unexpected contents %v", *items)
	}
	removed, err = c.Remove("zz")
	if err != nil || removed {
		t.Fatalf("expected no match, got %v (err=%v)", removed, err)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected a Removed event for each call, got %d", len(rec.events))
	}
	expectEvent(t, rec.events[0], CollectionRemoved, NoIndex, "a")
	expectEvent(t, rec.events[1], CollectionRemoved, NoIndex, "zz")
}

func TestCollectionRemoveAt(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "b", "c")
	if err := c.RemoveAt(5); err != nil {
		t.Fatalf("remove at out of range: %v", err)
	}
	if len(rec.events) != 0 || len(*items) != 3 {
		t.Fatalf("expected out-of-range RemoveAt to change nothing, got %v and %d events", *items, len(rec.events))
	}
	if err := c.RemoveAt(1); err != nil {
		t.Fatalf("remove at: %v", err)
	}
	if !slices.Equal(*items, []string{"a", "c"}) {
		t.Fatalf("unexpected contents %v", *items)
	}
	expectEvent(t, rec.events[0], CollectionRemoved, NoIndex, "b")
}

func TestCollectionRemoveRange(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "b", "c")
	if err := c.RemoveRange(1, 10); err != nil {
		t.Fatalf("remove range: %v", err)
	}
	if !slices.Equal(*items, []string{"a"}) {
		t.Fatalf("expected clamped removal, got %v", *items)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected one event per removed index, got %d", len(rec.events))
	}
	expectEvent(t, rec.events[0], CollectionRemoved, NoIndex, "b")
	expectEvent(t, rec.events[1], CollectionRemoved, NoIndex, "c")
}

func TestCollectionRemoveRangeHugeCount(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "b", "c")
	if err := c.RemoveRange(1, math.MaxInt); err != nil {
		t.Fatalf("remove range: %v", err)
	}
	if !slices.Equal(*items, []string{"a"}) {
		t.Fatalf("expected tail removed, got %v", *items)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected two Removed events, got %d", len(rec.events))
	}
	expectEvent(t, rec.events[1], CollectionRemoved, NoIndex, "c")
}

func TestClampRange(t *testing.T) {
	cases := []struct {
		start, count, n int
		lo, hi          int
	}{
		{start: 0, count: 2, n: 3, lo: 0, hi: 2},
		{start: 1, count: math.MaxInt, n: 3, lo: 1, hi: 3},
		{start: -1, count: 2, n: 3, lo: 0, hi: 1},
		{start: math.MinInt, count: math.MaxInt, n: 3, lo: 0, hi: 0},
		{start: 3, count: 1, n: 3, lo: 0, hi: 0},
		{start: 0, count: -4, n: 3, lo: 0, hi: 0},
	}
	for _, tc := range cases {
		lo, hi := clampRange(tc.start, tc.count, tc.n)
		if lo != tc.lo || hi != tc.hi {
			t.Fatalf("clampRange(%d, %d, %d) = [%d, %d), want [%d, %d)", tc.start, tc.count, tc.n, lo, hi, tc.lo, tc.hi)
		}
	}
}

type taggedRow struct {
	Tags any
}

func TestCollectionRemoveDynamicUncomparable(t *testing.T) {
	rows := &[]taggedRow{{Tags: []string{"a"}}, {Tags: []string{"b"}}}
	c := Bind(rows).(*CollectionProxy)
	removed, err := c.Remove(taggedRow{Tags: []string{"b"}})
	if err != nil || !removed {
		t.Fatalf("expected deep-equal removal, got %v (err=%v)", removed, err)
	}
	if len(*rows) != 1 || !reflect.DeepEqual((*rows)[0].Tags, []string{"a"}) {
		t.Fatalf("unexpected rows %v", *rows)
	}
}

func TestCollectionRemoveAllEmitsBeforeAndAfter(t *testing.T) {
	items, c, rec := bindStrings(t, "apple", "kiwi", "avocado")
	n, err := c.RemoveAll(func(item string) bool { return item[0] == 'a' })
	if err != nil || n != 2 {
		t.Fatalf("expected two removals, got %d (err=%v)", n, err)
	}
	if !slices.Equal(*items, []string{"kiwi"}) {
		t.Fatalf("unexpected contents %v", *items)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected Removed then Added, got %d events", len(rec.events))
	}
	expectEvent(t, rec.events[0], CollectionRemoved, NoIndex, "apple", "kiwi", "avocado")
	expectEvent(t, rec.events[1], CollectionAdded, NoIndex, "kiwi")
}

func TestCollectionRemoveAllExpression(t *testing.T) {
	values := &[]int{1, 2, 3, 4}
	c := Bind(values).(*CollectionProxy)
	n, err := c.RemoveAll("item > 2")
	if err != nil {
		t.Fatalf("remove all: %v", err)
	}
	if n != 2 || !slices.Equal(*values, []int{1, 2}) {
		t.Fatalf("expected expression predicate applied, got %v (n=%d)", *values, n)
	}
	if _, err := c.RemoveAll("item +"); err == nil {
		t.Fatalf("expected compile error for a malformed predicate")
	}
	if _, err := c.RemoveAll(42); !errors.Is(err, ErrConversion) {
		t.Fatalf("expected unsupported predicate rejected, got %v", err)
	}
}

func TestCollectionSort(t *testing.T) {
	items, c, rec := bindStrings(t, "c", "a", "b")
	if err := c.Sort(nil); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if !slices.Equal(*items, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order %v", *items)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected Removed then Added, got %d events", len(rec.events))
	}
	expectEvent(t, rec.events[0], CollectionRemoved, NoIndex, "c", "a", "b")
	expectEvent(t, rec.events[1], CollectionAdded, NoIndex, "a", "b", "c")

	if err := c.Sort(func(a, b string) int { return -cmpStrings(a, b) }); err != nil {
		t.Fatalf("sort desc: %v", err)
	}
	if !slices.Equal(*items, []string{"c", "b", "a"}) {
		t.Fatalf("expected typed comparator used, got %v", *items)
	}
}

func cmpStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func TestCollectionSortNaturalNumbers(t *testing.T) {
	values := &[]any{3, 1.5, 2}
	c := Bind(values).(*CollectionProxy)
	if err := c.Sort(nil); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if !reflect.DeepEqual(*values, []any{1.5, 2, 3}) {
		t.Fatalf("expected numeric order across kinds, got %v", *values)
	}
}

func TestCollectionSetIndexed(t *testing.T) {
	items, c, rec := bindStrings(t, "a", "b")
	props := &propertyRecorder{}
	c.SubscribePropertyChanged(props.record)
	if err := c.SetIndexed("z", 1); err != nil {
		t.Fatalf("set indexed: %v", err)
	}
	if (*items)[1] != "z" {
		t.Fatalf("unexpected contents %v", *items)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected Removed then Added, got %d", len(rec.events))
	}
	expectEvent(t, rec.events[0], CollectionRemoved, 1, "b")
	expectEvent(t, rec.events[1], CollectionAdded, 1, "z")
	if !slices.Equal(props.names, []string{IndexerProperty}) {
		t.Fatalf("expected indexer property event, got %v", props.names)
	}
}

func TestCollectionNotifyReset(t *testing.T) {
	items, c, rec := bindStrings(t, "a")
	*items = append(*items, "b")
	c.NotifyReset()
	expectEvent(t, rec.events[0], CollectionReset, NoIndex, "a", "b")
}

func TestCollectionAllIsLive(t *testing.T) {
	items, c, _ := bindStrings(t, "a")
	*items = append(*items, "b")
	if got := slices.Collect(c.All()); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Fatalf("expected live iteration, got %v", got)
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
	var missing *[]string
	empty := newCollectionProxy(reflect.ValueOf(missing), defaultConfig())
	if got := slices.Collect(empty.All()); len(got) != 0 || empty.Len() != 0 {
		t.Fatalf("expected nil collection to be empty, got %v", got)
	}
}

func TestCollectionMap(t *testing.T) {
	counts := map[string]int{"a": 1}
	c := Bind(counts).(*CollectionProxy)
	rec := &collectionRecorder{}
	c.SubscribeCollectionChanged(rec.record)

	if err := c.Add("b", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	removed, err := c.Remove("a")
	if err != nil || !removed {
		t.Fatalf("expected key removed, got %v (err=%v)", removed, err)
	}
	if err := c.Add("c", 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected raw map cleared, got %v", counts)
	}
	expectEvent(t, rec.events[0], CollectionAdded, NoIndex, MapEntry{Key: "b", Value: 2})
	expectEvent(t, rec.events[1], CollectionRemoved, NoIndex, MapEntry{Key: "a", Value: 1})
	expectEvent(t, rec.events[3], CollectionRemoved, NoIndex, MapEntry{Key: "b", Value: 2}, MapEntry{Key: "c", Value: 3})

	if err := c.RemoveAt(0); !errors.Is(err, ErrMissingMember) {
		t.Fatalf("expected positional ops unsupported on maps, got %v", err)
	}
}

func TestCollectionCustomType(t *testing.T) {
	b := &bag{}
	c := Bind(b).(*CollectionProxy)
	rec := &collectionRecorder{}
	c.SubscribeCollectionChanged(rec.record)

	if err := c.Add("x"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !slices.Equal(b.items, []string{"x"}) {
		t.Fatalf("expected the type's own Add to run, got %v", b.items)
	}
	expectEvent(t, rec.events[0], CollectionAdded, NoIndex, "x")
	if c.Len() != 1 || !reflect.DeepEqual(c.Snapshot(), []any{"x"}) {
		t.Fatalf("expected All-based enumeration, got %v", c.Snapshot())
	}
	if err := c.Clear(); !errors.Is(err, ErrMissingMember) {
		t.Fatalf("expected missing operation reported, got %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected no event for a failed operation")
	}
}

func TestCollectionInvokeNonMutatingRaisesNothing(t *testing.T) {
	b := &bag{items: []string{"q"}}
	c := Bind(b).(*CollectionProxy)
	rec := &collectionRecorder{}
	c.SubscribeCollectionChanged(rec.record)
	if _, err := c.Invoke("All"); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %d", len(rec.events))
	}
}
