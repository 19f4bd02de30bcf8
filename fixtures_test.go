package observable

import (
	"errors"
	"iter"
	"strings"
)

type address struct {
	City string
	Zip  string
}

type customer struct {
	Name    string
	Age     int
	Nick    *string
	Address *address
	Tags    []string
	Meta    map[string]any
	Extra   any
	nick    string
}

func (c *customer) Greeting() string {
	return "hi " + c.Name
}

func (c *customer) Initials() (string, error) {
	if c.Name == "" {
		return "", errors.New("no name")
	}
	return strings.ToUpper(c.Name[:1]), nil
}

func (c *customer) Nickname() string {
	return c.nick
}

func (c *customer) SetNickname(v string) {
	c.nick = v
}

func (c *customer) Rename(prefix string, parts ...string) string {
	c.Name = prefix + " " + strings.Join(parts, " ")
	return c.Name
}

func (c *customer) Fail() error {
	return errors.New("failed")
}

type grid struct {
	cells [2][2]int
}

func (g grid) At(row, col int) int {
	return g.cells[row][col]
}

type bag struct {
	items []string
}

func (b *bag) Add(item string) {
	b.items = append(b.items, item)
}

func (b *bag) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, item := range b.items {
			if !yield(item) {
				return
			}
		}
	}
}

type propertyRecorder struct {
	names []string
}

func (r *propertyRecorder) record(event PropertyChangedEvent) {
	r.names = append(r.names, event.Name)
}

type collectionRecorder struct {
	events []CollectionChangedEvent
}

func (r *collectionRecorder) record(event CollectionChangedEvent) {
	r.events = append(r.events, event)
}
