// Package notify fans out setting changes to subscribers.
//
// A Bus holds two kinds of subscriptions: global listeners, which receive
// every change together with its key, and keyed listeners, which receive
// changes to one key only. Dispatch calls global listeners first and keyed
// listeners second, each group in subscription order.
//
// Dispatch is synchronous. A Dispatch issued by a listener while another
// dispatch is being delivered is queued and delivered after the current
// cycle completes, so circular listeners cannot recurse without bound.
package notify

import (
	"fmt"
	"slices"

	"github.com/sinmod/sinconfig/internal/logging"
)

// GlobalListener receives every change.
type GlobalListener func(oldValue, newValue any, key string)

// KeyListener receives changes to the key it subscribed to.
type KeyListener func(oldValue, newValue any)

// Change is one queued notification.
type Change struct {
	Key      string
	OldValue any
	NewValue any
}

type entry struct {
	id     uint64
	key    string
	global GlobalListener
	keyed  KeyListener
}

// Subscription represents an active listener registration.
type Subscription struct {
	id  uint64
	bus *Bus
}

// Unsubscribe removes the listener. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.unsubscribe(s.id)
		s.bus = nil
	}
}

// Bus delivers changes to listeners.
//
// Bus is not safe for concurrent use.
type Bus struct {
	globals []entry
	keyed   map[string][]entry
	nextID  uint64

	queue      []Change
	delivering bool

	logger *logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report listener panics.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		keyed: make(map[string][]entry),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrNop(b.logger).WithComponent("notify")
	return b
}

// SubscribeGlobal registers fn for every change.
func (b *Bus) SubscribeGlobal(fn GlobalListener) *Subscription {
	b.nextID++
	b.globals = append(b.globals, entry{id: b.nextID, global: fn})
	return &Subscription{id: b.nextID, bus: b}
}

// SubscribeKey registers fn for changes to key.
func (b *Bus) SubscribeKey(key string, fn KeyListener) *Subscription {
	b.nextID++
	b.keyed[key] = append(b.keyed[key], entry{id: b.nextID, key: key, keyed: fn})
	return &Subscription{id: b.nextID, bus: b}
}

// Dispatch delivers a change to global listeners and then to the listeners
// of key.
func (b *Bus) Dispatch(key string, oldValue, newValue any) {
	b.queue = append(b.queue, Change{Key: key, OldValue: oldValue, NewValue: newValue})
	if b.delivering {
		return
	}

	b.delivering = true
	defer func() { b.delivering = false }()

	for len(b.queue) > 0 {
		c := b.queue[0]
		b.queue = b.queue[1:]
		b.deliver(c)
	}
}

// Clear drops every subscription and any queued change.
func (b *Bus) Clear() {
	b.globals = nil
	b.keyed = make(map[string][]entry)
	b.queue = nil
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	n := len(b.globals)
	for _, entries := range b.keyed {
		n += len(entries)
	}
	return n
}

// deliver snapshots the listener lists so subscriptions added or removed by
// a listener take effect from the next change.
func (b *Bus) deliver(c Change) {
	globals := slices.Clone(b.globals)
	keyed := slices.Clone(b.keyed[c.Key])

	for _, e := range globals {
		b.call(c, e)
	}
	for _, e := range keyed {
		b.call(c, e)
	}
}

func (b *Bus) call(c Change, e entry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked", "key", c.Key, "panic", fmt.Sprint(r))
		}
	}()

	if e.global != nil {
		e.global(c.OldValue, c.NewValue, c.Key)
		return
	}
	e.keyed(c.OldValue, c.NewValue)
}

func (b *Bus) unsubscribe(id uint64) {
	b.globals = slices.DeleteFunc(b.globals, func(e entry) bool { return e.id == id })
	for key, entries := range b.keyed {
		entries = slices.DeleteFunc(entries, func(e entry) bool { return e.id == id })
		if len(entries) == 0 {
			delete(b.keyed, key)
		} else {
			b.keyed[key] = entries
		}
	}
}
