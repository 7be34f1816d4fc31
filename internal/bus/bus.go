// Package bus is the in-process publish/subscribe channel for transaction
// life-cycle notifications. It decouples the component performing a write
// from every live statement view that must reflect it.
package bus

import (
	"log/slog"
	"sync"

	"statements/internal/core"
)

// Bus broadcasts created/updated/deleted events to any number of
// subscribers. Delivery is synchronous: by the time a Publish call returns,
// every handler subscribed at publish time has run. Events are not buffered;
// a subscriber only sees events published after it subscribed.
//
// Construct one Bus per process and inject it where needed.
type Bus struct {
	created topic[core.Transaction]
	updated topic[core.Transaction]
	deleted topic[string]
}

func New() *Bus {
	return &Bus{}
}

// Subscription is a handle for a registered handler. Cancel is idempotent;
// a cancelled handler receives no further events.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (b *Bus) PublishCreated(tx core.Transaction) { b.created.publish("created", tx) }
func (b *Bus) PublishUpdated(tx core.Transaction) { b.updated.publish("updated", tx) }
func (b *Bus) PublishDeleted(id string)           { b.deleted.publish("deleted", id) }

func (b *Bus) SubscribeCreated(fn func(core.Transaction)) *Subscription {
	return b.created.subscribe(fn)
}

func (b *Bus) SubscribeUpdated(fn func(core.Transaction)) *Subscription {
	return b.updated.subscribe(fn)
}

func (b *Bus) SubscribeDeleted(fn func(id string)) *Subscription {
	return b.deleted.subscribe(fn)
}

type topic[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*entry[T]
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

func (t *topic[T]) subscribe(fn func(T)) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	e := &entry[T]{id: t.nextID, fn: fn}
	t.subs = append(t.subs, e)
	id := e.id
	return &Subscription{cancel: func() { t.unsubscribe(id) }}
}

func (t *topic[T]) unsubscribe(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.subs {
		if e.id == id {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// publish invokes handlers on a snapshot taken under the lock, so a handler
// may subscribe or cancel without deadlocking. A panicking handler must not
// prevent delivery to the remaining subscribers.
func (t *topic[T]) publish(kind string, v T) {
	t.mu.Lock()
	snapshot := make([]*entry[T], len(t.subs))
	copy(snapshot, t.subs)
	t.mu.Unlock()

	for _, e := range snapshot {
		invoke(kind, e.fn, v)
	}
}

func invoke[T any](kind string, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Transaction event handler panicked", "event", kind, "panic", r)
		}
	}()
	fn(v)
}
