// Package events provides a minimal in-process publish/subscribe primitive.
// Each event kind gets its own Topic with a strongly typed payload, so
// subscriptions are checked at compile time instead of being keyed by a
// runtime event name.
package events

import "sync"

// Topic is a publish/subscribe channel for a single event kind.
//
// Publish invokes subscribers synchronously in subscription order. A
// publisher that serializes its own mutations therefore delivers events in
// exactly the order they were emitted.
type Topic[T any] struct {
	mu   sync.Mutex
	next int
	subs []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes the
// subscription again. Unsubscribing twice is a no-op.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	t.subs = append(t.subs, subscription[T]{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subs {
			if s.id == id {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers v to every subscriber registered at the time of the call.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	subs := make([]subscription[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Clear drops every subscriber. Used at teardown so late events from a dying
// owner reach nobody.
func (t *Topic[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = nil
}
