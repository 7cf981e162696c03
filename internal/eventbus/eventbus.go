// Package eventbus provides a small type-safe publish/subscribe bus used
// to broadcast published plans to in-process listeners.
package eventbus

import "sync"

// Bus fans events of type T out to all subscribers. Delivery is
// non-blocking: a subscriber with a full channel misses the event.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan T
	closed bool
}

// New creates a bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Publish sends the event to all subscribers without blocking.
func (b *Bus[T]) Publish(ev T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its channel along with a
// cancel function that removes the subscription.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 8)
	b.mu.Lock()
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			if !b.closed {
				close(ch)
			}
		}
	}
}

// Close closes all subscriber channels.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
