// Package eventbus is a synchronous broadcast list of subscribers for one event type.
package eventbus

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

type subscriber[T any] struct {
	id      uint64
	handler func(T)
}

// Bus delivers every published value to all current subscribers in the order
// they subscribed. It is safe for concurrent use.
type Bus[T any] struct {
	name string

	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber[T]
}

// New returns an empty bus. The name only appears in log output.
func New[T any](name string) *Bus[T] {
	return &Bus[T]{name: name}
}

// Subscribe registers handler and returns a function that removes it again.
// The returned function may be called any number of times.
func (b *Bus[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber[T]{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = slices.DeleteFunc(slices.Clone(b.subscribers), func(s subscriber[T]) bool {
		return s.id == id
	})
}

// Publish calls every subscriber with value on the calling goroutine. A
// subscriber that panics is logged and skipped; the rest are still called.
func (b *Bus[T]) Publish(value T) {
	b.mu.RLock()
	snapshot := b.subscribers
	b.mu.RUnlock()

	for _, s := range snapshot {
		if recovered := panics.Try(func() { s.handler(value) }); recovered != nil {
			log.Error().
				Str("bus", b.name).
				Uint64("subscriber", s.id).
				Interface("panic", recovered.Value).
				Str("stack", string(recovered.Stack)).
				Msg("Subscriber failed to handle event")
		}
	}
}

func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers)
}
