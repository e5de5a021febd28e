// Package cache holds a keyed in-memory view of records with an optional
// inclusion predicate. Values failing the predicate are treated as absent.
package cache

import (
	"iter"
	"sync"
	"sync/atomic"
)

// Cache is safe for concurrent use. Each operation is atomic on its own key
// only.
type Cache[K comparable, V any] struct {
	keyOf     func(V) K
	predicate func(V) bool

	entries sync.Map
	size    atomic.Int64
}

type config[V any] struct {
	predicate func(V) bool
}

type Option[V any] func(*config[V])

// WithPredicate makes the cache a filtered view: values are only stored and
// returned while predicate holds for them. The predicate is evaluated at the
// time of each call, so it may depend on the current time.
func WithPredicate[V any](predicate func(V) bool) Option[V] {
	return func(c *config[V]) {
		c.predicate = predicate
	}
}

func New[K comparable, V any](keyOf func(V) K, opts ...Option[V]) *Cache[K, V] {
	cfg := config[V]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cache[K, V]{
		keyOf:     keyOf,
		predicate: cfg.predicate,
	}
}

func (c *Cache[K, V]) accepts(value V) bool {
	return c.predicate == nil || c.predicate(value)
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	stored, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}

	value := stored.(V)
	if !c.accepts(value) {
		return zero, false
	}

	return value, true
}

// Put stores value under its key, replacing any previous value. A value the
// predicate rejects removes the existing entry instead.
func (c *Cache[K, V]) Put(value V) {
	key := c.keyOf(value)

	if !c.accepts(value) {
		c.RemoveKey(key)
		return
	}

	if _, loaded := c.entries.Swap(key, value); !loaded {
		c.size.Add(1)
	}
}

func (c *Cache[K, V]) Remove(value V) {
	c.RemoveKey(c.keyOf(value))
}

func (c *Cache[K, V]) RemoveKey(key K) {
	if _, loaded := c.entries.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// Values lazily walks the stored values that currently pass the predicate.
// Writes made during iteration may or may not be observed.
func (c *Cache[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		c.entries.Range(func(_, stored any) bool {
			value := stored.(V)
			if !c.accepts(value) {
				return true
			}

			return yield(value)
		})
	}
}

// Len is the number of stored entries, including ones the predicate
// currently hides.
func (c *Cache[K, V]) Len() int {
	return int(c.size.Load())
}
