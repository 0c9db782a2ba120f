package cache

import (
	"container/list"
	"sync"
)

// LRU is a fixed-capacity key/value store with least-recently-used eviction.
//
// A map gives O(1) lookup and a doubly-linked list keeps recency order:
// Front = most recently used, Back = least recently used. Every Get or Put
// moves the touched key to the front; inserting a new key beyond capacity
// removes from the back.
//
// LRU is safe for concurrent use. Get mutates recency, so all operations take
// the same exclusive lock.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU creates a cache holding at most capacity entries.
// A capacity of zero (or less) yields a cache that stores nothing.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value stored for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Put inserts or overwrites key and marks it most recently used.
// When a new key pushes the cache past capacity, the least recently used
// entry is evicted.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	c.evictLocked()
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Len returns the number of stored entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *LRU[K, V]) Capacity() int {
	return c.capacity
}

// Keys returns keys in MRU -> LRU order. It does not affect recency.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[K, V]).key)
	}
	return out
}

func (c *LRU[K, V]) evictLocked() {
	for len(c.items) > c.capacity {
		el := c.order.Back()
		if el == nil {
			return
		}
		c.removeLocked(el.Value.(*entry[K, V]).key)
	}
}

func (c *LRU[K, V]) removeLocked(key K) {
	el, ok := c.items[key]
	if !ok {
		return
	}
	delete(c.items, key)
	c.order.Remove(el)
}
