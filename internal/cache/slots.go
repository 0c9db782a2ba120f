package cache

import "sync"

// Slots binds LRU caches to fixed logical names. Callers that only ever cache
// one aggregate value per query shape ("all notebooks", "all notebooks, full
// projection") use a name instead of building keys themselves.
//
// Each name holds a single value, so capacity only decides whether caching is
// on: 0 stores nothing, any positive value keeps the latest value per name.
//
// Every name carries a generation that Invalidate bumps. A reader that missed
// takes Generation before querying its source and stores with PutIfCurrent,
// so a result computed before a concurrent write is never cached after it.
type Slots[V any] struct {
	capacity int

	mu     sync.RWMutex
	caches map[string]*LRU[string, V]
	gens   map[string]uint64
}

// NewSlots creates a slot set whose per-name caches hold capacity entries.
// Names listed here are allocated up front; other names are allocated on
// first Put.
func NewSlots[V any](capacity int, names ...string) *Slots[V] {
	s := &Slots[V]{
		capacity: capacity,
		caches:   make(map[string]*LRU[string, V], len(names)),
		gens:     make(map[string]uint64, len(names)),
	}
	for _, name := range names {
		s.caches[name] = NewLRU[string, V](capacity)
	}
	return s
}

// slotKey is the well-known key a name's value is stored under.
func slotKey(name string) string {
	return "slot:" + name
}

// Get returns the value cached for name.
func (s *Slots[V]) Get(name string) (V, bool) {
	c := s.lookup(name)
	if c == nil {
		var zero V
		return zero, false
	}
	return c.Get(slotKey(name))
}

// Generation returns the current invalidation generation of name.
func (s *Slots[V]) Generation(name string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[name]
}

// Put stores value under name, replacing any previous value.
func (s *Slots[V]) Put(name string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(name, value)
}

// PutIfCurrent stores value under name only if name has not been
// invalidated since gen was read. It reports whether the value was stored.
func (s *Slots[V]) PutIfCurrent(name string, gen uint64, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[name] != gen {
		return false
	}
	s.putLocked(name, value)
	return true
}

func (s *Slots[V]) putLocked(name string, value V) {
	c := s.caches[name]
	if c == nil {
		c = NewLRU[string, V](s.capacity)
		s.caches[name] = c
	}
	c.Put(slotKey(name), value)
}

// Invalidate drops the value cached for name and advances its generation.
func (s *Slots[V]) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(name)
}

// InvalidateAll drops the values cached for every listed name. Names this
// set has never seen are still advanced, so an in-flight PutIfCurrent for
// them is rejected too.
func (s *Slots[V]) InvalidateAll(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.invalidateLocked(name)
	}
}

func (s *Slots[V]) invalidateLocked(name string) {
	s.gens[name]++
	if c := s.caches[name]; c != nil {
		c.Remove(slotKey(name))
	}
}

func (s *Slots[V]) lookup(name string) *LRU[string, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caches[name]
}
