package cache

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the capacity used when a non-positive one is given.
const DefaultCapacity = 256

// Stats are cache counters.
type Stats struct {
	Len           int
	Capacity      int
	TotalCapacity int
	Hits          uint64
	Misses        uint64
	HitRate       float64
	Evictions     uint64
}

func makeStats(length, capacity, total int, hits, misses, evictions uint64) Stats {
	var rate float64
	if n := hits + misses; n > 0 {
		rate = float64(hits) / float64(n)
	}
	return Stats{
		Len:           length,
		Capacity:      capacity,
		TotalCapacity: total,
		Hits:          hits,
		Misses:        misses,
		HitRate:       rate,
		Evictions:     evictions,
	}
}

// Cache is a thread-safe LRU cache.
//
// The eviction callback runs without the cache lock held, after the entry
// has been removed, so it may call back into the cache.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*lruNode[K, V]
	lru      *lruList[K, V]
	capacity int
	onEvict  func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most capacity entries. If capacity <= 0,
// DefaultCapacity is used.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[K, V]{
		entries:  make(map[K]*lruNode[K, V]),
		lru:      newLRUList[K, V](),
		capacity: capacity,
	}
}

// OnEvict sets the callback invoked for entries removed by capacity
// pressure or Purge. It is not invoked by Delete, Set on an existing key,
// or Clear.
func (c *Cache[K, V]) OnEvict(fn func(key K, value V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the value of key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	n, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(n)
	v := n.value
	c.mu.Unlock()
	c.hits.Add(1)
	return v, true
}

// Set stores value under key, evicting the least recently used entries
// when the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	if n, ok := c.entries[key]; ok {
		n.value = value
		c.lru.MoveToFront(n)
		c.mu.Unlock()
		return
	}
	evicted := c.insertLocked(key, value)
	fn := c.onEvict
	c.mu.Unlock()
	notify(fn, evicted)
}

// GetOrCreate returns the cached value of key or stores and returns the
// result of create. create runs with the lock held, so concurrent callers
// never create the same key twice.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	v, _ := c.GetOrTry(key, func() (V, error) { return create(), nil })
	return v
}

// GetOrTry is GetOrCreate for fallible constructors. Errors are returned
// and nothing is cached.
func (c *Cache[K, V]) GetOrTry(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if n, ok := c.entries[key]; ok {
		c.lru.MoveToFront(n)
		v := n.value
		c.mu.Unlock()
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := create()
	if err != nil {
		c.mu.Unlock()
		return v, err
	}
	evicted := c.insertLocked(key, v)
	fn := c.onEvict
	c.mu.Unlock()
	notify(fn, evicted)
	return v, nil
}

func (c *Cache[K, V]) insertLocked(key K, value V) []*lruNode[K, V] {
	var evicted []*lruNode[K, V]
	for c.lru.Len() >= c.capacity {
		old := c.lru.Oldest()
		if old == nil {
			break
		}
		c.lru.Remove(old)
		delete(c.entries, old.key)
		c.evictions.Add(1)
		evicted = append(evicted, old)
	}
	c.entries[key] = c.lru.PushFront(key, value)
	return evicted
}

func notify[K comparable, V any](fn func(K, V), nodes []*lruNode[K, V]) {
	if fn == nil {
		return
	}
	for _, n := range nodes {
		fn(n.key, n.value)
	}
}

// Delete removes key without invoking the eviction callback. It reports
// whether the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(n)
	delete(c.entries, key)
	return true
}

// DeleteFunc removes every entry for which match returns true and passes
// it to the eviction callback. It returns the number of removed entries.
func (c *Cache[K, V]) DeleteFunc(match func(K, V) bool) int {
	c.mu.Lock()
	var removed []*lruNode[K, V]
	for k, n := range c.entries {
		if match(k, n.value) {
			c.lru.Remove(n)
			delete(c.entries, k)
			removed = append(removed, n)
		}
	}
	fn := c.onEvict
	c.mu.Unlock()
	notify(fn, removed)
	return len(removed)
}

// Purge evicts every entry through the eviction callback.
func (c *Cache[K, V]) Purge() {
	c.DeleteFunc(func(K, V) bool { return true })
}

// Clear drops every entry without invoking the eviction callback.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.lru.Clear()
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int { return c.capacity }

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	return makeStats(c.Len(), c.capacity, c.capacity, c.hits.Load(), c.misses.Load(), c.evictions.Load())
}

// ResetStats zeroes the counters.
func (c *Cache[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
