package cache

import (
	"encoding/binary"
	"hash/fnv"
)

const (
	// DefaultShardCount is the number of shards of a ShardedCache. It is a
	// power of two so the shard index is a mask of the hash.
	DefaultShardCount = 16

	shardMask = DefaultShardCount - 1
)

// Hasher computes the hash used for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher is the FNV-1a hash of s.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// IntHasher is the FNV-1a hash of the little-endian bytes of i.
func IntHasher(i int) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i)) // #nosec G115 -- bit pattern only
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// Uint64Hasher is the identity hash, for keys that are already hashes or
// evenly spread IDs.
func Uint64Hasher(u uint64) uint64 { return u }

// ShardedCache is a Cache split into DefaultShardCount independently
// locked shards. Capacity and LRU order are per shard.
type ShardedCache[K comparable, V any] struct {
	shards   [DefaultShardCount]*Cache[K, V]
	hasher   Hasher[K]
	capacity int
}

// NewSharded creates a sharded cache with capacity entries per shard. If
// capacity <= 0, DefaultCapacity is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ShardedCache[K, V]{hasher: hasher, capacity: capacity}
	for i := range c.shards {
		c.shards[i] = New[K, V](capacity)
	}
	return c
}

func (c *ShardedCache[K, V]) shard(key K) *Cache[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// OnEvict sets the eviction callback of every shard.
func (c *ShardedCache[K, V]) OnEvict(fn func(key K, value V)) {
	for _, s := range c.shards {
		s.OnEvict(fn)
	}
}

// Get returns the value of key.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) { return c.shard(key).Get(key) }

// Set stores value under key.
func (c *ShardedCache[K, V]) Set(key K, value V) { c.shard(key).Set(key, value) }

// GetOrCreate returns the cached value or the stored result of create.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() V) V {
	return c.shard(key).GetOrCreate(key, create)
}

// GetOrTry is GetOrCreate for fallible constructors.
func (c *ShardedCache[K, V]) GetOrTry(key K, create func() (V, error)) (V, error) {
	return c.shard(key).GetOrTry(key, create)
}

// Delete removes key.
func (c *ShardedCache[K, V]) Delete(key K) bool { return c.shard(key).Delete(key) }

// Purge evicts every entry through the eviction callback.
func (c *ShardedCache[K, V]) Purge() {
	for _, s := range c.shards {
		s.Purge()
	}
}

// Clear drops every entry.
func (c *ShardedCache[K, V]) Clear() {
	for _, s := range c.shards {
		s.Clear()
	}
}

// Len returns the number of entries over all shards.
func (c *ShardedCache[K, V]) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.Len()
	}
	return n
}

// Capacity returns the per-shard capacity.
func (c *ShardedCache[K, V]) Capacity() int { return c.capacity }

// TotalCapacity returns the capacity over all shards.
func (c *ShardedCache[K, V]) TotalCapacity() int { return c.capacity * DefaultShardCount }

// ShardLen returns the entry count of each shard.
func (c *ShardedCache[K, V]) ShardLen() [DefaultShardCount]int {
	var lens [DefaultShardCount]int
	for i, s := range c.shards {
		lens[i] = s.Len()
	}
	return lens
}

// Stats sums the counters of every shard.
func (c *ShardedCache[K, V]) Stats() Stats {
	var length int
	var hits, misses, evictions uint64
	for _, s := range c.shards {
		length += s.Len()
		hits += s.hits.Load()
		misses += s.misses.Load()
		evictions += s.evictions.Load()
	}
	return makeStats(length, c.capacity, c.TotalCapacity(), hits, misses, evictions)
}

// ResetStats zeroes the counters of every shard.
func (c *ShardedCache[K, V]) ResetStats() {
	for _, s := range c.shards {
		s.ResetStats()
	}
}
