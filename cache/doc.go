// Package cache provides generic, thread-safe LRU caches for native GPU
// objects that are expensive to create and cheap to look up: compiled
// shader modules, bind groups, samplers.
//
// [Cache] is a single LRU with an eviction callback, so evicted GPU objects
// can be handed to a deferred-destruction queue instead of being dropped.
// [ShardedCache] spreads keys over [DefaultShardCount] Caches to reduce lock
// contention when several goroutines share one cache.
package cache
