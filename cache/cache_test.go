package cache

import (
	"errors"
	"strconv"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	c := New[string, int](100)
	if c.Capacity() != 100 {
		t.Errorf("expected capacity 100, got %d", c.Capacity())
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
	if got := New[string, int](0).Capacity(); got != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, got)
	}
}

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](10)
	c.Set("key1", 42)

	val, ok := c.Get("key1")
	if !ok || val != 42 {
		t.Errorf("Get(key1) = %d, %v; want 42, true", val, ok)
	}
	if _, ok := c.Get("nonexistent"); ok {
		t.Error("expected nonexistent key to not exist")
	}

	c.Set("key1", 7)
	if val, _ := c.Get("key1"); val != 7 {
		t.Errorf("expected overwritten value 7, got %d", val)
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[string, int](10)
	created := 0
	create := func(v int) func() int {
		return func() int {
			created++
			return v
		}
	}

	if val := c.GetOrCreate("key1", create(100)); val != 100 {
		t.Errorf("expected 100, got %d", val)
	}
	if val := c.GetOrCreate("key1", create(200)); val != 100 {
		t.Errorf("expected cached 100, got %d", val)
	}
	if created != 1 {
		t.Errorf("expected create called once, got %d", created)
	}
}

func TestCacheGetOrTry(t *testing.T) {
	c := New[string, int](10)
	errBoom := errors.New("boom")

	if _, err := c.GetOrTry("k", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed creation was cached")
	}
	v, err := c.GetOrTry("k", func() (int, error) { return 5, nil })
	if err != nil || v != 5 {
		t.Errorf("GetOrTry = %d, %v; want 5, nil", v, err)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New[string, int](10)
	evicted := 0
	c.OnEvict(func(string, int) { evicted++ })
	c.Set("key1", 42)

	if !c.Delete("key1") {
		t.Error("expected Delete to return true for existing key")
	}
	if _, ok := c.Get("key1"); ok {
		t.Error("expected key1 to be deleted")
	}
	if c.Delete("nonexistent") {
		t.Error("expected Delete to return false for non-existing key")
	}
	if evicted != 0 {
		t.Errorf("Delete invoked the eviction callback %d times", evicted)
	}
}

func TestCacheEvictionOrder(t *testing.T) {
	c := New[string, int](3)
	var evicted []string
	c.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // a is now most recently used
	c.Set("d", 4)

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected b evicted, got %v", evicted)
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("expected 1 eviction, got %d", got)
	}
}

func TestCacheEvictionCallbackMayReenter(t *testing.T) {
	c := New[int, int](1)
	c.OnEvict(func(k, _ int) { c.Delete(k) })
	c.Set(1, 1)
	c.Set(2, 2) // would deadlock if the callback ran under the lock
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCacheDeleteFuncAndPurge(t *testing.T) {
	c := New[int, int](10)
	var evicted []int
	c.OnEvict(func(k, _ int) { evicted = append(evicted, k) })
	for i := range 6 {
		c.Set(i, i)
	}

	if n := c.DeleteFunc(func(k, _ int) bool { return k%2 == 0 }); n != 3 {
		t.Fatalf("DeleteFunc removed %d, want 3", n)
	}
	if c.Len() != 3 || len(evicted) != 3 {
		t.Fatalf("Len = %d, evicted = %v", c.Len(), evicted)
	}

	c.Purge()
	if c.Len() != 0 || len(evicted) != 6 {
		t.Errorf("after Purge: Len = %d, evicted = %v", c.Len(), evicted)
	}
}

func TestCacheClear(t *testing.T) {
	c := New[string, int](10)
	evicted := 0
	c.OnEvict(func(string, int) { evicted++ })
	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected 0 entries after clear, got %d", c.Len())
	}
	if evicted != 0 {
		t.Errorf("Clear invoked the eviction callback %d times", evicted)
	}
	c.Set("key3", 3)
	if v, ok := c.Get("key3"); !ok || v != 3 {
		t.Error("cache unusable after Clear")
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string, int](10)
	c.Set("key1", 1)
	c.Get("key1")
	c.Get("key1")
	c.Get("missing")

	stats := c.Stats()
	if stats.Len != 1 || stats.Capacity != 10 {
		t.Errorf("Len = %d, Capacity = %d; want 1, 10", stats.Len, stats.Capacity)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Hits = %d, Misses = %d; want 2, 1", stats.Hits, stats.Misses)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Errorf("HitRate = %f, want 2/3", stats.HitRate)
	}

	c.ResetStats()
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("stats not reset: %+v", s)
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := New[int, int](1000)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				c.Set(n*100+j, j)
				c.Get(n*100 + j)
				c.GetOrCreate(j, func() int { return j })
			}
		}(i)
	}
	wg.Wait()

	if c.Len() == 0 || c.Len() > 1000 {
		t.Errorf("unexpected Len %d", c.Len())
	}
}

// ShardedCache tests

func TestNewSharded(t *testing.T) {
	c := NewSharded[string, int](100, StringHasher)
	if c.Capacity() != 100 {
		t.Errorf("expected capacity 100, got %d", c.Capacity())
	}
	if c.TotalCapacity() != 100*DefaultShardCount {
		t.Errorf("expected total capacity %d, got %d", 100*DefaultShardCount, c.TotalCapacity())
	}
}

func TestShardedCacheOperations(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)
	for i := range 20 {
		c.Set(strconv.Itoa(i), i)
	}
	for i := range 20 {
		if v, ok := c.Get(strconv.Itoa(i)); !ok || v != i {
			t.Errorf("Get(%d) = %d, %v", i, v, ok)
		}
	}
	if v := c.GetOrCreate("new", func() int { return 99 }); v != 99 {
		t.Errorf("GetOrCreate = %d, want 99", v)
	}
	if !c.Delete("new") || c.Delete("new") {
		t.Error("Delete did not report presence correctly")
	}

	lens := c.ShardLen()
	total := 0
	for _, l := range lens {
		total += l
	}
	if total != c.Len() || total != 20 {
		t.Errorf("shard lengths sum %d, Len %d, want 20", total, c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestShardedCacheEvictionCallback(t *testing.T) {
	c := NewSharded[uint64, int](1, Uint64Hasher)
	var mu sync.Mutex
	var evicted []uint64
	c.OnEvict(func(k uint64, _ int) {
		mu.Lock()
		evicted = append(evicted, k)
		mu.Unlock()
	})

	// Keys 0 and 16 land in shard 0 with the identity hash.
	c.Set(0, 0)
	c.Set(16, 16)
	if len(evicted) != 1 || evicted[0] != 0 {
		t.Fatalf("expected key 0 evicted, got %v", evicted)
	}

	c.Set(1, 1)
	c.Purge()
	if c.Len() != 0 || len(evicted) != 3 {
		t.Errorf("after Purge: Len = %d, evicted = %v", c.Len(), evicted)
	}
}

func TestShardedCacheStats(t *testing.T) {
	c := NewSharded[string, int](10, StringHasher)
	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Get("key1")
	c.Get("key1")
	c.Get("nonexistent")

	stats := c.Stats()
	if stats.Len != 2 || stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Len/Hits/Misses = %d/%d/%d, want 2/2/1", stats.Len, stats.Hits, stats.Misses)
	}

	c.ResetStats()
	stats = c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 {
		t.Errorf("expected zero stats after reset, got %+v", stats)
	}
}

func TestShardedCacheConcurrent(t *testing.T) {
	c := NewSharded[int, int](100, IntHasher)
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				c.Set(n*100+j, n*100+j)
				c.Get(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() == 0 || c.Len() > c.TotalCapacity() {
		t.Errorf("unexpected Len %d", c.Len())
	}
}

func TestHashers(t *testing.T) {
	if StringHasher("hello") != StringHasher("hello") {
		t.Error("StringHasher not deterministic")
	}
	if StringHasher("hello") == StringHasher("world") {
		t.Error("StringHasher collision for different strings")
	}
	if IntHasher(42) != IntHasher(42) {
		t.Error("IntHasher not deterministic")
	}
	if IntHasher(42) == IntHasher(43) {
		t.Error("IntHasher collision for different ints")
	}
	if Uint64Hasher(12345) != 12345 {
		t.Error("Uint64Hasher is not the identity")
	}
}

func TestLRUList(t *testing.T) {
	l := newLRUList[string, int]()
	if l.Len() != 0 || l.Oldest() != nil {
		t.Fatal("new list not empty")
	}

	a := l.PushFront("a", 1)
	b := l.PushFront("b", 2)
	l.PushFront("c", 3)
	if l.Len() != 3 || l.Oldest() != a {
		t.Fatalf("expected oldest a in 3 nodes, got %d nodes", l.Len())
	}

	l.MoveToFront(a)
	if l.Oldest() != b {
		t.Errorf("expected oldest b after moving a, got %v", l.Oldest().key)
	}

	l.Remove(b)
	l.Remove(b) // second remove is a no-op
	if l.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", l.Len())
	}
	if l.Oldest().key != "c" {
		t.Errorf("expected oldest c, got %s", l.Oldest().key)
	}

	l.Remove(nil)
	l.MoveToFront(nil)
	l.Clear()
	if l.Len() != 0 || l.Oldest() != nil {
		t.Error("expected empty list after Clear")
	}
}
