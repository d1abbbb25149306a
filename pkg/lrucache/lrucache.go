package lrucache

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/jzx17/syncore/pkg/shard"
	"github.com/jzx17/syncore/pkg/types"
	"golang.org/x/sync/singleflight"
)

// OnEvictFunc is called with every entry dropped to make room in its shard
type OnEvictFunc[K comparable, V any] func(key K, value V)

// Config defines configuration for a striped LRU cache
type Config[K comparable, V any] struct {
	// ShardCount is the fixed number of shards; a power of two is fastest
	ShardCount int

	// PerShardCapacity bounds every shard independently
	PerShardCapacity int

	// Hasher selects the shard for a key (optional, defaults to maphash)
	Hasher shard.Hasher[K]

	// OnEvict is invoked after an eviction, outside the shard lock (optional)
	OnEvict OnEvictFunc[K, V]
}

// DefaultConfig returns default configuration
func DefaultConfig[K comparable, V any]() *Config[K, V] {
	return &Config[K, V]{
		ShardCount:       shard.DefaultCount,
		PerShardCapacity: 128,
	}
}

// Cache is a concurrent LRU cache partitioned into a fixed number of shards.
// See the package documentation for the eviction model.
type Cache[K comparable, V any] struct {
	shards   []*cacheShard[K, V]
	selector *shard.Selector[K]
	perShard int
	onEvict  OnEvictFunc[K, V]
	flight   singleflight.Group

	hits      atomix.Int64
	misses    atomix.Int64
	evictions atomix.Int64
}

type cacheShard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*entry[K, V]
	head  *entry[K, V] // most recently used
	tail  *entry[K, V] // least recently used
}

// entry is an intrusive recency list node
type entry[K comparable, V any] struct {
	key  K
	val  V
	prev *entry[K, V]
	next *entry[K, V]
}

// New creates a cache; a nil config uses DefaultConfig
func New[K comparable, V any](config *Config[K, V]) (*Cache[K, V], error) {
	if config == nil {
		config = DefaultConfig[K, V]()
	}
	if config.PerShardCapacity <= 0 {
		return nil, types.NewConfigError("lrucache.Cache", "PerShardCapacity", config.PerShardCapacity)
	}

	selector, err := shard.NewSelector("lrucache.Cache", config.ShardCount, config.Hasher)
	if err != nil {
		return nil, err
	}

	shards := make([]*cacheShard[K, V], config.ShardCount)
	for i := range shards {
		shards[i] = &cacheShard[K, V]{
			items: make(map[K]*entry[K, V], config.PerShardCapacity),
		}
	}

	return &Cache[K, V]{
		shards:   shards,
		selector: selector,
		perShard: config.PerShardCapacity,
		onEvict:  config.OnEvict,
	}, nil
}

// MustNew is like New but panics on an invalid config
func MustNew[K comparable, V any](config *Config[K, V]) *Cache[K, V] {
	c, err := New[K, V](config)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Cache[K, V]) shardFor(key K) *cacheShard[K, V] {
	return c.shards[c.selector.Index(key)]
}

// Insert stores value as the most recently used entry of its shard. When the
// shard grows past its capacity the least recently used entry is evicted.
func (c *Cache[K, V]) Insert(key K, value V) {
	s := c.shardFor(key)

	s.mu.Lock()
	evicted, ok := s.insertLocked(key, value, c.perShard)
	s.mu.Unlock()

	if ok {
		c.evicted(evicted)
	}
}

// Get returns a copy of the value for key and marks it most recently used.
// A hit reorders the recency list, so Get takes the shard lock exclusively.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.moveToFront(e)
	c.hits.Add(1)
	return e.val, true
}

// Peek returns the value for key without touching its recency
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	s := c.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.items[key]; ok {
		return e.val, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is cached, without touching its recency
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.Peek(key)
	return ok
}

// Erase removes key and reports whether it was present. Erased entries are
// not reported to OnEvict.
func (c *Cache[K, V]) Erase(key K) bool {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return false
	}
	s.unlink(e)
	delete(s.items, key)
	return true
}

// flightResult tags a singleflight result with the key it was computed for.
// Distinct keys can format to the same flight name.
type flightResult[K comparable, V any] struct {
	key K
	val V
}

// GetOrSet returns the cached value for key, computing and inserting it on a
// miss. Concurrent misses for the same key share a single compute call.
// compute runs without any shard lock held; its error is returned as is and
// nothing is cached.
func (c *Cache[K, V]) GetOrSet(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	name := fmt.Sprintf("%v", key)
	for {
		result, err, _ := c.flight.Do(name, func() (interface{}, error) {
			if v, ok := c.Peek(key); ok {
				return flightResult[K, V]{key: key, val: v}, nil
			}

			v, err := compute()
			if err != nil {
				return flightResult[K, V]{key: key}, err
			}
			c.Insert(key, v)
			return flightResult[K, V]{key: key, val: v}, nil
		})

		r := result.(flightResult[K, V])
		if r.key != key {
			// joined a flight for another key with the same name; run our own
			continue
		}
		if err != nil {
			var zero V
			return zero, err
		}
		return r.val, nil
	}
}

// Size returns the number of cached entries. Shards are read one at a time
// under their read locks, so the total may be transiently inconsistent with
// concurrent writers.
func (c *Cache[K, V]) Size() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Empty reports whether every shard is empty
func (c *Cache[K, V]) Empty() bool {
	for _, s := range c.shards {
		s.mu.RLock()
		n := len(s.items)
		s.mu.RUnlock()
		if n != 0 {
			return false
		}
	}
	return true
}

// Capacity returns ShardCount × PerShardCapacity. It is the sum of the
// independent shard bounds, not a global limit.
func (c *Cache[K, V]) Capacity() int {
	return len(c.shards) * c.perShard
}

// ShardCount returns the number of shards
func (c *Cache[K, V]) ShardCount() int {
	return len(c.shards)
}

// ShardOf returns the index of the shard that owns key
func (c *Cache[K, V]) ShardOf(key K) int {
	return c.selector.Index(key)
}

// Keys returns all keys, shard by shard, each shard ordered from most to
// least recently used. There is no recency order across shards.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, c.Size())
	for _, s := range c.shards {
		s.mu.RLock()
		for e := s.head; e != nil; e = e.next {
			keys = append(keys, e.key)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Stats returns hit, miss and eviction counters
func (c *Cache[K, V]) Stats() types.CacheStats {
	return types.CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Size(),
	}
}

func (c *Cache[K, V]) evicted(e *entry[K, V]) {
	c.evictions.Add(1)
	if c.onEvict != nil {
		c.onEvict(e.key, e.val)
	}
}

// insertLocked places key at the front and returns the entry evicted to
// respect capacity, if any. s.mu must be held exclusively.
func (s *cacheShard[K, V]) insertLocked(key K, value V, capacity int) (*entry[K, V], bool) {
	if e, ok := s.items[key]; ok {
		s.unlink(e)
		delete(s.items, key)
	}

	e := &entry[K, V]{key: key, val: value}
	s.pushFront(e)
	s.items[key] = e

	if len(s.items) <= capacity {
		return nil, false
	}
	oldest := s.tail
	s.unlink(oldest)
	delete(s.items, oldest.key)
	return oldest, true
}

func (s *cacheShard[K, V]) moveToFront(e *entry[K, V]) {
	if s.head == e {
		return
	}
	s.unlink(e)
	s.pushFront(e)
}

func (s *cacheShard[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *cacheShard[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
