// Package stripedmap provides a concurrent hash map split into independently
// locked shards.
//
// Each key lives in exactly one shard, chosen by hashing the key modulo the
// shard count. Operations on keys in different shards never contend; within
// a shard, readers share a read lock and writers take it exclusively.
//
//	m := stripedmap.MustNew[string, int](nil)
//	m.Insert("a", 1)
//	if v, ok := m.Get("a"); ok {
//		fmt.Println(v)
//	}
//	m.Erase("a")
package stripedmap

import (
	"sync"

	"github.com/jzx17/syncore/pkg/shard"
)

// Config defines configuration for a striped map
type Config[K comparable] struct {
	// ShardCount is the fixed number of shards; a power of two is fastest
	ShardCount int

	// Hasher selects the shard for a key (optional, defaults to maphash)
	Hasher shard.Hasher[K]
}

// DefaultConfig returns default configuration
func DefaultConfig[K comparable]() *Config[K] {
	return &Config[K]{
		ShardCount: shard.DefaultCount,
	}
}

// Map is a concurrent map partitioned into a fixed number of shards.
type Map[K comparable, V any] struct {
	shards   []*mapShard[K, V]
	selector *shard.Selector[K]
}

type mapShard[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// New creates a striped map; a nil config uses DefaultConfig
func New[K comparable, V any](config *Config[K]) (*Map[K, V], error) {
	if config == nil {
		config = DefaultConfig[K]()
	}

	selector, err := shard.NewSelector("stripedmap.Map", config.ShardCount, config.Hasher)
	if err != nil {
		return nil, err
	}

	shards := make([]*mapShard[K, V], config.ShardCount)
	for i := range shards {
		shards[i] = &mapShard[K, V]{data: make(map[K]V)}
	}

	return &Map[K, V]{
		shards:   shards,
		selector: selector,
	}, nil
}

// MustNew is like New but panics on an invalid config
func MustNew[K comparable, V any](config *Config[K]) *Map[K, V] {
	m, err := New[K, V](config)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *mapShard[K, V] {
	return m.shards[m.selector.Index(key)]
}

// Get returns a copy of the value stored for key
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Contains reports whether key is present
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Insert stores value for key, overwriting any previous value
func (m *Map[K, V]) Insert(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Erase removes key and reports whether it was present
func (m *Map[K, V]) Erase(key K) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	return true
}

// Len returns the number of entries. Shards are counted one at a time, so
// the total is only approximate under concurrent writes.
func (m *Map[K, V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.data)
		s.mu.RUnlock()
	}
	return total
}

// Range calls fn for every entry until fn returns false. Each shard is
// copied under its read lock and fn runs without any lock held, so fn may
// call back into the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	type kv struct {
		k K
		v V
	}
	for _, s := range m.shards {
		s.mu.RLock()
		snapshot := make([]kv, 0, len(s.data))
		for k, v := range s.data {
			snapshot = append(snapshot, kv{k, v})
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			if !fn(e.k, e.v) {
				return
			}
		}
	}
}

// ShardCount returns the number of shards
func (m *Map[K, V]) ShardCount() int {
	return len(m.shards)
}

// ShardOf returns the index of the shard that owns key
func (m *Map[K, V]) ShardOf(key K) int {
	return m.selector.Index(key)
}
