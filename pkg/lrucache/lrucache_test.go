package lrucache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/jzx17/syncore/internal/testutils"
	"github.com/jzx17/syncore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(k int) uint64 { return uint64(k) }

func singleShard(capacity int) *Cache[int, string] {
	return MustNew[int, string](&Config[int, string]{ShardCount: 1, PerShardCapacity: capacity})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name             string
		config           *Config[int, int]
		expectError      bool
		expectedCapacity int
	}{
		{name: "nil config uses default", config: nil, expectedCapacity: 16 * 128},
		{name: "custom", config: &Config[int, int]{ShardCount: 4, PerShardCapacity: 10}, expectedCapacity: 40},
		{name: "zero capacity", config: &Config[int, int]{ShardCount: 4}, expectError: true},
		{name: "negative capacity", config: &Config[int, int]{ShardCount: 4, PerShardCapacity: -1}, expectError: true},
		{name: "zero shards", config: &Config[int, int]{PerShardCapacity: 10}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New[int, int](tt.config)
			if tt.expectError {
				assert.ErrorIs(t, err, types.ErrInvalidConfig)
				var cfgErr *types.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCapacity, c.Capacity())
			assert.True(t, c.Empty())
		})
	}

	assert.Panics(t, func() { MustNew[int, int](&Config[int, int]{ShardCount: 1}) })
}

func TestCache_RecentlyUsedSurvives(t *testing.T) {
	c := singleShard(2)

	c.Insert(1, "one")
	c.Insert(2, "two")
	_, ok := c.Get(1)
	require.True(t, ok)
	c.Insert(3, "three")

	assert.False(t, c.Contains(2), "least recently used key must be evicted")
	assert.True(t, c.Contains(1))
	assert.True(t, c.Contains(3))
	assert.Equal(t, 2, c.Size())
}

func TestCache_InsertExistingRefreshes(t *testing.T) {
	c := singleShard(2)

	c.Insert(1, "one")
	c.Insert(2, "two")
	c.Insert(1, "uno")
	c.Insert(3, "three")

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "uno", v)
	assert.False(t, c.Contains(2))
	assert.Equal(t, 2, c.Size())
}

func TestCache_PeekDoesNotRefresh(t *testing.T) {
	c := singleShard(2)

	c.Insert(1, "one")
	c.Insert(2, "two")
	v, ok := c.Peek(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)
	c.Insert(3, "three")

	assert.False(t, c.Contains(1), "peek must not protect a key from eviction")
	assert.True(t, c.Contains(2))
}

func TestCache_Erase(t *testing.T) {
	evicted := 0
	c := MustNew[int, string](&Config[int, string]{
		ShardCount:       1,
		PerShardCapacity: 3,
		OnEvict:          func(int, string) { evicted++ },
	})

	c.Insert(1, "one")
	c.Insert(2, "two")
	assert.True(t, c.Erase(1))
	assert.False(t, c.Erase(1))
	assert.False(t, c.Erase(42))
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 0, evicted, "erase is not an eviction")

	c.Erase(2)
	assert.True(t, c.Empty())
	assert.Empty(t, c.Keys())
}

func TestCache_Keys(t *testing.T) {
	c := singleShard(4)
	for i := 1; i <= 4; i++ {
		c.Insert(i, fmt.Sprint(i))
	}
	c.Get(2)

	assert.Equal(t, []int{2, 4, 3, 1}, c.Keys())
}

// TestCache_PerShardCapacity fills one shard far past its bound and checks
// that other shards keep their entries.
func TestCache_PerShardCapacity(t *testing.T) {
	const perShard = 3
	c := MustNew[int, int](&Config[int, int]{ShardCount: 4, PerShardCapacity: perShard, Hasher: identity})

	c.Insert(1, 1)
	c.Insert(2, 2)
	c.Insert(3, 3)

	// Keys 0, 4, 8, ... all land in shard 0.
	for k := 0; k < 40; k += 4 {
		c.Insert(k, k)
	}

	for i, s := range c.shards {
		assert.LessOrEqual(t, len(s.items), perShard, "shard %d over capacity", i)
	}
	assert.Len(t, c.shards[0].items, perShard)
	assert.True(t, c.Contains(1))
	assert.True(t, c.Contains(2))
	assert.True(t, c.Contains(3))

	// Shard 0 keeps its own three most recent keys.
	assert.Equal(t, []int{36, 32, 28}, keysOf(c.shards[0]))
	assert.Equal(t, int64(10-perShard), c.Stats().Evictions)
}

func keysOf(s *cacheShard[int, int]) []int {
	var keys []int
	for e := s.head; e != nil; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

func TestCache_OnEvict(t *testing.T) {
	var got []string
	c := MustNew[int, string](&Config[int, string]{
		ShardCount:       1,
		PerShardCapacity: 1,
		OnEvict: func(k int, v string) {
			got = append(got, fmt.Sprintf("%d=%s", k, v))
		},
	})

	c.Insert(1, "a")
	c.Insert(2, "b")
	c.Insert(3, "c")
	c.Insert(3, "d") // overwrite, not an eviction

	assert.Equal(t, []string{"1=a", "2=b"}, got)
}

func TestCache_OnEvictRunsOutsideLock(t *testing.T) {
	var c *Cache[int, int]
	c = MustNew[int, int](&Config[int, int]{
		ShardCount:       1,
		PerShardCapacity: 1,
		OnEvict: func(k, v int) {
			// Would deadlock if the shard lock were still held.
			c.Contains(k)
		},
	})

	done := testutils.Go(func() {
		c.Insert(1, 1)
		c.Insert(2, 2)
	})
	testutils.RequireDone(t, done)
}

func TestCache_Stats(t *testing.T) {
	c := singleShard(2)

	c.Get(1)
	c.Insert(1, "one")
	c.Get(1)
	c.Get(1)
	c.Peek(1) // not counted
	c.Insert(2, "two")
	c.Insert(3, "three")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestCache_GetOrSet(t *testing.T) {
	c := singleShard(4)

	v, err := c.GetOrSet(1, func() (string, error) { return "one", nil })
	require.NoError(t, err)
	assert.Equal(t, "one", v)

	v, err = c.GetOrSet(1, func() (string, error) {
		t.Error("compute must not run for a cached key")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "one", v)

	boom := errors.New("boom")
	_, err = c.GetOrSet(2, func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Contains(2), "failed compute must not be cached")
}

func TestCache_GetOrSetComputesOnce(t *testing.T) {
	c := MustNew[string, int](nil)

	var calls atomix.Int32
	release := make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrSet("shared", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

// TestCache_GetOrSetDistinctKeysSameFormat uses two keys whose %v renderings
// match; each must get its own computed value.
func TestCache_GetOrSetDistinctKeysSameFormat(t *testing.T) {
	type pair struct{ a, b string }
	k1 := pair{"a b", "c"}
	k2 := pair{"a", "b c"}
	require.Equal(t, fmt.Sprint(k1), fmt.Sprint(k2))

	c := MustNew[pair, string](&Config[pair, string]{ShardCount: 4, PerShardCapacity: 8})

	gate := make(chan struct{})
	started := make(chan struct{})
	first := testutils.Go(func() {
		v, err := c.GetOrSet(k1, func() (string, error) {
			close(started)
			<-gate
			return "value-for-k1", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "value-for-k1", v)
	})
	<-started

	var calls atomix.Int32
	second := testutils.Go(func() {
		v, err := c.GetOrSet(k2, func() (string, error) {
			calls.Add(1)
			return "value-for-k2", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "value-for-k2", v)
	})

	time.Sleep(20 * time.Millisecond)
	close(gate)
	testutils.RequireDone(t, first)
	testutils.RequireDone(t, second)

	assert.Equal(t, int32(1), calls.Load())
	v1, ok := c.Peek(k1)
	require.True(t, ok)
	assert.Equal(t, "value-for-k1", v1)
	v2, ok := c.Peek(k2)
	require.True(t, ok)
	assert.Equal(t, "value-for-k2", v2)
}

func TestCache_GetOrSetErrorStaysWithItsKey(t *testing.T) {
	type pair struct{ a, b string }
	k1 := pair{"x y", "z"}
	k2 := pair{"x", "y z"}
	c := MustNew[pair, int](&Config[pair, int]{ShardCount: 1, PerShardCapacity: 4})

	gate := make(chan struct{})
	started := make(chan struct{})
	boom := errors.New("boom")
	first := testutils.Go(func() {
		_, err := c.GetOrSet(k1, func() (int, error) {
			close(started)
			<-gate
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
	})
	<-started

	second := testutils.Go(func() {
		v, err := c.GetOrSet(k2, func() (int, error) { return 2, nil })
		assert.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	time.Sleep(20 * time.Millisecond)
	close(gate)
	testutils.RequireDone(t, first)
	testutils.RequireDone(t, second)

	assert.False(t, c.Contains(k1))
	assert.True(t, c.Contains(k2))
}

func TestCache_Concurrent(t *testing.T) {
	const (
		workers  = 8
		ops      = 2000
		perShard = 32
	)
	c := MustNew[int, int](&Config[int, int]{ShardCount: 8, PerShardCapacity: perShard})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				k := (w*ops + i) % 500
				switch i % 4 {
				case 0, 1:
					c.Insert(k, k*2)
				case 2:
					if v, ok := c.Get(k); ok {
						assert.Equal(t, k*2, v)
					}
				case 3:
					c.Erase(k)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), c.Capacity())
	for i, s := range c.shards {
		assert.LessOrEqual(t, len(s.items), perShard, "shard %d over capacity", i)
		n := 0
		for e := s.head; e != nil; e = e.next {
			n++
			assert.Same(t, e, s.items[e.key], "list and index disagree")
		}
		assert.Equal(t, len(s.items), n, "shard %d list length", i)
	}
}

func ExampleCache() {
	c := MustNew[string, int](&Config[string, int]{ShardCount: 1, PerShardCapacity: 2})
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Get("a")
	c.Insert("c", 3)

	fmt.Println(c.Contains("a"), c.Contains("b"), c.Contains("c"))
	// Output: true false true
}
