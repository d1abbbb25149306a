package stripedmap

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jzx17/syncore/internal/testutils"
	"github.com/jzx17/syncore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(k int) uint64 { return uint64(k) }

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		config        *Config[int]
		expectError   bool
		expectedCount int
	}{
		{name: "nil config uses default", config: nil, expectedCount: 16},
		{name: "custom count", config: &Config[int]{ShardCount: 4}, expectedCount: 4},
		{name: "non power of two", config: &Config[int]{ShardCount: 10}, expectedCount: 10},
		{name: "zero shards", config: &Config[int]{ShardCount: 0}, expectError: true},
		{name: "negative shards", config: &Config[int]{ShardCount: -1}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New[int, string](tt.config)
			if tt.expectError {
				assert.ErrorIs(t, err, types.ErrInvalidConfig)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCount, m.ShardCount())
			assert.Equal(t, 0, m.Len())
		})
	}

	assert.Panics(t, func() { MustNew[int, int](&Config[int]{ShardCount: 0}) })
}

func TestMap_InsertGetErase(t *testing.T) {
	m := MustNew[string, int](nil)

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Insert("a", 1)
	m.Insert("b", 2)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Insert("a", 10)
	v, _ = m.Get("a")
	assert.Equal(t, 10, v, "insert must overwrite")
	assert.Equal(t, 2, m.Len())

	assert.True(t, m.Erase("a"))
	assert.False(t, m.Erase("a"), "erasing an absent key is a no-op")
	assert.False(t, m.Contains("a"))
	assert.True(t, m.Contains("b"))
	assert.Equal(t, 1, m.Len())
}

func TestMap_KeyLivesInOneShard(t *testing.T) {
	m := MustNew[int, int](&Config[int]{ShardCount: 8, Hasher: identity})

	for k := 0; k < 64; k++ {
		m.Insert(k, k)
		assert.Equal(t, k%8, m.ShardOf(k))
	}
	for i, s := range m.shards {
		assert.Len(t, s.data, 8, "shard %d", i)
		for k := range s.data {
			assert.Equal(t, i, k%8)
		}
	}
}

// TestMap_ShardIsolation holds one shard's write lock and checks that
// operations on other shards still complete while operations on the held
// shard wait.
func TestMap_ShardIsolation(t *testing.T) {
	m := MustNew[int, int](&Config[int]{ShardCount: 4, Hasher: identity})

	held := m.shards[0]
	held.mu.Lock()

	other := testutils.Go(func() {
		m.Insert(1, 1)
		m.Get(2)
		m.Erase(3)
		m.Insert(5, 5)
	})
	testutils.RequireDone(t, other, "operations on other shards must not wait")

	same := testutils.Go(func() {
		m.Insert(4, 4)
	})
	testutils.RequireBlocked(t, same, 20*time.Millisecond, "same-shard writer must wait")

	held.mu.Unlock()
	testutils.RequireDone(t, same)

	v, ok := m.Get(4)
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestMap_ReadersShareShard(t *testing.T) {
	m := MustNew[int, int](&Config[int]{ShardCount: 1})
	m.Insert(1, 1)

	m.shards[0].mu.RLock()
	reader := testutils.Go(func() {
		v, ok := m.Get(1)
		assert.True(t, ok)
		assert.Equal(t, 1, v)
	})
	testutils.RequireDone(t, reader, "readers must not exclude each other")

	writer := testutils.Go(func() { m.Insert(1, 2) })
	testutils.RequireBlocked(t, writer, 20*time.Millisecond, "writer must wait for readers")
	m.shards[0].mu.RUnlock()
	testutils.RequireDone(t, writer)
}

func TestMap_Range(t *testing.T) {
	m := MustNew[int, int](nil)
	for i := 0; i < 100; i++ {
		m.Insert(i, i*i)
	}

	seen := make(map[int]int)
	m.Range(func(k, v int) bool {
		seen[k] = v
		return true
	})
	assert.Len(t, seen, 100)
	assert.Equal(t, 49, seen[7])

	calls := 0
	m.Range(func(k, v int) bool {
		calls++
		m.Erase(k) // callbacks run outside the shard lock
		return calls < 10
	})
	assert.Equal(t, 10, calls)
	assert.Equal(t, 90, m.Len())
}

func TestMap_Concurrent(t *testing.T) {
	const (
		workers = 8
		keys    = 1000
	)
	m := MustNew[int, int](nil)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				k := w*keys + i
				m.Insert(k, k*10)
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < keys*8; i++ {
				if v, ok := m.Get(i); ok {
					assert.Equal(t, i*10, v)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*keys, m.Len())

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				if (w*keys+i)%2 == 0 {
					m.Erase(w*keys + i)
				}
			}
		}(w)
	}
	wg.Wait()

	count := 0
	for i := 0; i < workers*keys; i++ {
		if m.Contains(i) {
			count++
		}
	}
	assert.Equal(t, workers*keys/2, count)
}

func ExampleMap() {
	m := MustNew[string, int](nil)
	m.Insert("answer", 42)

	v, ok := m.Get("answer")
	fmt.Println(v, ok)

	m.Erase("answer")
	_, ok = m.Get("answer")
	fmt.Println(ok)
	// Output:
	// 42 true
	// false
}
