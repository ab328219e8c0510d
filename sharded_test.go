package expirecache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedCacheBasic(t *testing.T) {
	sc := NewSharded[string, int](16, time.Minute, time.Second*10)
	defer sc.Close()

	sc.Set("foo", 42)

	v, ok := sc.Get("foo")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, sc.Contains("foo"))

	v, ok = sc.Remove("foo")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = sc.Get("foo")
	assert.False(t, ok)
}

func TestShardIndexStable(t *testing.T) {
	for i := 0; i < 1000; i++ {
		key := "key_" + strconv.Itoa(i)
		idx := shardIndex(key, 7)
		assert.Equal(t, idx, shardIndex(key, 7))
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 7)
	}
}

func TestShardedCacheConcurrentReadWrite(t *testing.T) {
	const workers = 50
	const iterations = 5000

	sc := NewSharded[int, int](32, time.Minute, time.Second*10)
	defer sc.Close()

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key := (workerID * iterations) + i
				sc.Set(key, i)

				if v, ok := sc.Get(key); ok && v != i {
					t.Errorf("expected %d, got %d", i, v)
				}

				if i%100 == 0 {
					sc.Remove(key)
				}
			}
		}(w)
	}

	wg.Wait()
	assert.Equal(t, workers*(iterations-iterations/100), sc.Len())
}

func TestShardedCacheLen(t *testing.T) {
	sc := NewSharded[string, int](8, time.Minute, time.Minute)
	defer sc.Close()

	require.Equal(t, 0, sc.Len())

	for i := 0; i < 100; i++ {
		sc.Set(string(rune('a'+(i%26))), i)
	}
	require.Equal(t, 26, sc.Len(), "keys repeat, so length stabilizes at 26")
	assert.Len(t, sc.Items(), 26)

	sc.Remove("a")
	require.Equal(t, 25, sc.Len())

	sc.Clear()
	assert.Equal(t, 0, sc.Len())
}

func TestShardedCacheRangeStops(t *testing.T) {
	sc := NewSharded[int, int](4, 0, 0)
	for i := 0; i < 100; i++ {
		sc.Set(i, i)
	}

	seen := 0
	sc.Range(func(int, int) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}

func TestExpirableOverSharded(t *testing.T) {
	clock := newFakeClock()
	sc := NewSharded[string, int](8, 0, 0)

	e, err := NewExpirable[string, int](sc, WithFlushInterval(time.Second), withClock(clock.Now))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		e.Set("k"+strconv.Itoa(i), i)
	}
	assert.Equal(t, 50, e.Len())

	clock.Advance(time.Second)
	assert.Equal(t, 0, e.Len())
	assert.Empty(t, sc.Items())
}

func BenchmarkShardedCacheConcurrentReadWrite(b *testing.B) {
	const N = 1_000_000
	sc := NewSharded[int, int](32, time.Minute, time.Second*30)
	defer sc.Close()

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := i % N
			sc.Set(key, i)
			sc.Get(key)
			if i%50 == 0 {
				sc.Remove(key)
			}
			i++
		}
	})
}
