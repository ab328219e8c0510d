package expirecache

import (
	"fmt"
	"maps"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ShardedCache spreads keys over several Cache shards to cut lock
// contention. It satisfies GenericCache.
type ShardedCache[K comparable, V any] struct {
	shards []*Cache[K, V]
}

var _ GenericCache[string, int] = (*ShardedCache[string, int])(nil)

// shardIndex deterministically maps a comparable key to a shard index.
func shardIndex[K comparable](key K, numShards int) int {
	return int(xxhash.Sum64String(fmt.Sprint(key)) % uint64(numShards))
}

// NewSharded creates numShards shards (at least one) sharing the same TTL
// settings.
func NewSharded[K comparable, V any](numShards int, defaultTTL, cleanupInterval time.Duration) *ShardedCache[K, V] {
	numShards = max(numShards, 1)
	sc := &ShardedCache[K, V]{
		shards: make([]*Cache[K, V], numShards),
	}
	for i := 0; i < numShards; i++ {
		sc.shards[i] = New[K, V](defaultTTL, cleanupInterval)
	}
	return sc
}

func (sc *ShardedCache[K, V]) shard(key K) *Cache[K, V] {
	return sc.shards[shardIndex(key, len(sc.shards))]
}

func (sc *ShardedCache[K, V]) Set(key K, value V) {
	sc.shard(key).Set(key, value)
}

func (sc *ShardedCache[K, V]) Get(key K) (V, bool) {
	return sc.shard(key).Get(key)
}

func (sc *ShardedCache[K, V]) Remove(key K) (V, bool) {
	return sc.shard(key).Remove(key)
}

func (sc *ShardedCache[K, V]) Contains(key K) bool {
	return sc.shard(key).Contains(key)
}

// Items returns a copy of all key-value pairs across all shards.
func (sc *ShardedCache[K, V]) Items() map[K]V {
	result := make(map[K]V)

	for _, shard := range sc.shards {
		maps.Copy(result, shard.Items())
	}

	return result
}

func (sc *ShardedCache[K, V]) Len() int {
	total := 0
	for _, shard := range sc.shards {
		total += shard.Len()
	}
	return total
}

// Range visits shards in order; returning false stops the whole walk.
func (sc *ShardedCache[K, V]) Range(f func(K, V) bool) {
	for _, shard := range sc.shards {
		stopped := false
		shard.Range(func(k K, v V) bool {
			if !f(k, v) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
	}
}

func (sc *ShardedCache[K, V]) Clear() {
	for _, shard := range sc.shards {
		shard.Clear()
	}
}

func (sc *ShardedCache[K, V]) Close() {
	for _, shard := range sc.shards {
		shard.Close()
	}
}
