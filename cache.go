package expirecache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a generic, in-memory, thread-safe cache with optional per-entry
// TTL. It satisfies GenericCache and is the usual delegate for Expirable.
type Cache[K comparable, V any] struct {
	items   map[K]Item[V]
	mu      sync.RWMutex
	ttl     time.Duration
	janitor *janitor
	count   atomic.Int64
}

var _ GenericCache[string, int] = (*Cache[string, int])(nil)

// New creates a cache. A zero defaultTTL keeps entries until removed; the
// janitor only runs when both defaultTTL and cleanupInterval are positive.
func New[K comparable, V any](defaultTTL, cleanupInterval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]Item[V]),
		ttl:   defaultTTL,
	}
	if defaultTTL > 0 && cleanupInterval > 0 {
		j := newJanitor(cleanupInterval)
		c.janitor = j
		j.run(c)
	}
	return c
}

// Set stores a key-value pair and resets its expiration based on default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]

	var exp int64
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl).UnixNano()
	}
	c.items[key] = Item[V]{Value: value, Expiration: exp}
	if !exists {
		c.count.Add(1)
	}
}

// Get retrieves a value by key. An expired entry is evicted and reported
// missing.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found {
		return zero, false
	}
	if item.expired(time.Now().UnixNano()) {
		c.evict(key)
		return zero, false
	}
	return item.Value, true
}

// Contains reports whether key holds a live entry.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	return found && !item.expired(time.Now().UnixNano())
}

// Remove deletes key and returns its value. Expired entries are removed but
// reported missing.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	item, exists := c.items[key]
	if exists {
		delete(c.items, key)
		c.count.Add(-1)
	}
	c.mu.Unlock()

	if !exists {
		return zero, false
	}
	if item.expired(time.Now().UnixNano()) {
		closeValue(item.Value)
		return zero, false
	}
	return item.Value, true
}

// evict drops key if it is still expired once the write lock is held.
func (c *Cache[K, V]) evict(key K) {
	c.mu.Lock()
	it, exists := c.items[key]
	if exists && it.expired(time.Now().UnixNano()) {
		delete(c.items, key)
		c.count.Add(-1)
	} else {
		exists = false
	}
	c.mu.Unlock()

	if exists {
		closeValue(it.Value)
	}
}

// Len counts stored entries, including expired ones the janitor has not
// swept yet.
func (c *Cache[K, V]) Len() int {
	return int(c.count.Load())
}

func (c *Cache[K, V]) Range(f func(K, V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now().UnixNano()
	for k, it := range c.items {
		if it.expired(now) {
			continue
		}
		if !f(k, it.Value) {
			return
		}
	}
}

// Items returns a copy of all key-value pairs currently in the cache.
func (c *Cache[K, V]) Items() map[K]V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[K]V, len(c.items))
	now := time.Now().UnixNano()

	for k, it := range c.items {
		if !it.expired(now) {
			result[k] = it.Value
		}
	}
	return result
}

// must implement cleanupTarget
func (c *Cache[K, V]) cleanup() {
	now := time.Now().UnixNano()
	var dropped []V

	c.mu.Lock()
	for k, v := range c.items {
		if v.expired(now) {
			dropped = append(dropped, v.Value)
			delete(c.items, k)
			c.count.Add(-1)
		}
	}
	c.mu.Unlock()

	for _, v := range dropped {
		closeValue(v)
	}
}

// Close stops the janitor. The cache stays usable.
func (c *Cache[K, V]) Close() {
	if c.janitor != nil {
		c.janitor.stopJanitor()
	}
}

// Clear drops every entry, closing Closable values.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	old := c.items
	c.items = make(map[K]Item[V])
	c.count.Store(0)
	c.mu.Unlock()

	for _, it := range old {
		closeValue(it.Value)
	}
}

func (it Item[V]) expired(now int64) bool {
	return it.Expiration > 0 && now > it.Expiration
}
