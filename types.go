package expirecache

import (
	"sync"
	"time"
)

// GenericCache is the contract shared by every cache in this package.
// Expirable wraps any implementation of it.
type GenericCache[K comparable, V any] interface {
	Set(key K, value V)
	// Get returns the value for key and whether it was present.
	Get(key K) (V, bool)
	// Remove deletes key and returns the value it held, if any.
	Remove(key K) (V, bool)
	Contains(key K) bool
	Len() int
	// Clear removes every entry. It must be safe on an empty cache.
	Clear()
}

// Item represents a cached value with an expiration time.
type Item[V any] struct {
	Value      V
	Expiration int64 // 0 means never expires
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// cleanupTarget is the interface that anything using janitor must implement.
type cleanupTarget interface {
	cleanup()
}

// Closable values are closed when a cache drops them on its own
// (expiry or Clear). Values returned by Remove are left open.
type Closable interface {
	Close()
}

func closeValue[V any](v V) {
	if c, ok := any(v).(Closable); ok {
		c.Close()
	}
}
