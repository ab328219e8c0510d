package expirecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTimeout = 2 * time.Second
	scanBatch           = 100
)

// ErrRedisClear is wrapped by the value RedisCache.Clear panics with.
var ErrRedisClear = errors.New("expirecache: redis clear failed")

// RedisCache is a GenericCache backed by Redis. Keys live under a prefix and
// values are stored as JSON.
//
// The contract has no error returns, so Redis failures are logged and
// reported as a miss (or as zero for Len). Clear is the exception: it panics,
// see Clear.
//
// Remove uses GETDEL and needs Redis 6.2 or later.
type RedisCache[V any] struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

var _ GenericCache[string, int] = (*RedisCache[int])(nil)

// RedisOption configures a RedisCache.
type RedisOption func(*redisOptions)

type redisOptions struct {
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// WithRedisTTL sets a per-key expiry on every Set. Zero means no expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) { o.ttl = ttl }
}

// WithRedisTimeout bounds each call made to Redis.
func WithRedisTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) { o.timeout = d }
}

// WithRedisLogger sets the logger for Redis failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(o *redisOptions) { o.logger = l }
}

// NewRedisCache creates a cache storing keys as prefix+key.
func NewRedisCache[V any](client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisCache[V] {
	o := redisOptions{timeout: defaultRedisTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.timeout <= 0 {
		o.timeout = defaultRedisTimeout
	}

	return &RedisCache[V]{
		client:  client,
		prefix:  prefix,
		ttl:     o.ttl,
		timeout: o.timeout,
		logger:  o.logger.With(slog.String("prefix", prefix)),
	}
}

func (c *RedisCache[V]) makeKey(key string) string {
	return c.prefix + key
}

func (c *RedisCache[V]) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Set stores value under key.
func (c *RedisCache[V]) Set(key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal cache value", "key", key, "error", err)
		return
	}

	ctx, cancel := c.opContext()
	defer cancel()

	if err := c.client.Set(ctx, c.makeKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Redis cache set failed", "key", key, "error", err)
	}
}

// Get retrieves the value for key.
func (c *RedisCache[V]) Get(key string) (V, bool) {
	ctx, cancel := c.opContext()
	defer cancel()

	data, err := c.client.Get(ctx, c.makeKey(key)).Bytes()
	return c.decode(key, "get", data, err)
}

// Remove deletes key with GETDEL and returns what it held.
func (c *RedisCache[V]) Remove(key string) (V, bool) {
	ctx, cancel := c.opContext()
	defer cancel()

	data, err := c.client.GetDel(ctx, c.makeKey(key)).Bytes()
	return c.decode(key, "remove", data, err)
}

func (c *RedisCache[V]) decode(key, op string, data []byte, err error) (V, bool) {
	var value V
	if errors.Is(err, redis.Nil) {
		return value, false
	}
	if err != nil {
		c.logger.Warn("Redis cache "+op+" failed", "key", key, "error", err)
		return value, false
	}

	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("Failed to unmarshal cached value", "key", key, "error", err)
		var zero V
		return zero, false
	}
	return value, true
}

// Contains reports whether key exists.
func (c *RedisCache[V]) Contains(key string) bool {
	ctx, cancel := c.opContext()
	defer cancel()

	n, err := c.client.Exists(ctx, c.makeKey(key)).Result()
	if err != nil {
		c.logger.Warn("Redis cache exists failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Len counts the keys under the prefix with SCAN.
func (c *RedisCache[V]) Len() int {
	ctx, cancel := c.opContext()
	defer cancel()

	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.logger.Warn("Redis cache scan failed", "error", err)
		return 0
	}
	return len(keys)
}

// Clear deletes every key under the prefix. The full key set is collected
// before anything is deleted, since deleting mid-SCAN can make the cursor skip
// keys.
//
// Clear panics with an error wrapping ErrRedisClear if Redis fails, so a
// wrapping Expirable does not record a flush that did not happen.
func (c *RedisCache[V]) Clear() {
	ctx, cancel := c.opContext()
	defer cancel()

	keys, err := c.scanKeys(ctx)
	if err != nil {
		c.failClear(err)
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			c.failClear(err)
		}
	}
}

func (c *RedisCache[V]) failClear(err error) {
	c.logger.Warn("Redis cache clear failed", "error", err)
	panic(fmt.Errorf("%w: %w", ErrRedisClear, err))
}

// scanKeys returns the distinct keys under the prefix.
func (c *RedisCache[V]) scanKeys(ctx context.Context) ([]string, error) {
	iter := c.client.Scan(ctx, 0, globEscape(c.prefix)+"*", scanBatch).Iterator()

	seen := make(map[string]struct{})
	var keys []string
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}
