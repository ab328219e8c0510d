package expirecache

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFlushInterval is used when no WithFlushInterval option is given.
const DefaultFlushInterval = time.Minute

var (
	ErrNilDelegate           = errors.New("expirecache: nil delegate")
	ErrNegativeFlushInterval = errors.New("expirecache: negative flush interval")
)

// Expirable wraps a delegate cache and clears all of it once the flush
// interval has elapsed since the last flush. The check is lazy: it runs at
// the top of Get, Remove and Len. Set, Contains and Clear go straight to the
// delegate without it.
//
// Expirable is safe for concurrent use when the delegate is.
type Expirable[K comparable, V any] struct {
	delegate GenericCache[K, V]
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	start     time.Time    // monotonic origin for lastFlush
	lastFlush atomic.Int64 // nanoseconds since start
	mu        sync.Mutex   // serializes flushes
}

var _ GenericCache[string, int] = (*Expirable[string, int])(nil)

type options struct {
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Expirable.
type Option func(*options)

// WithFlushInterval sets how long the delegate may hold entries before it is
// cleared. Zero flushes on every checked access.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithLogger sets the logger used to report flushes at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// withClock replaces time.Now. Tests only.
func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewExpirable wraps delegate. The flush clock starts now.
func NewExpirable[K comparable, V any](delegate GenericCache[K, V], opts ...Option) (*Expirable[K, V], error) {
	if delegate == nil {
		return nil, ErrNilDelegate
	}

	o := options{
		interval: DefaultFlushInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeFlushInterval, o.interval)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Expirable[K, V]{
		delegate: delegate,
		interval: o.interval,
		logger:   o.logger,
		now:      o.now,
		start:    o.now(),
	}, nil
}

// FlushInterval returns the configured interval.
func (e *Expirable[K, V]) FlushInterval() time.Duration {
	return e.interval
}

// Len flushes the delegate if due, then returns its size.
func (e *Expirable[K, V]) Len() int {
	e.recycle()
	return e.delegate.Len()
}

// Get flushes the delegate if due, then looks key up.
func (e *Expirable[K, V]) Get(key K) (V, bool) {
	e.recycle()
	return e.delegate.Get(key)
}

// Remove flushes the delegate if due, then removes key. A key dropped by the
// flush is reported as absent.
func (e *Expirable[K, V]) Remove(key K) (V, bool) {
	e.recycle()
	return e.delegate.Remove(key)
}

// Set forwards to the delegate without a flush check.
func (e *Expirable[K, V]) Set(key K, value V) {
	e.delegate.Set(key, value)
}

// Contains forwards to the delegate without a flush check, so it may report
// entries that the next Get would flush away.
func (e *Expirable[K, V]) Contains(key K) bool {
	return e.delegate.Contains(key)
}

// Clear forwards to the delegate. It does not restart the flush clock.
func (e *Expirable[K, V]) Clear() {
	e.delegate.Clear()
}

// elapsed returns the time since the last flush.
func (e *Expirable[K, V]) elapsed() time.Duration {
	return e.now().Sub(e.start) - time.Duration(e.lastFlush.Load())
}

// recycle clears the delegate when the interval has elapsed. The common case
// is a single atomic load; a due flush is re-checked under the lock so two
// callers can't both flush the same window. If the delegate's Clear panics,
// the flush is not recorded.
func (e *Expirable[K, V]) recycle() {
	if e.elapsed() < e.interval {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.elapsed()
	if elapsed < e.interval {
		return
	}

	e.delegate.Clear()
	e.lastFlush.Store(int64(e.now().Sub(e.start)))

	e.logger.Debug("cache flushed",
		slog.Duration("interval", e.interval),
		slog.Duration("elapsed", elapsed),
	)
}
