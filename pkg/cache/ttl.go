package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	// unlimited disables the LRU size bound; entries leave only by expiry.
	unlimited = 0

	// minTTL keeps the LRU's cleanup interval (ttl/100) positive.
	minTTL = time.Microsecond
)

// LoadFunc produces the value for a key. It is called at most once per
// population of a key.
type LoadFunc[K comparable, V any] func(ctx context.Context, key K) V

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	onPanic func(key any, recovered any)
}

// WithPanicHandler registers a callback invoked when a loader panics.
// Nothing is stored and waiting callers receive a *PanicError.
func WithPanicHandler(fn func(key any, recovered any)) Option {
	return func(o *options) { o.onPanic = fn }
}

// PanicError is returned to callers waiting on a population whose loader
// panicked.
type PanicError struct {
	Key   any
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cache: loader panicked for key %v: %v", e.Key, e.Value)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries     int   `json:"entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Populations int64 `json:"populations"`
}

// TTL is a concurrency-safe single-flight cache. The zero value is not
// usable; create one with [New].
type TTL[K comparable, V any] struct {
	load LoadFunc[K, V]
	opts options

	lru    *expirable.LRU[K, V]
	flight singleflight.Group

	// keys tracks every stored key, expired or not, for Sweep.
	mu   sync.Mutex
	keys map[K]struct{}

	hits        atomic.Int64
	misses      atomic.Int64
	populations atomic.Int64
}

// New creates a cache whose values stay fresh for ttl after they are stored.
func New[K comparable, V any](ttl time.Duration, load LoadFunc[K, V], opts ...Option) *TTL[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &TTL[K, V]{
		load: load,
		opts: o,
		keys: make(map[K]struct{}),
	}
	c.lru = expirable.NewLRU[K, V](unlimited, c.evicted, max(ttl, minTTL))
	return c
}

// evicted runs under the LRU lock whenever an entry leaves it.
func (c *TTL[K, V]) evicted(key K, _ V) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}

// flightKey maps a key to its singleflight key. %#v quotes strings, so
// distinct composite keys never collide.
func flightKey[K comparable](key K) string {
	return fmt.Sprintf("%#v", key)
}

// Get returns the value for key, populating it if it is missing or stale.
// Concurrent callers for the same key share a single population. If ctx is
// cancelled before the value is ready, Get returns ctx.Err() and the
// population carries on in the background.
func (c *TTL[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	loadCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey(key), func() (any, error) {
		return c.populate(loadCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// populate runs inside the flight. A caller that missed just before an
// earlier flight stored its value picks that value up instead of loading
// again.
func (c *TTL[K, V]) populate(ctx context.Context, key K) (v V, err error) {
	if v, ok := c.lru.Peek(key); ok {
		return v, nil
	}
	c.populations.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Key: key, Value: r}
			if c.opts.onPanic != nil {
				c.opts.onPanic(key, r)
			}
		}
	}()

	v = c.load(ctx, key)
	c.lru.Add(key, v)
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
	return v, nil
}

// Peek returns the cached value for key without triggering a population.
// The second result is false when the key is missing, pending or stale.
func (c *TTL[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(key)
}

// Invalidate drops key from the cache. A population already in flight
// still stores its result when it completes.
func (c *TTL[K, V]) Invalidate(key K) {
	c.lru.Remove(key)
}

// Sweep removes every expired entry and returns how many were removed.
// Expired entries are also dropped in the background as they age out.
func (c *TTL[K, V]) Sweep() int {
	c.mu.Lock()
	keys := make([]K, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	n := 0
	for _, k := range keys {
		if _, ok := c.lru.Peek(k); !ok && c.lru.Remove(k) {
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired ones not
// yet removed.
func (c *TTL[K, V]) Len() int {
	return c.lru.Len()
}

// Stats returns the current counters.
func (c *TTL[K, V]) Stats() Stats {
	return Stats{
		Entries:     c.Len(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Populations: c.populations.Load(),
	}
}
