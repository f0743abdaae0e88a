// Package cache memoizes the result of a fallible fetch under a key with a
// per-entry expiry. Expired entries are dropped lazily when their key is read.
// The cache is unbounded; callers own the key space.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the expiry applied by GetOrCompute.
const DefaultTTL = 60 * time.Second

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means never
}

func (e entry[V]) live(now time.Time) bool {
	return e.expiresAt.IsZero() || e.expiresAt.After(now)
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now      func() time.Time
	observer func(hit bool)
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver reports every lookup as hit or miss.
func WithObserver(fn func(hit bool)) Option {
	return func(o *options) { o.observer = fn }
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	ttl  time.Duration
	opts options

	mu      sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group
}

// New builds a cache whose GetOrCompute uses defaultTTL. A non-positive
// defaultTTL makes entries permanent.
func New[V any](defaultTTL time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		ttl:     defaultTTL,
		opts:    o,
		entries: make(map[string]entry[V]),
	}
}

// GetOrCompute is GetOrComputeTTL with the cache's default TTL.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, error) {
	return c.GetOrComputeTTL(ctx, key, c.ttl, compute)
}

// GetOrComputeTTL returns the live value under key or runs compute and stores
// its result for ttl (forever when ttl <= 0). Errors are returned and not
// cached. Concurrent misses on one key share a single compute call, and the
// ttl of the call that ran compute decides the expiry. The shared call is
// detached from the caller's cancellation; a cancelled caller stops waiting
// while the others still receive the result.
func (c *Cache[V]) GetOrComputeTTL(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.observe(true)
		return v, nil
	}
	c.observe(false)

	computeCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// another caller may have filled the key while we waited
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute(computeCtx)
		if err != nil {
			return v, err
		}
		e := entry[V]{value: v}
		if ttl > 0 {
			e.expiresAt = c.opts.now().Add(ttl)
		}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.live(c.opts.now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) observe(hit bool) {
	if c.opts.observer != nil {
		c.opts.observer(hit)
	}
}

// Forget drops key so the next read recomputes it.
func (c *Cache[V]) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
