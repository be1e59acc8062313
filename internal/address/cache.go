package address

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long positive and negative results are trusted.
const DefaultTTL = time.Hour

type cacheEntry struct {
	address  Address
	notFound bool
	expires  time.Time
}

// Cache memoises Lookup results per normalized postal code. Concurrent misses for
// the same code share one upstream call. Upstream failures are never stored.
//
// A Cache is safe for concurrent use. Call Purge to drop every entry, for example on
// shutdown or in tests.
type Cache struct {
	upstream Lookup
	ttl      time.Duration
	now      func() time.Time
	metrics  *Metrics

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// Option customises a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics records hits, misses and upstream outcomes.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache constructs a Cache in front of upstream.
func NewCache(upstream Lookup, opts ...Option) *Cache {
	c := &Cache{
		upstream: upstream,
		ttl:      DefaultTTL,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the address of a raw postal code. Errors are ErrMalformedPostalCode,
// ErrNotFound, or an upstream failure wrapping shared.ErrUpstream.
func (c *Cache) Resolve(ctx context.Context, raw string) (Address, error) {
	code, err := NormalizePostalCode(raw)
	if err != nil {
		return Address{}, err
	}
	if addr, err, ok := c.get(code); ok {
		return addr, err
	}
	c.metrics.cache("miss")

	// The flight outlives any single caller so one cancelled request cannot fail
	// the others waiting on the same code.
	flightCtx := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(code, func() (interface{}, error) {
		if addr, err, ok := c.get(code); ok {
			return addr, err
		}
		return c.fetch(flightCtx, code)
	})
	select {
	case <-ctx.Done():
		return Address{}, ctx.Err()
	case res := <-resultChan:
		addr, _ := res.Val.(Address)
		return addr, res.Err
	}
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(code string) (Address, error, bool) {
	c.mu.RLock()
	entry, ok := c.entries[code]
	c.mu.RUnlock()
	if !ok {
		return Address{}, nil, false
	}
	if !c.now().Before(entry.expires) {
		c.mu.Lock()
		if current, ok := c.entries[code]; ok && current.expires.Equal(entry.expires) {
			delete(c.entries, code)
		}
		c.mu.Unlock()
		return Address{}, nil, false
	}
	if entry.notFound {
		c.metrics.cache("negative_hit")
		return Address{}, ErrNotFound, true
	}
	c.metrics.cache("hit")
	return entry.address, nil, true
}

func (c *Cache) fetch(ctx context.Context, code string) (Address, error) {
	addr, err := c.upstream.Lookup(ctx, code)
	switch {
	case err == nil:
		c.metrics.upstream("found")
		c.store(code, cacheEntry{address: addr})
		return addr, nil
	case errors.Is(err, ErrNotFound):
		c.metrics.upstream("not_found")
		c.store(code, cacheEntry{notFound: true})
		return Address{}, ErrNotFound
	default:
		c.metrics.upstream("error")
		return Address{}, err
	}
}

func (c *Cache) store(code string, entry cacheEntry) {
	entry.expires = c.now().Add(c.ttl)
	c.mu.Lock()
	c.entries[code] = entry
	c.mu.Unlock()
}
