// Package scrapertest provides in-memory doubles for the scraper collaborators.
package scrapertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"komoditas/internal/core/scraper"
)

var ErrUnavailable = errors.New("cache unavailable")

type entry struct {
	val     []byte
	expires time.Time
}

// MemoryCache is a scraper.Cache with TTLs evaluated against Now.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	failing bool
	Now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]entry{}, Now: time.Now}
}

// SetFailing makes every call return ErrUnavailable.
func (c *MemoryCache) SetFailing(v bool) {
	c.mu.Lock()
	c.failing = v
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, ErrUnavailable
	}
	e, ok := c.entries[key]
	if !ok || (!e.expires.IsZero() && !c.Now().Before(e.expires)) {
		return nil, scraper.ErrCacheMiss
	}
	return append([]byte(nil), e.val...), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return ErrUnavailable
	}
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = c.Now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if errors.Is(err, scraper.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return ErrUnavailable
	}
	delete(c.entries, key)
	return nil
}

// Keys lists the live keys, for assertions.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

// FakeClock only moves when Sleep or Advance is called.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock(start time.Time) *FakeClock { return &FakeClock{now: start} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps returns every duration passed to Sleep, including zero waits.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
